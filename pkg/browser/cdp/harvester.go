package cdp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/pkg/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// harvester records CDP network events. Every event is appended to the
// artifact file as a line-delimited record the moment it arrives; on stop the
// accumulated transactions are compacted into a HAR document written over the
// same file. The artifact is not a readable HAR until then.
type harvester struct {
	logger *zap.Logger
	mode   string
	path   string

	mu             sync.Mutex
	file           *os.File
	enc            *jsoniter.Encoder
	drafts         map[network.RequestID]*draft
	order          []network.RequestID
	defaultHeaders map[string]string
	inflight       int
	lastActivity   time.Time
	stopped        bool
}

// draft accumulates the pieces of one request/response transaction.
type draft struct {
	request  *schemas.NetworkRecord
	response *schemas.NetworkRecord
	started  time.Time
	finished time.Time
	bodySize int64
	done     bool
}

func newHarvester(path, mode string, logger *zap.Logger) (*harvester, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	return &harvester{
		logger:       logger.Named("harvester"),
		mode:         mode,
		path:         path,
		file:         f,
		enc:          json.NewEncoder(f),
		drafts:       make(map[network.RequestID]*draft),
		lastActivity: time.Now(),
	}, nil
}

// listen attaches the event handler to the tab. Must run before the first
// navigation so the initial request is captured.
func (h *harvester) listen(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, h.handleEvent)
}

// setDefaultHeaders records the headers injected at context creation. CDP
// reports extra headers inconsistently across event kinds, so they are merged
// into every request record explicitly.
func (h *harvester) setDefaultHeaders(headers map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultHeaders = headers
}

func (h *harvester) handleEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		h.onRequest(ev)
	case *network.EventRequestWillBeSentExtraInfo:
		h.onRequestExtraInfo(ev)
	case *network.EventResponseReceived:
		h.onResponse(ev)
	case *network.EventLoadingFinished:
		h.onFinished(ev)
	case *network.EventLoadingFailed:
		h.onFailed(ev)
	}
}

func (h *harvester) onRequest(ev *network.EventRequestWillBeSent) {
	now := time.Now()
	headers := flattenHeaders(ev.Request.Headers)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	for k, v := range h.defaultHeaders {
		if _, present := headers[k]; !present {
			headers[k] = v
		}
	}

	rec := &schemas.NetworkRecord{
		Kind:      schemas.RecordRequest,
		RequestID: string(ev.RequestID),
		Timestamp: now,
		PageURL:   ev.DocumentURL,
		Method:    ev.Request.Method,
		URL:       ev.Request.URL,
		Headers:   headers,
	}
	h.drafts[ev.RequestID] = &draft{request: rec, started: now}
	h.order = append(h.order, ev.RequestID)
	h.inflight++
	h.lastActivity = now
	h.writeLocked(rec)
}

func (h *harvester) onRequestExtraInfo(ev *network.EventRequestWillBeSentExtraInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.drafts[ev.RequestID]
	if !ok || h.stopped {
		return
	}
	// ExtraInfo carries the headers actually put on the wire, including the
	// context-level defaults.
	for k, v := range flattenHeaders(ev.Headers) {
		d.request.Headers[k] = v
	}
}

func (h *harvester) onResponse(ev *network.EventResponseReceived) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	rec := &schemas.NetworkRecord{
		Kind:       schemas.RecordResponse,
		RequestID:  string(ev.RequestID),
		Timestamp:  now,
		Status:     int(ev.Response.Status),
		StatusText: ev.Response.StatusText,
		MimeType:   ev.Response.MimeType,
		Protocol:   ev.Response.Protocol,
		Headers:    flattenHeaders(ev.Response.Headers),
	}
	if d, ok := h.drafts[ev.RequestID]; ok {
		d.response = rec
	}
	h.lastActivity = now
	h.writeLocked(rec)
}

func (h *harvester) onFinished(ev *network.EventLoadingFinished) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	rec := &schemas.NetworkRecord{
		Kind:      schemas.RecordFinished,
		RequestID: string(ev.RequestID),
		Timestamp: now,
		BodySize:  int64(ev.EncodedDataLength),
	}
	if d, ok := h.drafts[ev.RequestID]; ok && !d.done {
		d.done = true
		d.finished = now
		d.bodySize = int64(ev.EncodedDataLength)
		h.inflight--
	}
	h.lastActivity = now
	h.writeLocked(rec)
}

func (h *harvester) onFailed(ev *network.EventLoadingFailed) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	rec := &schemas.NetworkRecord{
		Kind:      schemas.RecordFailed,
		RequestID: string(ev.RequestID),
		Timestamp: now,
		ErrorText: ev.ErrorText,
	}
	if d, ok := h.drafts[ev.RequestID]; ok && !d.done {
		d.done = true
		d.finished = now
		h.inflight--
	}
	h.lastActivity = now
	h.writeLocked(rec)
}

// writeLocked appends one record line. Callers hold h.mu.
func (h *harvester) writeLocked(rec *schemas.NetworkRecord) {
	if err := h.enc.Encode(rec); err != nil {
		h.logger.Warn("Failed to append capture record", zap.Error(err))
	}
}

// waitIdle blocks until no request has been in flight for the quiet window.
func (h *harvester) waitIdle(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.mu.Lock()
			idle := h.inflight == 0 && time.Since(h.lastActivity) >= quiet
			h.mu.Unlock()
			if idle {
				return nil
			}
		}
	}
}

// stop compacts the recorded transactions into a HAR document and finalizes
// the artifact file. Idempotent.
func (h *harvester) stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true

	har := h.assembleLocked()

	if _, err := h.file.Seek(0, 0); err != nil {
		h.file.Close()
		return fmt.Errorf("rewind artifact: %w", err)
	}
	if err := h.file.Truncate(0); err != nil {
		h.file.Close()
		return fmt.Errorf("truncate artifact: %w", err)
	}
	if err := json.NewEncoder(h.file).Encode(har); err != nil {
		h.file.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := h.file.Sync(); err != nil {
		h.file.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}

	h.logger.Info("Capture artifact finalized",
		zap.Int("entries", len(har.Log.Entries)),
		zap.String("path", h.path))
	return nil
}

// abort closes the artifact file without finalizing it. Used when context
// creation fails partway.
func (h *harvester) abort() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	h.file.Close()
}

// assembleLocked converts the drafts into HAR entries in arrival order.
// Callers hold h.mu.
func (h *harvester) assembleLocked() *schemas.HAR {
	har := schemas.NewHAR("1.0")
	for _, id := range h.order {
		d := h.drafts[id]
		if d == nil || d.request == nil {
			continue
		}
		har.Log.Entries = append(har.Log.Entries, assembleEntry(d))
	}
	return har
}

// assembleEntry builds one HAR entry from a transaction draft. Unknown
// timing phases are -1 per the HAR convention.
func assembleEntry(d *draft) schemas.Entry {
	entry := schemas.Entry{
		StartedDateTime: d.started,
		Request: schemas.Request{
			Method:      d.request.Method,
			URL:         d.request.URL,
			HTTPVersion: "HTTP/1.1",
			Cookies:     []schemas.HARCookie{},
			Headers:     headerPairs(d.request.Headers),
			QueryString: []schemas.NVPair{},
			HeadersSize: -1,
			BodySize:    -1,
		},
		Response: schemas.Response{
			Cookies:     []schemas.HARCookie{},
			Headers:     []schemas.NVPair{},
			HeadersSize: -1,
			BodySize:    -1,
			Content:     schemas.Content{Size: -1},
		},
		Timings: schemas.Timings{Blocked: -1, DNS: -1, Connect: -1, SSL: -1, Send: -1, Wait: -1, Receive: -1},
	}

	if d.response != nil {
		entry.Response.Status = d.response.Status
		entry.Response.StatusText = d.response.StatusText
		entry.Response.Headers = headerPairs(d.response.Headers)
		entry.Response.Content = schemas.Content{Size: d.bodySize, MimeType: d.response.MimeType}
		entry.Response.BodySize = d.bodySize
		if d.response.Protocol != "" {
			entry.Response.HTTPVersion = d.response.Protocol
		}
	}
	if !d.finished.IsZero() {
		total := d.finished.Sub(d.started).Seconds() * 1000
		entry.Time = total
		entry.Timings.Wait = total
	}
	return entry
}

// headerPairs converts a header map to sorted HAR name-value pairs.
func headerPairs(headers map[string]string) []schemas.NVPair {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]schemas.NVPair, 0, len(names))
	for _, name := range names {
		out = append(out, schemas.NVPair{Name: name, Value: headers[name]})
	}
	return out
}

// flattenHeaders renders CDP's loosely typed header map as strings.
func flattenHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
