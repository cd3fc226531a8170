package cdp

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/pkg/schemas"
)

func newTestHarvester(t *testing.T) (*harvester, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.har")
	h, err := newHarvester(path, "minimal", zap.NewNop())
	require.NoError(t, err)
	return h, path
}

func requestEvent(id, method, url string, headers network.Headers) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID:   network.RequestID(id),
		DocumentURL: "https://app.example.com/",
		Request: &network.Request{
			URL:     url,
			Method:  method,
			Headers: headers,
		},
	}
}

func TestHarvesterWritesRecordsLive(t *testing.T) {
	h, path := newTestHarvester(t)
	defer h.abort()

	h.setDefaultHeaders(map[string]string{"Authorization": "Bearer tok-123"})
	h.handleEvent(requestEvent("1", "GET", "https://app.example.com/api/users",
		network.Headers{"Accept": "application/json"}))

	// Mid-flight the artifact is line-delimited records, not a HAR.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var rec schemas.NetworkRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	assert.Equal(t, schemas.RecordRequest, rec.Kind)
	assert.Equal(t, "GET", rec.Method)
	assert.Equal(t, "https://app.example.com/api/users", rec.URL)
	// Context-level default headers are merged into the request record.
	assert.Equal(t, "Bearer tok-123", rec.Headers["Authorization"])
	assert.Equal(t, "application/json", rec.Headers["Accept"])
}

func TestHarvesterAssemblesHAR(t *testing.T) {
	h, path := newTestHarvester(t)

	h.setDefaultHeaders(map[string]string{"Authorization": "Bearer tok-123"})

	h.handleEvent(requestEvent("1", "GET", "https://app.example.com/api/users", network.Headers{}))
	h.handleEvent(&network.EventRequestWillBeSentExtraInfo{
		RequestID: "1",
		Headers:   network.Headers{"Accept-Encoding": "gzip"},
	})
	h.handleEvent(&network.EventResponseReceived{
		RequestID: "1",
		Response: &network.Response{
			Status:     200,
			StatusText: "OK",
			MimeType:   "application/json",
			Protocol:   "h2",
			Headers:    network.Headers{"Content-Type": "application/json"},
		},
	})
	h.handleEvent(&network.EventLoadingFinished{RequestID: "1", EncodedDataLength: 512})

	h.handleEvent(requestEvent("2", "POST", "https://app.example.com/api/orders", network.Headers{}))
	h.handleEvent(&network.EventLoadingFailed{RequestID: "2", ErrorText: "net::ERR_ABORTED"})

	require.NoError(t, h.stop())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var har schemas.HAR
	require.NoError(t, json.Unmarshal(data, &har))
	assert.Equal(t, "1.2", har.Log.Version)
	require.Len(t, har.Log.Entries, 2)

	first := har.Log.Entries[0]
	assert.Equal(t, "GET", first.Request.Method)
	assert.Equal(t, "https://app.example.com/api/users", first.Request.URL)
	assert.Equal(t, 200, first.Response.Status)
	assert.Equal(t, "h2", first.Response.HTTPVersion)
	assert.Equal(t, int64(512), first.Response.BodySize)

	wantHeaders := []schemas.NVPair{
		{Name: "Accept-Encoding", Value: "gzip"},
		{Name: "Authorization", Value: "Bearer tok-123"},
	}
	if diff := cmp.Diff(wantHeaders, first.Request.Headers); diff != "" {
		t.Errorf("request headers mismatch (-want +got):\n%s", diff)
	}

	// The failed request still produces an entry, with no response data.
	second := har.Log.Entries[1]
	assert.Equal(t, "POST", second.Request.Method)
	assert.Equal(t, 0, second.Response.Status)
}

func TestHarvesterStopIsIdempotent(t *testing.T) {
	h, path := newTestHarvester(t)
	h.handleEvent(requestEvent("1", "GET", "https://example.com/", network.Headers{}))

	require.NoError(t, h.stop())
	require.NoError(t, h.stop())

	var har schemas.HAR
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &har))
	assert.Len(t, har.Log.Entries, 1)
}

func TestHarvesterIgnoresEventsAfterStop(t *testing.T) {
	h, path := newTestHarvester(t)
	require.NoError(t, h.stop())

	h.handleEvent(requestEvent("1", "GET", "https://example.com/", network.Headers{}))

	var har schemas.HAR
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &har))
	assert.Empty(t, har.Log.Entries)
}

func TestHarvesterWaitIdle(t *testing.T) {
	h, _ := newTestHarvester(t)
	defer h.abort()

	h.handleEvent(requestEvent("1", "GET", "https://example.com/", network.Headers{}))

	// With a request in flight, waitIdle must block until the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.waitIdle(ctx, 50*time.Millisecond), context.DeadlineExceeded)

	h.handleEvent(&network.EventLoadingFinished{RequestID: "1", EncodedDataLength: 10})

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	assert.NoError(t, h.waitIdle(ctx2, 50*time.Millisecond))
}

func TestFlattenHeaders(t *testing.T) {
	got := flattenHeaders(network.Headers{
		"Content-Length": float64(42),
		"X-Str":          "v",
	})
	assert.Equal(t, "42", got["Content-Length"])
	assert.Equal(t, "v", got["X-Str"])
}
