package schemas

import "time"

// Record kinds written to the in-flight capture artifact. Each browser
// network event appends one line-delimited JSON record; the records are
// compacted into a HAR document when the browsing context closes.
const (
	RecordRequest  = "request"
	RecordResponse = "response"
	RecordFinished = "finished"
	RecordFailed   = "failed"
)

// NetworkRecord is one line of the in-flight capture artifact. The artifact
// is incomplete and unreadable as a HAR until the session finalizes; these
// records exist so that traffic is on disk from the moment the browsing
// context is created.
type NetworkRecord struct {
	Kind      string    `json:"kind"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
	PageURL   string    `json:"pageUrl,omitempty"`

	// Request fields.
	Method   string            `json:"method,omitempty"`
	URL      string            `json:"url,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	PostData string            `json:"postData,omitempty"`

	// Response fields.
	Status     int    `json:"status,omitempty"`
	StatusText string `json:"statusText,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
	BodySize   int64  `json:"bodySize,omitempty"`

	// Failure fields.
	ErrorText string `json:"errorText,omitempty"`
}
