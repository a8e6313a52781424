package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/atomsel/pkg/scanner"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "scan" | "scan_batch" | "atoms" | "quality" | "close"
	Payload json.RawMessage `json:"payload"`
}

// ScanPayload is the payload for "scan" requests
type ScanPayload = scanner.ContentItem

// ScanBatchPayload is the payload for "scan_batch" requests
type ScanBatchPayload struct {
	Items []scanner.ContentItem `json:"items"`
}

// QualityPayload is the payload for "quality" requests. Atoms use hex
// notation with '?' for masked nibbles.
type QualityPayload struct {
	Atoms []string `json:"atoms"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // request type, "ready" or "decode"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
	Rules   int    `json:"rules"`
}
