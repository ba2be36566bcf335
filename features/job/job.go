package job

import (
	"encoding/json"
	"time"
)

// Job is a terminal ingestion failure kept for inspection and retry. The
// payload is the original queue message, so a retry replays exactly what
// failed.
type Job struct {
	ID        string          `json:"id"`
	UploadID  string          `json:"upload_id"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
