package queue

import "github.com/nikhilbhutani/menuwaiter/internal/menu"

const (
	TypeMenuIngest = "menu:ingest"
)

// MenuIngestPayload carries normalized rows and the namespace the API
// already handed to the uploader.
type MenuIngestPayload struct {
	Namespace string     `json:"namespace"`
	Filename  string     `json:"filename,omitempty"`
	Rows      []menu.Row `json:"rows"`
}
