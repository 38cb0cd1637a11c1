package protocol

// Event represents a row in the events SQLite table.
type Event struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`   // operation name
	Source    string `json:"source"` // coordinator | cli
	AgentID   string `json:"agent_id"`
	Success   bool   `json:"success"`
	Payload   string `json:"payload"` // error message on failure
	CreatedAt string `json:"created_at"`
}
