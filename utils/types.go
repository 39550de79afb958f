package utils

// WebSocketEvent is the envelope broadcast to monitoring clients.
type WebSocketEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
