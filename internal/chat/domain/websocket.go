package domain

// Action websocket event name
type Action string

const (
	// Join bind the connection to a conversation room (client -> server)
	Join Action = "join"
	// Leave release presence (client -> server)
	Leave Action = "leave"
	// SendMessage persist and broadcast; the broadcast reuses the same name (both directions)
	SendMessage Action = "message"
	// History full transcript replay to a joining connection (server -> client)
	History Action = "history"
	// Error acknowledgement of a dropped event (server -> client)
	Error Action = "error"
)

// WSRequest websocket inbound event
type WSRequest struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Content        string `json:"content"`
}

// WSResponse websocket outbound event
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    int                    `json:"code,omitempty"`
}
