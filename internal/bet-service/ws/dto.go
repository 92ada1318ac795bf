package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
type ClientMsg struct {
	Type  string `json:"type"`
	BetID string `json:"betId"` // requerido em subscribe/unsubscribe
}

type serverMsg struct {
	Type  string `json:"type"`
	BetID string `json:"betId,omitempty"`
	Error string `json:"error,omitempty"`
}
