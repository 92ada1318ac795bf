package events

import "time"

// Payload publicado no canal bet_status_broadcast e repassado via WebSocket
type BetStatusUpdate struct {
	BetID  string    `json:"betId"`
	Status string    `json:"status"`
	Ts     time.Time `json:"ts"`
}
