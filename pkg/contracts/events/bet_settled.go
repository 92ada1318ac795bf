package events

import "time"

// Evento emitido pelo payment-webhook quando uma aposta sai de "pending".
type BetSettled struct {
	BetID         string    `json:"betId"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"` // "approved" | "rejected"
	PaymentID     string    `json:"paymentId"`
	Amount        string    `json:"amount"`
	ContestNumber *int      `json:"contestNumber,omitempty"`
	Selections    [][]int   `json:"selections"`
	Ts            time.Time `json:"ts"`
}
