package dto

import (
	"time"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CheckoutResponse struct {
	BetID       string `json:"betId"`
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

type BetResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Selections    [][]int    `json:"selections"`
	Amount        string     `json:"amount"`
	ContestNumber *int       `json:"contestNumber,omitempty"`
	PaymentID     string     `json:"paymentId,omitempty"`
	RedirectURL   string     `json:"redirectUrl,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty"`
	RejectedAt    *time.Time `json:"rejectedAt,omitempty"`
}

func NewBetResponse(b repo.Bet) BetResponse {
	out := BetResponse{
		ID:            b.ID,
		Status:        string(b.Status),
		Selections:    b.Selections,
		Amount:        b.Amount.StringFixed(2),
		ContestNumber: b.ContestNumber,
		PaymentID:     b.PaymentID,
		CreatedAt:     b.CreatedAt,
		ApprovedAt:    b.ApprovedAt,
		RejectedAt:    b.RejectedAt,
	}
	// o link de pagamento só interessa enquanto a aposta está pendente
	if b.Status == repo.StatusPending {
		out.RedirectURL = b.RedirectURL
	}
	return out
}

type BetsResponse struct {
	Bets []BetResponse `json:"bets"`
}

type DrawsResponse struct {
	Draws []repo.Draw `json:"draws"`
}
