package repo

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status do ciclo de vida de uma aposta (espelha o subconjunto relevante do pagamento)
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrPaymentAlreadyLinked = errors.New("payment already linked to another bet")
)

// Bet é o registro de correlação persistido no Postgres.
// ID é também o external_reference enviado ao Mercado Pago.
type Bet struct {
	ID            string
	UserID        string
	Selections    [][]int
	Amount        decimal.Decimal
	ContestNumber *int
	Status        Status
	PaymentID     string // vazio até a transição terminal
	PreferenceID  string
	RedirectURL   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ApprovedAt    *time.Time
	RejectedAt    *time.Time
}

// Tickets retorna quantos bilhetes (jogos) a aposta cobre
func (b Bet) Tickets() int { return len(b.Selections) }

// NewBet são os dados de entrada para CreatePending
type NewBet struct {
	UserID        string
	Selections    [][]int
	Amount        decimal.Decimal
	ContestNumber *int
}

// Transition descreve o resultado de Approve/Reject.
// Applied=false indica que a aposta já não estava pending (entrega duplicada ou fora de ordem).
type Transition struct {
	Applied bool
	From    Status
	Bet     Bet
}

// Draw é um sorteio publicado (gerido pelo painel administrativo)
type Draw struct {
	ID            string    `json:"id"`
	ContestNumber int       `json:"contestNumber"`
	Numbers       []int     `json:"numbers"`
	DrawDate      time.Time `json:"drawDate"`
}
