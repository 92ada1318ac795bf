package dto

import "github.com/shopspring/decimal"

// CheckoutRequest aceita amount como número ou string ("10.00")
type CheckoutRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	BuyerID    string          `json:"buyerId"`
	Selections [][]int         `json:"selections"`
}
