package checkout

import (
	"sort"

	"github.com/shopspring/decimal"
)

// maxAmount é o maior valor que cabe em NUMERIC(12,2)
var maxAmount = decimal.RequireFromString("9999999999.99")

// Rules são as regras do bilhete (por padrão 10 números entre 1 e 80)
type Rules struct {
	NumbersPerSelection int
	MaxNumber           int
	MaxSelections       int
	TicketPrice         decimal.Decimal // zero: qualquer total positivo é aceito
}

// validate confere a requisição e devolve as seleções normalizadas (ordenadas)
func (r Rules) validate(req Request) ([][]int, error) {
	if req.BuyerID == "" {
		return nil, invalid("buyerId is required")
	}
	if !req.Amount.IsPositive() {
		return nil, invalid("amount must be greater than zero")
	}
	if req.Amount.Exponent() < -2 && !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, invalid("amount must have at most 2 decimal places")
	}
	if req.Amount.GreaterThan(maxAmount) {
		return nil, invalid("amount must be at most %s", maxAmount.StringFixed(2))
	}
	if len(req.Selections) == 0 {
		return nil, invalid("at least one selection is required")
	}
	if r.MaxSelections > 0 && len(req.Selections) > r.MaxSelections {
		return nil, invalid("at most %d selections per checkout", r.MaxSelections)
	}

	out := make([][]int, len(req.Selections))
	for i, sel := range req.Selections {
		if len(sel) != r.NumbersPerSelection {
			return nil, invalid("selection %d must have exactly %d numbers", i+1, r.NumbersPerSelection)
		}
		seen := make(map[int]struct{}, len(sel))
		norm := make([]int, 0, len(sel))
		for _, n := range sel {
			if n < 1 || n > r.MaxNumber {
				return nil, invalid("selection %d: number %d out of range 1-%d", i+1, n, r.MaxNumber)
			}
			if _, dup := seen[n]; dup {
				return nil, invalid("selection %d: number %d repeated", i+1, n)
			}
			seen[n] = struct{}{}
			norm = append(norm, n)
		}
		sort.Ints(norm)
		out[i] = norm
	}

	if !r.TicketPrice.IsZero() {
		want := r.TicketPrice.Mul(decimal.NewFromInt(int64(len(out))))
		if !req.Amount.Equal(want) {
			return nil, invalid("amount must be %s for %d tickets", want.StringFixed(2), len(out))
		}
	}

	return out, nil
}
