package store

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid payment status")
)

// Preference guarda o pedido original junto da preferência devolvida
type Preference struct {
	mercadopago.Preference
	Request mercadopago.PreferenceRequest
	Total   decimal.Decimal
}

// Memory é o estado do simulador; vive só enquanto o processo roda
type Memory struct {
	mu          sync.Mutex
	seq         int64
	preferences map[string]Preference
	idempotency map[string]string
	payments    map[string]mercadopago.Payment
	orders      map[string]mercadopago.MerchantOrder
	orderByPref map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		seq:         1_000_000,
		preferences: map[string]Preference{},
		idempotency: map[string]string{},
		payments:    map[string]mercadopago.Payment{},
		orders:      map[string]mercadopago.MerchantOrder{},
		orderByPref: map[string]string{},
	}
}

// CreatePreference registra uma preferência. A mesma chave de idempotência
// devolve a preferência já criada.
func (m *Memory) CreatePreference(req mercadopago.PreferenceRequest, idempotencyKey, checkoutBaseURL string) (Preference, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idempotencyKey != "" {
		if id, ok := m.idempotency[idempotencyKey]; ok {
			return m.preferences[id], false
		}
	}

	id := uuid.NewString()
	link := checkoutBaseURL + "/checkout?pref_id=" + id
	p := Preference{
		Preference: mercadopago.Preference{
			ID:                id,
			InitPoint:         link,
			SandboxInitPoint:  link + "&sandbox=true",
			ExternalReference: req.ExternalReference,
		},
		Request: req,
		Total:   Total(req.Items),
	}
	m.preferences[id] = p
	if idempotencyKey != "" {
		m.idempotency[idempotencyKey] = id
	}
	return p, true
}

func (m *Memory) Preference(id string) (Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.preferences[id]
	if !ok {
		return Preference{}, ErrNotFound
	}
	return p, nil
}

// Pay cria um pagamento para a preferência e o anexa à merchant order dela
func (m *Memory) Pay(prefID, status string) (mercadopago.Payment, mercadopago.MerchantOrder, error) {
	switch status {
	case mercadopago.PaymentApproved, mercadopago.PaymentRejected, mercadopago.PaymentCancelled,
		mercadopago.PaymentPending, mercadopago.PaymentInProcess:
	default:
		return mercadopago.Payment{}, mercadopago.MerchantOrder{}, ErrInvalidState
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pref, ok := m.preferences[prefID]
	if !ok {
		return mercadopago.Payment{}, mercadopago.MerchantOrder{}, ErrNotFound
	}

	m.seq++
	p := mercadopago.Payment{
		ID:                mercadopago.ID(strconv.FormatInt(m.seq, 10)),
		Status:            status,
		StatusDetail:      statusDetail(status),
		ExternalReference: pref.Request.ExternalReference,
		TransactionAmount: pref.Total,
		CurrencyID:        currency(pref.Request.Items),
	}
	if status == mercadopago.PaymentApproved {
		p.DateApproved = time.Now().UTC().Format(time.RFC3339)
	}
	m.payments[p.ID.String()] = p

	orderID, ok := m.orderByPref[prefID]
	if !ok {
		m.seq++
		orderID = strconv.FormatInt(m.seq, 10)
		m.orderByPref[prefID] = orderID
		m.orders[orderID] = mercadopago.MerchantOrder{
			ID:                mercadopago.ID(orderID),
			PreferenceID:      prefID,
			ExternalReference: pref.Request.ExternalReference,
			OrderStatus:       "opened",
		}
	}
	mo := m.orders[orderID]
	mo.Payments = append(mo.Payments, mercadopago.MerchantOrderPayment{
		ID:                p.ID,
		Status:            p.Status,
		TransactionAmount: p.TransactionAmount,
	})
	if status == mercadopago.PaymentApproved {
		mo.OrderStatus = "paid"
	}
	m.orders[orderID] = mo

	return p, mo, nil
}

func (m *Memory) Payment(id string) (mercadopago.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return mercadopago.Payment{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) MerchantOrder(id string) (mercadopago.MerchantOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mo, ok := m.orders[id]
	if !ok {
		return mercadopago.MerchantOrder{}, ErrNotFound
	}
	return mo, nil
}

// Total soma quantidade * preço unitário, arredondado em centavos
func Total(items []mercadopago.Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2)
}

func currency(items []mercadopago.Item) string {
	if len(items) > 0 && items[0].CurrencyID != "" {
		return items[0].CurrencyID
	}
	return mercadopago.CurrencyBRL
}

func statusDetail(status string) string {
	switch status {
	case mercadopago.PaymentApproved:
		return "accredited"
	case mercadopago.PaymentRejected:
		return "cc_rejected_other_reason"
	case mercadopago.PaymentCancelled:
		return "expired"
	case mercadopago.PaymentInProcess:
		return "pending_review_manual"
	default:
		return "pending_waiting_payment"
	}
}
