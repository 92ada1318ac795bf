package mercadopago

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Status de pagamento devolvidos por /v1/payments
const (
	PaymentApproved    = "approved"
	PaymentPending     = "pending"
	PaymentInProcess   = "in_process"
	PaymentAuthorized  = "authorized"
	PaymentInMediation = "in_mediation"
	PaymentRejected    = "rejected"
	PaymentCancelled   = "cancelled"
	PaymentRefunded    = "refunded"
	PaymentChargedBack = "charged_back"
	AutoReturnApproved = "approved"
	CurrencyBRL        = "BRL"
)

// ID aceita ids numéricos ou string (o Mercado Pago manda os dois formatos)
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			*id = ID(strconv.FormatInt(i, 10))
			return nil
		}
		*id = ID(n.String())
		return nil
	}

	return fmt.Errorf("unable to parse %s as id", string(data))
}

func (id ID) String() string { return string(id) }

type Item struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type Payer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// PreferenceRequest é o corpo de POST /checkout/preferences
type PreferenceRequest struct {
	Items             []Item            `json:"items"`
	Payer             *Payer            `json:"payer,omitempty"`
	ExternalReference string            `json:"external_reference"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	BackURLs          BackURLs          `json:"back_urls"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type Preference struct {
	ID                string `json:"id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	ExternalReference string `json:"external_reference"`
}

// RedirectURL escolhe o link de checkout conforme o ambiente
func (p Preference) RedirectURL(sandbox bool) string {
	if sandbox && p.SandboxInitPoint != "" {
		return p.SandboxInitPoint
	}
	return p.InitPoint
}

// Payment é o subconjunto de /v1/payments/{id} usado na conciliação
type Payment struct {
	ID                ID              `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	DateApproved      string          `json:"date_approved,omitempty"`
}

type MerchantOrderPayment struct {
	ID                ID              `json:"id"`
	Status            string          `json:"status"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
}

type MerchantOrder struct {
	ID                ID                     `json:"id"`
	PreferenceID      string                 `json:"preference_id"`
	ExternalReference string                 `json:"external_reference"`
	OrderStatus       string                 `json:"order_status"`
	Payments          []MerchantOrderPayment `json:"payments"`
}

// PaymentID escolhe o pagamento aprovado da ordem; sem aprovado, o primeiro
func (m MerchantOrder) PaymentID() (string, bool) {
	for _, p := range m.Payments {
		if p.Status == PaymentApproved && p.ID != "" {
			return p.ID.String(), true
		}
	}
	if len(m.Payments) > 0 && m.Payments[0].ID != "" {
		return m.Payments[0].ID.String(), true
	}
	return "", false
}
