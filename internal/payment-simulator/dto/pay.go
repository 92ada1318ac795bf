package dto

import "github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"

// PayRequest simula o comprador concluindo (ou não) o checkout de uma preferência
type PayRequest struct {
	PreferenceID string `json:"preferenceId"`
	Status       string `json:"status"`    // approved | rejected | cancelled | pending | in_process
	Duplicate    int    `json:"duplicate"` // reentregas extras do mesmo aviso
	Legacy       bool   `json:"legacy"`    // avisa no formato IPN (topic=merchant_order)
}

type PayResponse struct {
	Payment       mercadopago.Payment `json:"payment"`
	MerchantOrder mercadopago.ID      `json:"merchantOrderId"`
	Notified      int                 `json:"notified"`
}

// APIError imita o corpo de erro da API do Mercado Pago
type APIError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}
