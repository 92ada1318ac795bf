package dto

import "github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"

// Notification é o corpo enviado pelo Mercado Pago (webhooks v1 e IPN legado)
//
//	webhook: {"type":"payment","action":"payment.updated","data":{"id":"123"}}
//	IPN:     {"topic":"merchant_order","resource":"https://api.mercadolibre.com/merchant_orders/456"}
type Notification struct {
	ID       mercadopago.ID `json:"id"`
	Type     string         `json:"type"`
	Topic    string         `json:"topic"`
	Action   string         `json:"action"`
	Resource string         `json:"resource"`
	LiveMode bool           `json:"live_mode"`
	Data     struct {
		ID mercadopago.ID `json:"id"`
	} `json:"data"`
}

type Ack struct {
	Status string `json:"status"`
}
