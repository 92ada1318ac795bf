package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/bingaodosamigos/bingao-platform/internal/payment-webhook/dto"
)

const (
	TopicPayment       = "payment"
	TopicMerchantOrder = "merchant_order"
)

var ErrMalformed = errors.New("malformed notification")

// Notification é o aviso já normalizado: só diz onde olhar, nunca o que aconteceu
type Notification struct {
	Topic      string
	ResourceID string
	Action     string
}

// ParseNotification aceita o corpo JSON e/ou a query string (?type=&data.id= ou ?topic=&id=).
// Valores do corpo têm precedência.
func ParseNotification(body []byte, query url.Values) (Notification, error) {
	var raw dto.Notification
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return Notification{}, ErrMalformed
		}
	}

	n := Notification{
		Topic:  firstNonEmpty(raw.Type, raw.Topic, query.Get("type"), query.Get("topic")),
		Action: raw.Action,
	}
	n.Topic = strings.ToLower(strings.TrimSpace(n.Topic))

	n.ResourceID = firstNonEmpty(
		raw.Data.ID.String(),
		query.Get("data.id"),
		resourceID(raw.Resource),
		query.Get("id"),
	)

	if n.Topic == "" {
		return Notification{}, ErrMalformed
	}
	return n, nil
}

// resourceID extrai o id de "https://api.mercadolibre.com/merchant_orders/456" ou de "456"
func resourceID(resource string) string {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return ""
	}
	if u, err := url.Parse(resource); err == nil && u.Path != "" {
		resource = u.Path
	}
	return path.Base(strings.TrimSuffix(resource, "/"))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
