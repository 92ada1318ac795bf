package reconcile

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
)

// Outcome classifica o que aconteceu com um aviso; nunca vira erro para o provedor
type Outcome string

const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeMalformed      Outcome = "malformed"
	OutcomeUpstreamError  Outcome = "upstream_error"
	OutcomeUncorrelated   Outcome = "uncorrelated"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
	OutcomeNotFinal       Outcome = "not_final"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeConflict       Outcome = "conflict"
	OutcomeApproved       Outcome = "approved"
	OutcomeRejected       Outcome = "rejected"

	// aposta já rejeitada recebeu outro pagamento aprovado; estorno manual
	OutcomePaidAfterReject Outcome = "paid_after_reject"
)

type Provider interface {
	GetPayment(ctx context.Context, id string) (mercadopago.Payment, error)
	GetMerchantOrder(ctx context.Context, id string) (mercadopago.MerchantOrder, error)
}

type Store interface {
	Get(ctx context.Context, betID string) (repo.Bet, error)
	Approve(ctx context.Context, betID, paymentID string) (repo.Transition, error)
	Reject(ctx context.Context, betID, paymentID string) (repo.Transition, error)
}

// Notifier é avisado apenas quando uma transição foi de fato aplicada
type Notifier interface {
	BetSettled(ctx context.Context, bet repo.Bet) error
}

type Receiver struct {
	log      *zap.Logger
	provider Provider
	store    Store
	notifier Notifier
}

func NewReceiver(log *zap.Logger, provider Provider, store Store, notifier Notifier) *Receiver {
	return &Receiver{log: log, provider: provider, store: store, notifier: notifier}
}

// Handle processa um aviso do Mercado Pago. O aviso só indica qual recurso
// consultar: o status vem sempre de GET /v1/payments/{id}.
func (r *Receiver) Handle(ctx context.Context, body []byte, query url.Values) Outcome {
	n, err := ParseNotification(body, query)
	if err != nil {
		r.log.Warn("webhook dropped: malformed", zap.ByteString("body", truncate(body, 512)))
		return OutcomeMalformed
	}
	log := r.log.With(zap.String("topic", n.Topic), zap.String("resource_id", n.ResourceID), zap.String("action", n.Action))

	if n.Topic != TopicPayment && n.Topic != TopicMerchantOrder {
		log.Debug("webhook ignored: topic")
		return OutcomeIgnored
	}
	if n.ResourceID == "" {
		log.Warn("webhook dropped: no resource id")
		return OutcomeMalformed
	}

	paymentID := n.ResourceID
	if n.Topic == TopicMerchantOrder {
		mo, err := r.provider.GetMerchantOrder(ctx, n.ResourceID)
		if err != nil {
			log.Error("merchant order fetch failed", zap.Error(err))
			return OutcomeUpstreamError
		}
		id, ok := mo.PaymentID()
		if !ok {
			log.Info("merchant order without payments yet")
			return OutcomeNotFinal
		}
		paymentID = id
	}
	log = log.With(zap.String("payment_id", paymentID))

	p, err := r.provider.GetPayment(ctx, paymentID)
	if err != nil {
		log.Error("payment fetch failed", zap.Error(err))
		return OutcomeUpstreamError
	}
	log = log.With(zap.String("payment_status", p.Status), zap.String("bet_id", p.ExternalReference))

	if p.ExternalReference == "" {
		log.Warn("webhook dropped: payment without external_reference")
		return OutcomeUncorrelated
	}
	bet, err := r.store.Get(ctx, p.ExternalReference)
	if errors.Is(err, repo.ErrNotFound) {
		log.Warn("webhook dropped: unknown bet")
		return OutcomeUncorrelated
	}
	if err != nil {
		log.Error("bet lookup failed", zap.Error(err))
		return OutcomeUpstreamError
	}

	var settle func(context.Context, string, string) (repo.Transition, error)
	switch p.Status {
	case mercadopago.PaymentApproved:
		if !p.TransactionAmount.Equal(bet.Amount) {
			log.Error("webhook dropped: amount mismatch",
				zap.String("paid", p.TransactionAmount.String()),
				zap.String("expected", bet.Amount.String()),
			)
			return OutcomeAmountMismatch
		}
		settle = r.store.Approve
	case mercadopago.PaymentRejected, mercadopago.PaymentCancelled:
		settle = r.store.Reject
	default:
		log.Info("payment not final; no transition")
		return OutcomeNotFinal
	}

	if bet.Status != repo.StatusPending {
		return alreadySettled(log, bet, p.Status, paymentID)
	}

	tr, err := settle(ctx, bet.ID, paymentID)
	switch {
	case errors.Is(err, repo.ErrPaymentAlreadyLinked):
		log.Error("payment already linked to another bet")
		return OutcomeConflict
	case errors.Is(err, repo.ErrNotFound):
		return OutcomeUncorrelated
	case err != nil:
		log.Error("bet transition failed", zap.Error(err))
		return OutcomeUpstreamError
	case !tr.Applied:
		return alreadySettled(log, tr.Bet, p.Status, paymentID)
	}

	if r.notifier != nil {
		if err := r.notifier.BetSettled(ctx, tr.Bet); err != nil {
			log.Warn("settlement notification failed", zap.Error(err))
		}
	}

	log.Info("bet settled", zap.String("bet_status", string(tr.Bet.Status)))
	if tr.Bet.Status == repo.StatusApproved {
		return OutcomeApproved
	}
	return OutcomeRejected
}

// alreadySettled classifica um aviso para aposta que já saiu de pending; nada é alterado
func alreadySettled(log *zap.Logger, bet repo.Bet, paymentStatus, paymentID string) Outcome {
	if bet.Status == repo.StatusRejected && paymentStatus == mercadopago.PaymentApproved && bet.PaymentID != paymentID {
		log.Error("approved payment for rejected bet; refund required",
			zap.String("rejected_by_payment_id", bet.PaymentID),
		)
		return OutcomePaidAfterReject
	}
	log.Info("bet already settled", zap.String("bet_status", string(bet.Status)))
	return OutcomeDuplicate
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
