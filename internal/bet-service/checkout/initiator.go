package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
)

const itemTitle = "Bingão dos Amigos - Aposta"

type Bets interface {
	CreatePending(ctx context.Context, nb repo.NewBet) (repo.Bet, error)
	AttachPreference(ctx context.Context, betID, preferenceID, redirectURL string) error
}

type Draws interface {
	Current(ctx context.Context) (repo.Draw, error)
}

type Users interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

type Provider interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest, idempotencyKey string) (mercadopago.Preference, error)
}

type Options struct {
	Rules           Rules
	PublicBaseURL   string // base das back_urls (/payment/success etc.)
	NotificationURL string // endereço público do payment-webhook
	Sandbox         bool
}

type Request struct {
	BuyerID    string
	Amount     decimal.Decimal
	Selections [][]int
}

type Result struct {
	BetID       string `json:"betId"`
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// Initiator cria a aposta pending e abre a preferência de pagamento no Mercado Pago
type Initiator struct {
	log      *zap.Logger
	bets     Bets
	draws    Draws
	users    Users
	provider Provider
	opts     Options
}

func NewInitiator(log *zap.Logger, bets Bets, draws Draws, users Users, provider Provider, opts Options) *Initiator {
	return &Initiator{log: log, bets: bets, draws: draws, users: users, provider: provider, opts: opts}
}

// Initiate valida, grava a aposta pending e só então chama o provedor,
// passando o id da aposta como external_reference.
func (i *Initiator) Initiate(ctx context.Context, req Request) (Result, error) {
	selections, err := i.opts.Rules.validate(req)
	if err != nil {
		return Result{}, err
	}

	ok, err := i.users.Exists(ctx, req.BuyerID)
	if err != nil {
		return Result{}, &UpstreamError{Op: "lookup buyer", Err: err}
	}
	if !ok {
		return Result{}, invalid("buyer %s not found", req.BuyerID)
	}

	nb := repo.NewBet{UserID: req.BuyerID, Selections: selections, Amount: req.Amount}
	if d, err := i.draws.Current(ctx); err == nil {
		nb.ContestNumber = &d.ContestNumber
	} else if !errors.Is(err, repo.ErrNotFound) {
		i.log.Warn("current draw lookup failed; bet left without contest", zap.Error(err))
	}

	bet, err := i.bets.CreatePending(ctx, nb)
	if err != nil {
		return Result{}, &UpstreamError{Op: "create pending bet", Err: err}
	}
	log := i.log.With(zap.String("bet_id", bet.ID), zap.String("user_id", bet.UserID))

	pref, err := i.provider.CreatePreference(ctx, i.preferenceFor(bet), bet.ID)
	if err != nil {
		log.Error("create preference failed; bet stays pending", zap.Error(err))
		return Result{}, &UpstreamError{Op: "create preference", BetID: bet.ID, Err: err}
	}

	redirect := pref.RedirectURL(i.opts.Sandbox)
	if err := i.bets.AttachPreference(ctx, bet.ID, pref.ID, redirect); err != nil {
		// a conciliação usa external_reference, então o checkout segue válido
		log.Warn("attach preference failed", zap.String("preference_id", pref.ID), zap.Error(err))
	}

	log.Info("checkout started",
		zap.String("preference_id", pref.ID),
		zap.Int("tickets", bet.Tickets()),
		zap.String("amount", bet.Amount.StringFixed(2)),
	)

	return Result{BetID: bet.ID, SessionID: pref.ID, RedirectURL: redirect}, nil
}

func (i *Initiator) preferenceFor(bet repo.Bet) mercadopago.PreferenceRequest {
	title := itemTitle
	if n := bet.Tickets(); n > 1 {
		title = fmt.Sprintf("%s (%d bilhetes)", itemTitle, n)
	}

	base := i.opts.PublicBaseURL
	return mercadopago.PreferenceRequest{
		Items: []mercadopago.Item{{
			ID:         bet.ID,
			Title:      title,
			Quantity:   1,
			UnitPrice:  bet.Amount.InexactFloat64(),
			CurrencyID: mercadopago.CurrencyBRL,
		}},
		ExternalReference: bet.ID,
		NotificationURL:   i.opts.NotificationURL,
		BackURLs: mercadopago.BackURLs{
			Success: base + "/payment/success",
			Failure: base + "/payment/failure",
			Pending: base + "/payment/pending",
		},
		AutoReturn: mercadopago.AutoReturnApproved,
		Metadata:   map[string]string{"bet_id": bet.ID, "user_id": bet.UserID},
	}
}
