package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const betColumns = `id, user_id, selections, amount, contest_number, status,
	payment_id, preference_id, redirect_url, created_at, updated_at, approved_at, rejected_at`

// BetRepo implementa o acesso aos registros de aposta em Postgres
type BetRepo struct{ db *sql.DB }

func NewBetRepo(db *sql.DB) *BetRepo { return &BetRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(row rowScanner) (Bet, error) {
	var (
		b                              Bet
		selections                     []byte
		contest                        sql.NullInt64
		status                         string
		paymentID, prefID, redirectURL sql.NullString
		approvedAt, rejectedAt         sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.UserID, &selections, &b.Amount, &contest, &status,
		&paymentID, &prefID, &redirectURL, &b.CreatedAt, &b.UpdatedAt, &approvedAt, &rejectedAt); err != nil {
		return Bet{}, err
	}
	if err := json.Unmarshal(selections, &b.Selections); err != nil {
		return Bet{}, fmt.Errorf("decode selections: %w", err)
	}
	if contest.Valid {
		n := int(contest.Int64)
		b.ContestNumber = &n
	}
	b.Status = Status(status)
	b.PaymentID = paymentID.String
	b.PreferenceID = prefID.String
	b.RedirectURL = redirectURL.String
	if approvedAt.Valid {
		b.ApprovedAt = &approvedAt.Time
	}
	if rejectedAt.Valid {
		b.RejectedAt = &rejectedAt.Time
	}
	return b, nil
}

// CreatePending insere uma nova aposta pending com um id recém-gerado.
// Deve rodar antes de qualquer chamada ao provedor de pagamento.
func (r *BetRepo) CreatePending(ctx context.Context, nb NewBet) (Bet, error) {
	selections, err := json.Marshal(nb.Selections)
	if err != nil {
		return Bet{}, fmt.Errorf("encode selections: %w", err)
	}

	id := uuid.NewString()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO bets (id, user_id, selections, amount, contest_number, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING `+betColumns,
		id, nb.UserID, selections, nb.Amount, nb.ContestNumber,
	)
	b, err := scanBet(row)
	if err != nil {
		return Bet{}, fmt.Errorf("insert bet: %w", err)
	}
	return b, nil
}

// AttachPreference grava o handle da sessão de checkout e a URL de redirecionamento
func (r *BetRepo) AttachPreference(ctx context.Context, betID, preferenceID, redirectURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bets SET preference_id = $2, redirect_url = $3, updated_at = NOW()
		WHERE id = $1`, betID, preferenceID, redirectURL)
	if err != nil {
		return fmt.Errorf("attach preference: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get busca uma aposta pelo id (correlation id). Ids que não são UUID retornam ErrNotFound.
func (r *BetRepo) Get(ctx context.Context, betID string) (Bet, error) {
	if _, err := uuid.Parse(betID); err != nil {
		return Bet{}, ErrNotFound
	}
	b, err := scanBet(r.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, betID))
	if errors.Is(err, sql.ErrNoRows) {
		return Bet{}, ErrNotFound
	}
	return b, err
}

// ListByUser retorna as apostas do usuário, mais recentes primeiro
func (r *BetRepo) ListByUser(ctx context.Context, userID string) ([]Bet, error) {
	return r.list(ctx, `SELECT `+betColumns+` FROM bets WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListApproved retorna todas as apostas pagas (base do ranking)
func (r *BetRepo) ListApproved(ctx context.Context) ([]Bet, error) {
	return r.list(ctx, `SELECT `+betColumns+` FROM bets WHERE status = 'approved' ORDER BY approved_at`)
}

func (r *BetRepo) list(ctx context.Context, query string, args ...any) ([]Bet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Bet, 0)
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Approve aplica pending -> approved, gravando payment_id e approved_at
func (r *BetRepo) Approve(ctx context.Context, betID, paymentID string) (Transition, error) {
	return r.settle(ctx, betID, paymentID, StatusApproved)
}

// Reject aplica pending -> rejected
func (r *BetRepo) Reject(ctx context.Context, betID, paymentID string) (Transition, error) {
	return r.settle(ctx, betID, paymentID, StatusRejected)
}

// settle é o compare-and-set da aposta: um único UPDATE condicionado a status='pending'.
// Entregas concorrentes do mesmo pagamento disputam essa linha; só uma vê a linha alterada.
func (r *BetRepo) settle(ctx context.Context, betID, paymentID string, to Status) (Transition, error) {
	if _, err := uuid.Parse(betID); err != nil {
		return Transition{}, ErrNotFound
	}

	stampCol := "approved_at"
	if to == StatusRejected {
		stampCol = "rejected_at"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Transition{}, err
	}
	defer tx.Rollback()

	b, err := scanBet(tx.QueryRowContext(ctx, `
		UPDATE bets
		SET status = $2, payment_id = COALESCE(payment_id, $3), `+stampCol+` = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+betColumns, betID, string(to), paymentID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// já liquidada (ou inexistente): devolve o estado atual sem mutação
		cur, gerr := r.Get(ctx, betID)
		if gerr != nil {
			return Transition{}, gerr
		}
		return Transition{Applied: false, From: cur.Status, Bet: cur}, nil
	case isUniqueViolation(err):
		return Transition{}, ErrPaymentAlreadyLinked
	case err != nil:
		return Transition{}, fmt.Errorf("settle bet: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bet_transitions (bet_id, old_status, new_status, payment_id)
		VALUES ($1, 'pending', $2, $3)`, betID, string(to), paymentID); err != nil {
		return Transition{}, fmt.Errorf("insert bet transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Transition{}, err
	}
	return Transition{Applied: true, From: StatusPending, Bet: b}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
