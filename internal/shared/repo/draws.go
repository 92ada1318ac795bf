package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// DrawRepo é somente leitura: sorteios são cadastrados pelo painel admin
type DrawRepo struct{ db *sql.DB }

func NewDrawRepo(db *sql.DB) *DrawRepo { return &DrawRepo{db: db} }

func scanDraw(row rowScanner) (Draw, error) {
	var (
		d       Draw
		numbers []byte
	)
	if err := row.Scan(&d.ID, &d.ContestNumber, &numbers, &d.DrawDate); err != nil {
		return Draw{}, err
	}
	if err := json.Unmarshal(numbers, &d.Numbers); err != nil {
		return Draw{}, fmt.Errorf("decode draw numbers: %w", err)
	}
	return d, nil
}

// Current retorna o sorteio mais recente por draw_date
func (r *DrawRepo) Current(ctx context.Context) (Draw, error) {
	d, err := scanDraw(r.db.QueryRowContext(ctx, `
		SELECT id, contest_number, numbers, draw_date
		FROM draws ORDER BY draw_date DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return Draw{}, ErrNotFound
	}
	return d, err
}

// List retorna o histórico de sorteios, mais recentes primeiro. limit <= 0 traz todos.
func (r *DrawRepo) List(ctx context.Context, limit int) ([]Draw, error) {
	query := `SELECT id, contest_number, numbers, draw_date FROM draws ORDER BY draw_date DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Draw, 0)
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
