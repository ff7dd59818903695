package store

import (
	"context"
	"fmt"
	"strings"

	"satstash/internal/models"
)

const tokenColumns = "id, token, mint, amount"

// InsertToken records one redeemed payment awaiting payout. The assigned row
// id is written back to token.ID.
func (s *Store) InsertToken(ctx context.Context, token *models.PendingToken) error {
	if token == nil {
		return fmt.Errorf("token is required")
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO tokens (token, mint, amount) VALUES (?, ?, ?)",
		token.Token, token.Mint, token.Amount,
	)
	if err != nil {
		return err
	}
	token.ID, err = result.LastInsertId()
	return err
}

// TokensByMint lists pending tokens for one mint in insertion order.
func (s *Store) TokensByMint(ctx context.Context, mint string) ([]models.PendingToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE mint = ? ORDER BY id`, mint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []models.PendingToken{}
	for rows.Next() {
		var t models.PendingToken
		if err := rows.Scan(&t.ID, &t.Token, &t.Mint, &t.Amount); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// MintBalances returns per-mint pending totals at or above threshold.
// A zero threshold returns every mint with pending value.
func (s *Store) MintBalances(ctx context.Context, threshold uint64) ([]models.MintBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mint, SUM(amount) AS total
		FROM tokens
		GROUP BY mint
		HAVING total >= ?
		ORDER BY mint`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := []models.MintBalance{}
	for rows.Next() {
		var b models.MintBalance
		if err := rows.Scan(&b.Mint, &b.Amount); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// DeleteTokens removes the given token rows.
func (s *Store) DeleteTokens(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args := deleteTokensQuery(ids)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// ReplaceTokens atomically deletes the given token rows and inserts one
// replacement. Either both happen or neither does, so pending value can never
// be dropped by a crash between the two. The assigned id is written back to
// replacement.ID.
func (s *Store) ReplaceTokens(ctx context.Context, ids []int64, replacement *models.PendingToken) (err error) {
	if replacement == nil {
		return fmt.Errorf("replacement token is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if len(ids) > 0 {
		query, args := deleteTokensQuery(ids)
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO tokens (token, mint, amount) VALUES (?, ?, ?)",
		replacement.Token, replacement.Mint, replacement.Amount,
	)
	if err != nil {
		return err
	}
	if replacement.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	return tx.Commit()
}

func deleteTokensQuery(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return "DELETE FROM tokens WHERE id IN (" + strings.Join(placeholders, ", ") + ")", args
}
