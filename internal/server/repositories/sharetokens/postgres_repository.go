package sharetokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, token, letter_id, status, replaced_by_token, revoked_reason,
		view_count, last_accessed_at, created_at, revoked_at, rotated_at`

func (r *PostgresRepository) Create(ctx context.Context, token *models.ShareToken) (*models.ShareToken, error) {

	query :=
		`INSERT INTO share_tokens (id, token, letter_id, status)
		 VALUES ($1, $2, $3, 'active')
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query, token.ID, token.Token, token.LetterID).Scan(&token.ID)

	if err != nil {
		// The partial unique index on (letter_id) WHERE status='active'
		// backs the single-active-token invariant.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	token.Status = models.TokenStatusActive
	return token, nil
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.ShareToken, error) {

	query :=
		`SELECT ` + tokenColumns + `
		 FROM share_tokens
		 WHERE token = $1
		 `

	return r.queryOne(ctx, query, token)
}

func (r *PostgresRepository) GetActiveByLetter(ctx context.Context, letterID string) (*models.ShareToken, error) {

	query :=
		`SELECT ` + tokenColumns + `
		 FROM share_tokens
		 WHERE letter_id = $1 AND status = 'active'
		 `

	return r.queryOne(ctx, query, letterID)
}

func (r *PostgresRepository) Revoke(ctx context.Context, letterID string, reason *string, at time.Time) (bool, error) {

	query :=
		`UPDATE share_tokens
		 SET status = 'revoked', revoked_reason = $2, revoked_at = $3
		 WHERE letter_id = $1 AND status = 'active'
		 `

	res, err := r.db.ExecContext(ctx, query, letterID, reason, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rowsAffected(res)
}

func (r *PostgresRepository) Rotate(ctx context.Context, letterID, newToken string, at time.Time) (bool, error) {

	query :=
		`UPDATE share_tokens
		 SET status = 'rotated', replaced_by_token = $2, rotated_at = $3
		 WHERE letter_id = $1 AND status = 'active'
		 `

	res, err := r.db.ExecContext(ctx, query, letterID, newToken, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rowsAffected(res)
}

func (r *PostgresRepository) RecordAccess(ctx context.Context, token string, at time.Time) error {

	query :=
		`UPDATE share_tokens
		 SET view_count = view_count + 1, last_accessed_at = $2
		 WHERE token = $1
		 `

	_, err := r.db.ExecContext(ctx, query, token, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, arg any) (*models.ShareToken, error) {

	token := &models.ShareToken{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&token.ID, &token.Token, &token.LetterID, &token.Status,
		&token.ReplacedByToken, &token.RevokedReason,
		&token.ViewCount, &token.LastAccessedAt,
		&token.CreatedAt, &token.RevokedAt, &token.RotatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return token, nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
