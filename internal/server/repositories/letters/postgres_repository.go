package letters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/envelope"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// listColumns excludes server_share and the envelope on purpose: listing
// paths must never touch key material.
const listColumns = `id, author_id, visibility_scope, family_id, ciphertext_ref,
		unlock_at, is_unlocked, unlocked_at, unlock_code_regenerated_at, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, letter *models.Letter) (*models.Letter, error) {

	query :=
		`INSERT INTO letters (id, author_id, visibility_scope, family_id, ciphertext_ref, encryption_iv,
			server_share, wrapped_client_share, envelope_iv, envelope_salt, kdf_algorithm, kdf_iterations, unlock_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		letter.ID, letter.AuthorID, letter.VisibilityScope, letter.FamilyID,
		letter.CiphertextRef, letter.EncryptionIV, letter.ServerShare,
		letter.Envelope.Ciphertext, letter.Envelope.IV, letter.Envelope.Salt,
		letter.Envelope.KDFAlgorithm, letter.Envelope.KDFIterations,
		letter.UnlockAt).Scan(&letter.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return letter, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Letter, error) {

	query :=
		`SELECT id, author_id, visibility_scope, family_id, ciphertext_ref, encryption_iv,
			server_share, wrapped_client_share, envelope_iv, envelope_salt, kdf_algorithm, kdf_iterations,
			unlock_at, is_unlocked, unlocked_at, unlock_code_regenerated_at, created_at, updated_at
		 FROM letters
		 WHERE id = $1
		 `

	letter := &models.Letter{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&letter.ID, &letter.AuthorID, &letter.VisibilityScope, &letter.FamilyID,
		&letter.CiphertextRef, &letter.EncryptionIV, &letter.ServerShare,
		&letter.Envelope.Ciphertext, &letter.Envelope.IV, &letter.Envelope.Salt,
		&letter.Envelope.KDFAlgorithm, &letter.Envelope.KDFIterations,
		&letter.UnlockAt, &letter.IsUnlocked, &letter.UnlockedAt,
		&letter.UnlockCodeRegeneratedAt, &letter.CreatedAt, &letter.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return letter, nil
}

func (r *PostgresRepository) GetForAuthor(ctx context.Context, id, authorID string) (*models.Letter, error) {

	query :=
		`SELECT ` + listColumns + `
		 FROM letters
		 WHERE id = $1 AND author_id = $2
		 `

	letter, err := scanListRow(r.db.QueryRowContext(ctx, query, id, authorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return letter, nil
}

func (r *PostgresRepository) ListPrivate(ctx context.Context, authorID string) ([]*models.Letter, error) {

	query :=
		`SELECT ` + listColumns + `
		 FROM letters
		 WHERE visibility_scope = 'private' AND author_id = $1
		 ORDER BY created_at DESC
		 `

	return r.queryList(ctx, query, authorID)
}

func (r *PostgresRepository) ListFamily(ctx context.Context, familyIDs []string) ([]*models.Letter, error) {

	if len(familyIDs) == 0 {
		return []*models.Letter{}, nil
	}

	placeholders := make([]string, len(familyIDs))
	args := make([]any, len(familyIDs))
	for i, id := range familyIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query :=
		`SELECT ` + listColumns + `
		 FROM letters
		 WHERE visibility_scope = 'family' AND family_id IN (` + strings.Join(placeholders, ", ") + `)
		 ORDER BY created_at DESC
		 `

	return r.queryList(ctx, query, args...)
}

func (r *PostgresRepository) UpdateSchedule(ctx context.Context, id, authorID string, unlockAt *time.Time) (bool, error) {

	query :=
		`UPDATE letters
		 SET unlock_at = $3, updated_at = NOW()
		 WHERE id = $1 AND author_id = $2 AND is_unlocked = FALSE
		 `

	res, err := r.db.ExecContext(ctx, query, id, authorID, unlockAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rowsAffected(res)
}

func (r *PostgresRepository) ReplaceEnvelope(ctx context.Context, id, authorID string, env *envelope.Envelope, at time.Time) (bool, error) {

	query :=
		`UPDATE letters
		 SET wrapped_client_share = $3, envelope_iv = $4, envelope_salt = $5,
			kdf_algorithm = $6, kdf_iterations = $7,
			unlock_code_regenerated_at = $8, updated_at = NOW()
		 WHERE id = $1 AND author_id = $2
			AND unlock_code_regenerated_at IS NULL AND is_unlocked = FALSE
		 `

	res, err := r.db.ExecContext(ctx, query, id, authorID,
		env.Ciphertext, env.IV, env.Salt, env.KDFAlgorithm, env.KDFIterations, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rowsAffected(res)
}

func (r *PostgresRepository) PromoteToLink(ctx context.Context, id string) error {

	query :=
		`UPDATE letters
		 SET visibility_scope = 'link', family_id = NULL, updated_at = NOW()
		 WHERE id = $1
		 `

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) MarkUnlocked(ctx context.Context, id string, at time.Time) (bool, error) {

	query :=
		`UPDATE letters
		 SET is_unlocked = TRUE, unlocked_at = $2, updated_at = NOW()
		 WHERE id = $1 AND is_unlocked = FALSE
		 `

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rowsAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, authorID string) (bool, error) {

	query :=
		`DELETE FROM letters
		 WHERE id = $1 AND author_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, authorID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rowsAffected(res)
}

func (r *PostgresRepository) queryList(ctx context.Context, query string, args ...any) ([]*models.Letter, error) {

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Letter{}
	for rows.Next() {
		letter, err := scanListRow(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, letter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListRow(row rowScanner) (*models.Letter, error) {
	letter := &models.Letter{}
	err := row.Scan(
		&letter.ID, &letter.AuthorID, &letter.VisibilityScope, &letter.FamilyID,
		&letter.CiphertextRef, &letter.UnlockAt, &letter.IsUnlocked,
		&letter.UnlockedAt, &letter.UnlockCodeRegeneratedAt,
		&letter.CreatedAt, &letter.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return letter, nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
