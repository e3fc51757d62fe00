// Package repomanager wires repository implementations to database handles.
// Repositories are constructed per call against either the pooled *sql.DB or
// a transactional handle, so services can compose them inside dbx.WithTx.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/letters"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/reminders"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/sharetokens"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Letters(db dbx.DBTX) letters.Repository
	ShareTokens(db dbx.DBTX) sharetokens.Repository
	Reminders(db dbx.DBTX) reminders.Repository
}
