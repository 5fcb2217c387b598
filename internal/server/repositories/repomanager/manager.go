// Package repomanager hands out repositories bound to a specific DBTX so
// services can compose several repositories inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/metabot/lockr/internal/dbx"
	"github.com/metabot/lockr/internal/server/repositories/entries"
	"github.com/metabot/lockr/internal/server/repositories/resettokens"
	"github.com/metabot/lockr/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Entries(db dbx.DBTX) entries.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
}
