package repomanager

import (
	"context"
	"database/sql"

	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/server/repositories/profiles"
	"github.com/doclearn/doclearn/internal/server/repositories/refreshtokens"
	"github.com/doclearn/doclearn/internal/server/repositories/specializations"
)

// RepositoryManager vends repositories bound to a connection or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Profiles(db dbx.DBTX) profiles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Specializations(db dbx.DBTX) specializations.Repository
}
