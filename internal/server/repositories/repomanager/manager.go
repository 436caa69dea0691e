package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/xtouch/internal/dbx"
	"github.com/dmitrijs2005/xtouch/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/xtouch/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/xtouch/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so services can run
// the same code against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
