package repomanager

import (
	"context"
	"database/sql"

	"github.com/newsplatform/sessiond/internal/dbx"
	"github.com/newsplatform/sessiond/internal/server/repositories/accesstokens"
	"github.com/newsplatform/sessiond/internal/server/repositories/refreshtokens"
	"github.com/newsplatform/sessiond/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB handle (a pool or a
// transaction), so services can run multi-repository work atomically.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	AccessTokens(db dbx.DBTX) accesstokens.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
