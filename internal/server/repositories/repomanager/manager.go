package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cookieauth/internal/dbx"
	"github.com/dmitrijs2005/cookieauth/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB handle or a running
// transaction, and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
