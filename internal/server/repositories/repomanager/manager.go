package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/userportal/internal/dbx"
	"github.com/dmitrijs2005/userportal/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either a connection pool or
// an open transaction, so services can run several repository calls in one
// dbx.WithTx block.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
