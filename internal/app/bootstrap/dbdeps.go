// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	loginstore "github.com/dexit/dexdash/internal/app/store/logins"
	"github.com/dexit/dexdash/internal/app/store/sessions"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
// Both fields are nil when no Mongo URI is configured.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
}

// stores returns the audit stores, or nils when the database is disabled.
func (d DBDeps) stores() (*loginstore.Store, *sessions.Store) {
	if d.MongoDatabase == nil {
		return nil, nil
	}
	return loginstore.New(d.MongoDatabase), sessions.New(d.MongoDatabase)
}
