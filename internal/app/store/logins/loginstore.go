// internal/app/store/logins/loginstore.go
package loginstore

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dexit/dexdash/internal/app/system/ratelimit"
	"github.com/dexit/dexdash/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("login_records")}
}

// EnsureIndexes creates the recent-activity and per-user indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_login_records_created"),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_login_records_user"),
		},
	})
	return err
}

// Create inserts a LoginRecord. If CreatedAt is zero, it's set to time.Now().UTC().
func (s *Store) Create(ctx context.Context, rec models.LoginRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// CreateFrom builds a LoginRecord from the HTTP request and inserts it.
// reason is empty for a successful attempt.
func (s *Store) CreateFrom(ctx context.Context, r *http.Request, username, reason string) error {
	return s.Create(ctx, models.LoginRecord{
		Username:  strings.ToLower(strings.TrimSpace(username)),
		Success:   reason == models.LoginReasonOK,
		Reason:    reason,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}
