// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Session creation sources
const (
	CreatedByLogin     = "login"
	CreatedByHeartbeat = "heartbeat" // reopened after an inactivity close
)

// Session end reasons
const (
	EndLogout   = "logout"
	EndInactive = "inactive"
	EndReplaced = "replaced" // a newer login for the same user
	EndRejected = "rejected" // the backend no longer accepts the credentials
)

// Session tracks one signed-in stretch of dashboard use.
type Session struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Username string             `bson:"username"`

	// Timing
	LoginAt      time.Time  `bson:"login_at"`
	LogoutAt     *time.Time `bson:"logout_at,omitempty"`
	LastActiveAt time.Time  `bson:"last_active_at"`

	// Current activity
	CurrentPage string `bson:"current_page,omitempty"`

	CreatedBy string `bson:"created_by,omitempty"`
	EndReason string `bson:"end_reason,omitempty"`

	// Context
	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	// Computed on session close
	DurationSecs int64 `bson:"duration_secs,omitempty"`
}

// Store manages user activity sessions.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a new sessions Store.
func New(db *mongo.Database) *Store {
	return &Store{
		c:   db.Collection("sessions"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Open sessions, oldest activity first (cleanup sweep)
		{
			Keys:    bson.D{{Key: "logout_at", Value: 1}, {Key: "last_active_at", Value: 1}},
			Options: options.Index().SetName("idx_sessions_active"),
		},
		// User session history
		{
			Keys:    bson.D{{Key: "username", Value: 1}, {Key: "login_at", Value: -1}},
			Options: options.Index().SetName("idx_sessions_user"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create starts a new session for username, closing any it still has open.
func (s *Store) Create(ctx context.Context, username, ip, userAgent, createdBy string) (Session, error) {
	if _, err := s.closeWhere(ctx, bson.D{
		{Key: "username", Value: username},
		{Key: "logout_at", Value: nil},
	}, "$$NOW", EndReplaced); err != nil {
		return Session{}, err
	}

	now := s.now()
	sess := Session{
		ID:           primitive.NewObjectID(),
		Username:     username,
		LoginAt:      now,
		LastActiveAt: now,
		CreatedBy:    createdBy,
		IP:           ip,
		UserAgent:    userAgent,
	}

	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Close ends an open session with the given reason and records its duration.
// Closing an already-closed or unknown session is not an error.
func (s *Store) Close(ctx context.Context, sessionID primitive.ObjectID, reason string) error {
	_, err := s.closeWhere(ctx, bson.D{
		{Key: "_id", Value: sessionID},
		{Key: "logout_at", Value: nil},
	}, "$$NOW", reason)
	return err
}

// CloseHex is Close for an id kept as a hex string (the cookie form).
func (s *Store) CloseHex(ctx context.Context, hexID, reason string) error {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return err
	}
	return s.Close(ctx, id, reason)
}

// Touch records activity on an open session and the page being viewed.
// It reports false when the session is closed or unknown.
func (s *Store) Touch(ctx context.Context, sessionID primitive.ObjectID, currentPage string) (bool, error) {
	set := bson.M{"last_active_at": s.now()}
	if currentPage != "" {
		set["current_page"] = currentPage
	}

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": sessionID, "logout_at": nil},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// TouchHex is Touch for an id kept as a hex string.
func (s *Store) TouchHex(ctx context.Context, hexID, currentPage string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return false, err
	}
	return s.Touch(ctx, id, currentPage)
}

// CloseInactive closes open sessions idle longer than inactiveThreshold.
// logout_at is set to the last activity, not to now, so durations reflect
// actual use.
func (s *Store) CloseInactive(ctx context.Context, inactiveThreshold time.Duration) (int64, error) {
	cutoff := s.now().Add(-inactiveThreshold)
	return s.closeWhere(ctx, bson.D{
		{Key: "logout_at", Value: nil},
		{Key: "last_active_at", Value: bson.M{"$lt": cutoff}},
	}, "$last_active_at", EndInactive)
}

// closeWhere closes every session matching filter with a pipeline update so
// the duration is computed server-side from login_at. at is an aggregation
// expression for the logout time.
func (s *Store) closeWhere(ctx context.Context, filter bson.D, at string, reason string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "logout_at", Value: at},
			{Key: "end_reason", Value: reason},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "duration_secs", Value: bson.D{{Key: "$toLong", Value: bson.D{
				{Key: "$divide", Value: bson.A{
					bson.D{{Key: "$subtract", Value: bson.A{"$logout_at", "$login_at"}}},
					1000,
				}},
			}}}},
		}}},
	}

	res, err := s.c.UpdateMany(ctx, filter, pipeline)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
