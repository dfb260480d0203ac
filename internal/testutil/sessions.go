package testutil

import (
	"context"

	"github.com/dexit/dexdash/internal/app/store/sessions"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// FindSession reads an activity session straight from the collection so
// tests can check what the handlers wrote.
func FindSession(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (sessions.Session, error) {
	var sess sessions.Session
	err := db.Collection("sessions").FindOne(ctx, bson.M{"_id": id}).Decode(&sess)
	return sess, err
}

// OpenSessions returns the sessions for username that have not been closed.
func OpenSessions(ctx context.Context, db *mongo.Database, username string) ([]sessions.Session, error) {
	cur, err := db.Collection("sessions").Find(ctx, bson.M{"username": username, "logout_at": nil})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []sessions.Session
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
