package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Login attempt outcomes recorded in LoginRecord.Reason.
const (
	LoginReasonOK          = ""
	LoginReasonInvalid     = "invalid_form"
	LoginReasonRejected    = "rejected"    // backend answered 401/403
	LoginReasonUnavailable = "unavailable" // backend unreachable or 5xx
	LoginReasonRateLimited = "rate_limited"
	LoginReasonSessionSave = "session_error"
)

// LoginRecord captures a single login attempt against the analytics backend.
// CreatedAt is indexed for recent-activity views.
type LoginRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Success   bool               `bson:"success"`
	Reason    string             `bson:"reason,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	IP        string             `bson:"ip"`
	UserAgent string             `bson:"user_agent,omitempty"`
}
