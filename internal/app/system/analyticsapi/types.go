package analyticsapi

// Summary is the KPI block returned by stats/summary.
type Summary struct {
	Registered int64   `json:"registered"`
	Enrolled   int64   `json:"enrolled"`
	Avg        float64 `json:"avg"`
	Subjects   int64   `json:"subjects"`
}

// StateTotal is one row of registrations/state-wise.
type StateTotal struct {
	State string `json:"state"`
	Total int64  `json:"total"`
}

// MonthCount is one row of registrations/month-wise.
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// ScoreRange is one bucket of the scores/range histogram.
type ScoreRange struct {
	Range    string `json:"score_range"`
	Students int64  `json:"student_count"`
}

// Identity is what auth/check reports for the current session.
// A zero Identity (empty Username) means no authenticated session.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Authenticated reports whether the identity names a user.
func (id Identity) Authenticated() bool {
	return id.Username != ""
}

// LoginRequest is the body posted to auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
