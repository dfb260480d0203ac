package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dexit/dexdash/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger reports whether the analytics backend answers at all.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Upstream Pinger
	Client   *mongo.Client // nil when no audit database is configured
	Log      *zap.Logger
}

// NewHandler constructs a health Handler. client may be nil.
func NewHandler(upstream Pinger, client *mongo.Client, logger *zap.Logger) *Handler {
	return &Handler{
		Upstream: upstream,
		Client:   client,
		Log:      logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream"`
	Database string `json:"database"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "upstream":"reachable", "database":"connected" }
//
// database is "disabled" when no Mongo URI is configured. On failure: 503 and
//
//	{ "status":"error", "upstream":"unreachable", "message":"Analytics backend unavailable", "error":"…" }
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Upstream: "reachable",
		Database: "disabled",
	}

	if err := h.Upstream.Ping(ctx); err != nil {
		h.Log.Error("health-check: upstream ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Upstream = "unreachable"
		resp.Message = "Analytics backend unavailable"
		resp.Error = err.Error()
	}

	if h.Client != nil {
		resp.Database = "connected"
		if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
			h.Log.Error("health-check: mongo ping failed", zap.Error(err))
			resp.Database = "disconnected"
			if resp.Status == "ok" {
				resp.Status = "error"
				resp.Message = "Database unavailable"
				resp.Error = err.Error()
			}
		}
	}

	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
