package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"prizeledger/internal/container"
	"prizeledger/pkg/database"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
	db        *database.PostgresDB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(c *container.Container, db *database.PostgresDB) *HealthHandler {
	return &HealthHandler{
		container: c,
		db:        db,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	log.Debug("Health check requested")

	components := map[string]string{}
	status := "healthy"

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.db.Health(ctx); err != nil {
			components["database"] = "unhealthy"
			status = "degraded"
		} else {
			components["database"] = "healthy"
		}
		cancel()
	} else {
		components["database"] = "disabled"
	}

	if redisClient := h.container.GetRedisClient(); redisClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := redisClient.Health(ctx); err != nil {
			components["redis"] = "unhealthy"
			status = "degraded"
		} else {
			components["redis"] = "healthy"
		}
		cancel()
	} else {
		components["redis"] = "disabled"
	}

	response := HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Version:    "1.0.0",
		Service:    "prizeledger",
		Components: components,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.WithError(err).Error("Failed to encode health check response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	log.Debug("Health check completed successfully")
}
