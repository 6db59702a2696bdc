package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis Pinger
}

func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the backing stores so a dead pool fails the probe instead of
// the first real request.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{}
	ready := true

	if err := h.db.Ping(checkCtx); err != nil {
		deps["postgres"] = "down"
		ready = false
	} else {
		deps["postgres"] = "up"
	}

	if err := h.redis.Ping(checkCtx); err != nil {
		deps["redis"] = "down"
		ready = false
	} else {
		deps["redis"] = "up"
	}

	status := http.StatusOK
	label := "ready"

	if !ready {
		status = http.StatusServiceUnavailable
		label = "not_ready"
	}

	ctx.JSON(status, gin.H{"status": label, "dependencies": deps})
}
