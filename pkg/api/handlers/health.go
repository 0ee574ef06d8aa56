package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/alpacaswitch/pkg/api/types"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

// RosterStatus is the read side of the roster manager.
type RosterStatus interface {
	Snapshot() *roster.Roster
	Discovering() bool
}

// TransactionCounter reports the last allocated server transaction id.
type TransactionCounter interface {
	LastTransactionID() uint32
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	roster  RosterStatus
	counter TransactionCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(status RosterStatus, counter TransactionCounter) *HealthHandler {
	return &HealthHandler{roster: status, counter: counter}
}

// Health handles GET /health. The server reports "starting" with 503 until
// the first discovery cycle has produced a roster.
// @Summary      Health check
// @Description  Reports roster size, discovery activity and the last server transaction id
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Roster built"
// @Failure      503  {object}  types.HealthResponse  "First discovery not finished"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	snap := h.roster.Snapshot()

	resp := types.HealthResponse{
		Status:       "healthy",
		Switches:     snap.Len(),
		Discovering:  h.roster.Discovering(),
		Transactions: h.counter.LastTransactionID(),
		Timestamp:    time.Now(),
	}

	httpStatus := http.StatusOK
	if built := snap.BuiltAt(); built.IsZero() {
		resp.Status = "starting"
		httpStatus = http.StatusServiceUnavailable
	} else {
		resp.LastDiscovery = &built
	}

	c.JSON(httpStatus, resp)
}
