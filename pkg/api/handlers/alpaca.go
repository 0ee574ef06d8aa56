package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/alpacaswitch/pkg/alpaca"
)

// Dispatcher turns one raw request into an Alpaca response.
type Dispatcher interface {
	Dispatch(ctx context.Context, verb, path, body string) alpaca.Response
}

// AlpacaHandler feeds every request outside the service endpoints to the
// Alpaca dispatcher.
type AlpacaHandler struct {
	dispatcher Dispatcher
}

// NewAlpacaHandler creates a new Alpaca handler
func NewAlpacaHandler(dispatcher Dispatcher) *AlpacaHandler {
	return &AlpacaHandler{dispatcher: dispatcher}
}

// Serve handles any verb on any path. The request URI is passed through
// untouched so the dispatcher sees the query string exactly as sent. A body
// that cannot be read is treated as empty, so the request still gets a
// transaction id and the dispatcher's error envelope.
// @Summary      Alpaca switch method
// @Tags         alpaca
// @Produce      json,plain
// @Param        device_number        path      int     true   "Device number (always 0)"
// @Param        method               path      string  true   "Method name, lowercase"
// @Param        Id                   query     int     false  "Switch index"
// @Param        ClientID             query     int     false  "Client id"
// @Param        ClientTransactionID  query     int     false  "Client transaction id, echoed back"
// @Success      200  {object}  types.AlpacaResponse
// @Failure      400  {string}  string  "Invalid request"
// @Failure      500  {string}  string  "Device error"
// @Router       /api/v1/switch/{device_number}/{method} [get]
// @Router       /api/v1/switch/{device_number}/{method} [put]
func (h *AlpacaHandler) Serve(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		_ = c.Error(fmt.Errorf("read body: %w", err))
		body = nil
	}

	resp := h.dispatcher.Dispatch(c.Request.Context(), c.Request.Method, c.Request.RequestURI, string(body))

	payload, contentType, err := resp.Encode()
	if err != nil {
		_ = c.Error(fmt.Errorf("encode response: %w", err))
		c.String(http.StatusInternalServerError, "Unable to encode response")
		return
	}

	c.Data(resp.Status, contentType, payload)
}
