package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	apperrors "github.com/lgc13/gateway-service-example/pkg/util"
)

// ProxyHandler forwards authenticated requests to the backend unchanged.
type ProxyHandler struct {
	upstreamURL string
	logger      *zap.Logger
}

// NewProxyHandler constructs the handler around the configured upstream.
func NewProxyHandler(upstreamURL string, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{upstreamURL: strings.TrimSuffix(upstreamURL, "/"), logger: logger}
}

// Forward handles every method under /api, stripping the /api prefix before
// handing the request to the upstream.
func (h *ProxyHandler) Forward(c *fiber.Ctx) error {
	if h.upstreamURL == "" {
		return apperrors.NewUnavailable(nil)
	}

	target := h.upstreamURL + strings.TrimPrefix(c.OriginalURL(), "/api")
	if err := proxy.Do(c, target); err != nil {
		h.logger.Error("upstream request failed", zap.String("target", target), zap.Error(err))
		return apperrors.NewUnavailable(err)
	}
	// The upstream response identifies itself.
	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}
