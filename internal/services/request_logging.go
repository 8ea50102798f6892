package services

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const reqIDKey = "reqId"

func RequestLogger(logger *log.Logger) fiber.Handler {
	base := logger.With("component", "http")

	return func(c *fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(reqIDKey, reqID)
		c.Set("X-Request-Id", reqID)

		start := time.Now()
		path := c.Path()
		method := c.Method()

		// The User-Agent can get extremely long; keep it bounded.
		ua := strings.TrimSpace(string(c.Context().UserAgent()))
		if len(ua) > 200 {
			ua = ua[:200]
		}

		base.Debug("request started", "reqId", reqID, "method", method, "path", path, "ip", c.IP(), "ua", ua, "bytes", len(c.Body()))

		err := c.Next()
		dur := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			base.Error("request failed", "reqId", reqID, "method", method, "path", path, "status", status, "dur", dur.String(), "err", err)
			return err
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			base.Error("request completed", "reqId", reqID, "method", method, "path", path, "status", status, "dur", dur.String())
		case status >= fiber.StatusBadRequest:
			base.Warn("request completed", "reqId", reqID, "method", method, "path", path, "status", status, "dur", dur.String())
		default:
			base.Info("request completed", "reqId", reqID, "method", method, "path", path, "status", status, "dur", dur.String())
		}
		return nil
	}
}

func ReqID(c *fiber.Ctx) string {
	if v := c.Locals(reqIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func HttpLogger(logger *log.Logger, action string, c *fiber.Ctx) *log.Logger {
	return logger.With(
		"component", "api",
		"action", action,
		"reqId", ReqID(c),
		"method", c.Method(),
		"path", c.Path(),
	)
}
