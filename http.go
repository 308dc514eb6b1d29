package authgate

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultAllowOrigin is the CORS origin used when none is configured.
const DefaultAllowOrigin = "http://localhost:5173"

// SendVerificationEndpoint serves POST /send-verification for browsers.
type SendVerificationEndpoint struct {
	handler     *SendVerificationHandler
	allowOrigin string
	logger      Logger
}

// NewSendVerificationEndpoint creates the endpoint. An empty allowOrigin
// falls back to DefaultAllowOrigin.
func NewSendVerificationEndpoint(handler *SendVerificationHandler, allowOrigin string) *SendVerificationEndpoint {
	if strings.TrimSpace(allowOrigin) == "" {
		allowOrigin = DefaultAllowOrigin
	}
	return &SendVerificationEndpoint{
		handler:     handler,
		allowOrigin: allowOrigin,
		logger:      defLogger{},
	}
}

// WithLogger sets the logger
func (e *SendVerificationEndpoint) WithLogger(logger Logger) *SendVerificationEndpoint {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Register mounts the endpoint on every method so non POST requests get a
// 405 with the CORS headers attached.
func (e *SendVerificationEndpoint) Register(app fiber.Router, path string) {
	app.All(path, e.Handle)
}

// Handle is the fiber handler.
func (e *SendVerificationEndpoint) Handle(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAccessControlAllowOrigin, e.allowOrigin)
	c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type")

	switch c.Method() {
	case fiber.MethodOptions:
		// SendStatus would write the status text as the body.
		c.Status(fiber.StatusOK)
		return nil
	case fiber.MethodPost:
	default:
		return c.Status(fiber.StatusMethodNotAllowed).SendString("Method Not Allowed")
	}

	// Unparseable bodies are treated as empty.
	var msg SendVerificationMessage
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &msg); err != nil {
			msg = SendVerificationMessage{}
		}
	}

	err := e.handler.Execute(c.UserContext(), msg)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"ok": true})
	case errors.Is(err, ErrEmailRequired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrEmailRequired.Message})
	default:
		e.logger.Error("/send-verification failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrDeliveryFailed.Message})
	}
}
