package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"docconv/internal/config"
	"docconv/internal/domain"
	"docconv/internal/infra/logging"
	"docconv/internal/tokens"
)

// APIKeyLocal is the fiber.Ctx locals key holding an authenticated API key.
const APIKeyLocal = "api_key"

// Options carries what Register needs besides the configuration.
type Options struct {
	// Tokens enables X-API-Key authentication when non-nil.
	Tokens *tokens.Cache
	// Storage backs the rate limiters. Nil uses fiber's in-memory default.
	Storage fiber.Storage
}

// Register attaches global middleware to the app.
func Register(app *fiber.App, cfg config.Config, opts Options) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(cfg.Server.CORSOrigins),
	}))

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New())

	if opts.Tokens != nil {
		app.Use(apiKeyAuth(opts.Tokens))
		app.Use(newTokenLimiters(opts.Tokens, cfg.RateLimiter, opts.Storage).middleware())
	}

	if cfg.RateLimiter.UserLimit > 0 {
		app.Use(userRateLimit(cfg.RateLimiter, opts.Storage))
	}

	app.Use(func(c *fiber.Ctx) error {
		requestID, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	})
}

func corsOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}

func apiKeyAuth(store *tokens.Cache) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !store.Ready() {
				return false, domain.ErrTokenStoreNotReady
			}
			if !store.Valid(key) {
				return false, domain.ErrInvalidAPIKey
			}
			return true, nil
		},
		// Anonymous requests pass and fall under the user limiter.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth can call ErrorHandler with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, domain.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return errorJSON(c, status, err.Error())
		},
	})
}

// RequireScope rejects authenticated requests whose key is not scoped for op.
// Anonymous requests pass.
func RequireScope(store *tokens.Cache, op string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, ok := c.Locals(APIKeyLocal).(string)
		if store == nil || !ok || key == "" || store.Allows(key, op) {
			return c.Next()
		}
		logging.Warn("API key not allowed for operation", "op", op, "path", c.Path())
		return errorJSON(c, fiber.StatusForbidden, "API key not allowed for "+op)
	}
}

// tokenLimiters holds one limiter per distinct token rate limit.
type tokenLimiters struct {
	store   *tokens.Cache
	cfg     config.RateLimiterConfig
	storage fiber.Storage

	mu       sync.RWMutex
	handlers map[int]fiber.Handler
}

func newTokenLimiters(store *tokens.Cache, cfg config.RateLimiterConfig, storage fiber.Storage) *tokenLimiters {
	return &tokenLimiters{store: store, cfg: cfg, storage: storage, handlers: make(map[int]fiber.Handler)}
}

// get returns the cached limiter for limit, creating one if needed.
func (t *tokenLimiters) get(limit int) fiber.Handler {
	t.mu.RLock()
	h, ok := t.handlers[limit]
	t.mu.RUnlock()
	if ok {
		return h
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.handlers[limit]; ok {
		return h
	}
	h = limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        t.cfg.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           t.storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			token, _ := c.Locals(APIKeyLocal).(string)
			return "token:" + token
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "client", "token", "path", c.Path())
			return errorJSON(c, fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
	t.handlers[limit] = h
	return h
}

func (t *tokenLimiters) middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(APIKeyLocal).(string)
		if !ok || token == "" {
			return c.Next()
		}
		limit := t.store.RateLimit(token)
		if limit <= 0 || t.cfg.Interval <= 0 {
			return c.Next()
		}
		return t.get(limit)(c)
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get("User-Agent")))
	return hex.EncodeToString(sum[:])
}

// userRateLimit limits anonymous clients by IP and user agent. Requests with an
// API key are limited by their token instead.
func userRateLimit(cfg config.RateLimiterConfig, storage fiber.Storage) fiber.Handler {
	userLimiter := limiter.New(limiter.Config{
		Max:               cfg.UserLimit,
		Expiration:        cfg.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "user:" + clientKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return errorJSON(c, fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
	return func(c *fiber.Ctx) error {
		if token, ok := c.Locals(APIKeyLocal).(string); ok && token != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
