package router

import (
	"net/http"
	"time"

	"github.com/erp/directdebit/internal/infrastructure/logger"
	"github.com/erp/directdebit/internal/interfaces/http/handler"
	"github.com/erp/directdebit/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the endpoints of the direct debit API
type Handlers struct {
	Mandates *handler.MandateHandler
	Orders   *handler.OrderHandler
	Files    *handler.FileHandler
	Tools    *handler.ToolsHandler
}

// DirectDebitRoutes groups the direct debit endpoints under /direct-debit
func DirectDebitRoutes(h Handlers) *DomainGroup {
	dd := NewDomainGroup("direct-debit", "/direct-debit")

	dd.Group("mandates", "/mandates").
		POST("", h.Mandates.Create).
		GET("", h.Mandates.List).
		GET("/:id", h.Mandates.Get).
		POST("/:id/validate", h.Mandates.Validate).
		POST("/:id/cancel", h.Mandates.Cancel).
		POST("/:id/draft", h.Mandates.BackToDraft).
		PUT("/:id/bank-account", h.Mandates.ChangeBankAccount)

	dd.Group("orders", "/orders").
		POST("", h.Orders.Create).
		GET("", h.Orders.List).
		POST("/mark", h.Orders.Mark).
		POST("/unmark", h.Orders.Unmark).
		GET("/:id", h.Orders.Get).
		POST("/:id/confirm", h.Orders.Confirm).
		POST("/:id/cancel", h.Orders.Cancel).
		POST("/:id/split", h.Orders.Split)

	dd.Group("files", "/files").
		POST("", h.Files.Create).
		GET("", h.Files.List).
		GET("/:id", h.Files.Get).
		DELETE("/:id", h.Files.Cancel).
		POST("/:id/send", h.Files.Send).
		GET("/:id/content", h.Files.Content).
		GET("/:id/download-url", h.Files.DownloadURL)

	dd.GET("/checksum/:number", h.Tools.Checksum).
		GET("/due-date", h.Tools.DueDate)

	return dd
}

// EngineConfig holds the settings of the HTTP engine
type EngineConfig struct {
	Mode           string // gin mode: debug, release, test
	MaxBodySize    int64
	TrustedProxies []string
	CORS           middleware.CORSConfig
	// Ping reports the health of the backing services, nil means always healthy
	Ping func() error
}

// NewEngine creates the gin engine with the common middleware chain, a
// health endpoint and the direct debit routes
func NewEngine(cfg EngineConfig, log *zap.Logger, h Handlers) (*gin.Engine, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORS(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	engine.GET("/health", healthHandler(cfg.Ping))

	NewRouter(engine).Register(DirectDebitRoutes(h)).Setup()
	return engine, nil
}

func healthHandler(ping func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UTC().Format(time.RFC3339)
		if ping != nil {
			if err := ping(); err != nil {
				logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "time": now, "database": "error"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": now, "database": "ok"})
	}
}
