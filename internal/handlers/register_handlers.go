package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/payledger/payledger/internal/core/services"
	"github.com/payledger/payledger/internal/middleware"
	"github.com/payledger/payledger/internal/platform/config"
)

// Services bundles the service layer for route registration.
type Services struct {
	User        *services.UserService
	Account     *services.AccountService
	Transaction *services.TransactionService
}

// RegisterRoutes sets up all application routes.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, svcs Services) {
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	registerAuthRoutes(r, cfg, svcs.User)

	setupAPIV1Routes(r, cfg, svcs)
}

// setupAPIV1Routes configures the authenticated /api/v1 group.
func setupAPIV1Routes(r *gin.Engine, cfg *config.Config, svcs Services) {
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret, svcs.User))

	authHandler := NewAuthHandler(svcs.User, cfg)
	v1.GET("/auth/me", authHandler.Me)

	registerProfileRoutes(v1, svcs.User)
	registerAccountRoutes(v1, svcs.Account)
	registerTransactionRoutes(v1, svcs.Transaction)
}
