package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payledger/payledger/internal/apperrors"
	"github.com/payledger/payledger/internal/core/services"
	"github.com/payledger/payledger/internal/dto"
	"github.com/payledger/payledger/internal/middleware"
)

// AccountHandler exposes read-only access to the caller's settlement account.
type AccountHandler struct {
	accountService *services.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(as *services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: as}
}

func registerAccountRoutes(rg *gin.RouterGroup, accountService *services.AccountService) {
	h := NewAccountHandler(accountService)

	accounts := rg.Group("/accounts")
	{
		accounts.GET("/balance", h.GetBalance)
	}
}

// GetBalance returns the caller's current account balance. The balance only
// changes through settled transactions, so a pending transaction is not yet
// reflected here.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return
	}

	account, err := h.accountService.GetAccountForUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Account not found"})
			return
		}
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("Failed to load account",
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load account"})
		return
	}

	c.JSON(http.StatusOK, dto.ToBalanceResponse(account))
}
