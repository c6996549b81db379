package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/payledger/payledger/internal/apperrors"
	"github.com/payledger/payledger/internal/core/domain"
	"github.com/payledger/payledger/internal/core/services"
	"github.com/payledger/payledger/internal/dto"
	"github.com/payledger/payledger/internal/middleware"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// TransactionHandler initiates transactions and serves the read-only query
// surface over them.
type TransactionHandler struct {
	txnService *services.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ts *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{txnService: ts}
}

func registerTransactionRoutes(rg *gin.RouterGroup, txnService *services.TransactionService) {
	h := NewTransactionHandler(txnService)

	txns := rg.Group("/transactions")
	{
		txns.POST("", h.CreateTransaction)
		txns.GET("", h.ListTransactions)
		txns.GET("/:txnID", h.GetTransaction)
	}
}

// CreateTransaction records a pending transaction and hands it to the
// settlement pipeline. It returns 202 with the pending row; the final status
// lands asynchronously and is visible via the read endpoints.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return
	}

	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	txn, err := h.txnService.InitiateTransaction(c.Request.Context(), userID, req.Amount, domain.TransactionType(req.TxnType))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Account not found"})
		default:
			middleware.GetLoggerFromCtx(c.Request.Context()).Error("Failed to initiate transaction",
				slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to initiate transaction"})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.ToTransactionResponse(txn))
}

// GetTransaction returns one of the caller's transactions by ID.
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return
	}

	txnID := c.Param("txnID")
	txn, err := h.txnService.GetTransaction(c.Request.Context(), userID, txnID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Transaction not found"})
			return
		}
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("Failed to load transaction",
			slog.String("txn_id", txnID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load transaction"})
		return
	}

	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}

// ListTransactions pages through the caller's transactions, newest first.
// Pass next_token from a previous page to continue.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxListLimit)
	}

	var nextToken *string
	if raw := c.Query("next_token"); raw != "" {
		nextToken = &raw
	}

	txns, token, err := h.txnService.ListTransactions(c.Request.Context(), userID, limit, nextToken)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid next_token"})
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Account not found"})
		default:
			middleware.GetLoggerFromCtx(c.Request.Context()).Error("Failed to list transactions",
				slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list transactions"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToListTransactionsResponse(txns, token))
}
