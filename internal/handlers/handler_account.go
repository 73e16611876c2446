package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/dto"
	"github.com/pesacore/corebanking/internal/middleware"
)

// accountHandler handles HTTP requests related to accounts.
type accountHandler struct {
	accountService portssvc.AccountSvcFacade
	engine         portssvc.TransactionEngineSvcFacade
}

func newAccountHandler(as portssvc.AccountSvcFacade, engine portssvc.TransactionEngineSvcFacade) *accountHandler {
	return &accountHandler{accountService: as, engine: engine}
}

// registerAccountRoutes registers routes related to accounts.
func registerAccountRoutes(rg *gin.RouterGroup, as portssvc.AccountSvcFacade, engine portssvc.TransactionEngineSvcFacade) {
	h := newAccountHandler(as, engine)

	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.openAccount)
		accounts.GET("/:id", h.getAccount)
		accounts.GET("/:id/balance", h.getBalance)
		accounts.PATCH("/:id/status", h.updateStatus)
		accounts.GET("/verify/:number", h.verifyAccount)
	}
}

func (h *accountHandler) openAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for OpenAccount", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	callerID, ok := middleware.GetCallerIDFromGin(c)
	if !ok {
		logger.Error("Caller ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	account, err := h.accountService.OpenAccount(c.Request.Context(), req, callerID)
	if err != nil {
		respondServiceError(c, err, "open account")
		return
	}

	// Seed the opening balance as the account's first deposit so the ledger
	// explains the balance from entry one.
	if req.OpeningBalance.GreaterThan(decimal.Zero) {
		result, err := h.engine.Deposit(c.Request.Context(), dto.DepositRequest{
			AccountID:   account.AccountID,
			Amount:      req.OpeningBalance,
			Channel:     domain.ChannelBranch,
			Description: "Opening balance",
		})
		if err != nil {
			respondServiceError(c, err, "post opening balance")
			return
		}
		account.Balance = result.NewBalance
		account.AvailableBalance = result.NewBalance
	}

	logger.Info("Account opened",
		slog.String("account_id", account.AccountID),
		slog.String("account_number", account.AccountNumber))
	c.JSON(http.StatusCreated, dto.ToAccountResponse(account))
}

func (h *accountHandler) getAccount(c *gin.Context) {
	account, err := h.accountService.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "retrieve account")
		return
	}
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

func (h *accountHandler) getBalance(c *gin.Context) {
	balance, err := h.accountService.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "retrieve balance")
		return
	}
	c.JSON(http.StatusOK, balance)
}

type updateStatusRequest struct {
	Status domain.AccountStatus `json:"status" binding:"required,oneof=active dormant frozen closed"`
}

func (h *accountHandler) updateStatus(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for status update", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	callerID, ok := middleware.GetCallerIDFromGin(c)
	if !ok {
		logger.Error("Caller ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.accountService.UpdateAccountStatus(c.Request.Context(), c.Param("id"), req.Status, callerID); err != nil {
		respondServiceError(c, err, "update account status")
		return
	}
	c.Status(http.StatusNoContent)
}

// verifyAccount confirms a beneficiary before a transfer. It intentionally
// discloses only the holder name and product.
func (h *accountHandler) verifyAccount(c *gin.Context) {
	verification, err := h.accountService.VerifyAccount(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondServiceError(c, err, "verify account")
		return
	}
	c.JSON(http.StatusOK, verification)
}
