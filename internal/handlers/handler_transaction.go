package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pesacore/corebanking/internal/core/domain"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/dto"
	"github.com/pesacore/corebanking/internal/middleware"
)

// transactionHandler handles HTTP requests for money movement.
type transactionHandler struct {
	engine  portssvc.TransactionEngineSvcFacade
	account portssvc.AccountSvcFacade
}

func newTransactionHandler(engine portssvc.TransactionEngineSvcFacade, account portssvc.AccountSvcFacade) *transactionHandler {
	return &transactionHandler{engine: engine, account: account}
}

// registerTransactionRoutes registers routes for the transaction engine.
func registerTransactionRoutes(rg *gin.RouterGroup, engine portssvc.TransactionEngineSvcFacade, account portssvc.AccountSvcFacade) {
	h := newTransactionHandler(engine, account)

	transactions := rg.Group("/transactions")
	{
		transactions.POST("/deposits", h.deposit)
		transactions.POST("/withdrawals", h.withdraw)
		transactions.POST("/transfers", h.transfer)
		transactions.POST("/bill-payments", h.payBill)
		transactions.POST("/reversals", h.reverse)
		transactions.POST("/interest-credits", h.creditInterest)
	}
}

func (h *transactionHandler) deposit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for deposit", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, err := h.engine.Deposit(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "process deposit")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *transactionHandler) withdraw(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for withdrawal", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	// Agent and ATM withdrawals carry the customer's transaction PIN.
	if req.Channel == domain.ChannelAgent || req.Channel == domain.ChannelATM {
		if err := h.account.VerifyPIN(c.Request.Context(), req.AccountID, req.PIN); err != nil {
			logger.Warn("PIN verification failed", slog.String("account_id", req.AccountID))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "PIN verification failed"})
			return
		}
	}

	result, err := h.engine.Withdraw(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "process withdrawal")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *transactionHandler) transfer(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for transfer", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, err := h.engine.Transfer(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "process transfer")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *transactionHandler) payBill(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.BillPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for bill payment", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, err := h.engine.PayBill(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "process bill payment")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *transactionHandler) reverse(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ReversalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for reversal", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, err := h.engine.Reverse(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "process reversal")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *transactionHandler) creditInterest(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.InterestCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for interest credit", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, err := h.engine.CreditInterest(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "credit interest")
		return
	}
	c.JSON(http.StatusCreated, result)
}
