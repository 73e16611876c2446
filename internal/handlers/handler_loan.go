package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/dto"
	"github.com/pesacore/corebanking/internal/middleware"
)

// loanHandler handles HTTP requests for loan disbursement and repayment.
type loanHandler struct {
	engine portssvc.TransactionEngineSvcFacade
	loans  portssvc.LoanSvcFacade
}

func newLoanHandler(engine portssvc.TransactionEngineSvcFacade, loans portssvc.LoanSvcFacade) *loanHandler {
	return &loanHandler{engine: engine, loans: loans}
}

// registerLoanRoutes registers routes related to loans.
func registerLoanRoutes(rg *gin.RouterGroup, engine portssvc.TransactionEngineSvcFacade, loans portssvc.LoanSvcFacade) {
	h := newLoanHandler(engine, loans)

	group := rg.Group("/loans")
	{
		group.POST("/disbursements", h.disburse)
		group.POST("/repayments", h.repay)
		group.GET("/:id", h.getLoan)
	}
}

func (h *loanHandler) disburse(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.DisburseLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for disbursement", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, err := h.engine.DisburseLoan(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "disburse loan")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *loanHandler) repay(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RepayLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for repayment", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, err := h.engine.RepayLoan(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "repay loan")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *loanHandler) getLoan(c *gin.Context) {
	loan, err := h.loans.GetLoan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "retrieve loan")
		return
	}
	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))
}
