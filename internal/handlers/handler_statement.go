package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/dto"
	"github.com/pesacore/corebanking/internal/middleware"
)

// statementHandler serves statement queries over the ledger.
type statementHandler struct {
	statements portssvc.StatementSvcFacade
}

// registerStatementRoutes registers the statement route.
func registerStatementRoutes(rg *gin.RouterGroup, statements portssvc.StatementSvcFacade) {
	h := &statementHandler{statements: statements}
	rg.GET("/accounts/:id/statement", h.getStatement)
}

// getStatement builds a statement for [from, to]; to is inclusive of the
// whole named day.
func (h *statementHandler) getStatement(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		logger.Warn("Invalid from date", slog.String("from", c.Query("from")))
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be a date in YYYY-MM-DD form"})
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		logger.Warn("Invalid to date", slog.String("to", c.Query("to")))
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be a date in YYYY-MM-DD form"})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must not precede from"})
		return
	}

	statement, err := h.statements.Build(c.Request.Context(), c.Param("id"), from, to.AddDate(0, 0, 1))
	if err != nil {
		respondServiceError(c, err, "build statement")
		return
	}
	c.JSON(http.StatusOK, dto.ToStatementResponse(statement))
}
