package handlers

import (
	"net/http"
	"regexp"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/infra/observability"
	"github.com/pesacore/corebanking/internal/middleware"
	"github.com/pesacore/corebanking/pkg/config"
)

// Account numbers are the three digit branch code followed by a seven digit
// serial.
var accountNumberPattern = regexp.MustCompile(`^\d{10}$`)

// RegisterValidators installs custom binding validators. Called once at
// startup before any request is served.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("acctnumber", func(fl validator.FieldLevel) bool {
			return accountNumberPattern.MatchString(fl.Field().String())
		})
	}
}

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServicesProvider,
	metrics *observability.Metrics,
	rateLimiter *limiter.Limiter,
) {
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	setupAPIV1Routes(r, cfg, services, rateLimiter)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServicesProvider,
	rateLimiter *limiter.Limiter,
) {
	v1 := r.Group("/api/v1",
		middleware.RateLimit(rateLimiter),
		middleware.AuthMiddleware(cfg.JWTSecret),
	)

	registerAccountRoutes(v1, services.Account, services.Engine)
	registerTransactionRoutes(v1, services.Engine, services.Account)
	registerLoanRoutes(v1, services.Engine, services.Loan)
	registerStatementRoutes(v1, services.Statement)
}
