package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"asset-service/internal/auth"
	"asset-service/internal/models"
	"asset-service/internal/service"
	"asset-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Renderer turns an invoice into a PDF document
type Renderer interface {
	Render(ctx context.Context, invoice *models.Invoice) ([]byte, error)
}

// Dependencies wires the handler to the services it exposes
type Dependencies struct {
	Assets       *service.AssetService
	Invoices     *service.InvoiceService
	Ledger       *service.MovementLedger
	Verification *service.VerificationService
	Reports      *service.ReportService
	Renderer     Renderer
	Auth         *auth.Authenticator
	// Checks are pinged by the readiness probe, keyed by name
	Checks      map[string]Pinger
	CORSOrigins []string
}

// Handler contains HTTP handlers
type Handler struct {
	assets       *service.AssetService
	invoices     *service.InvoiceService
	ledger       *service.MovementLedger
	verification *service.VerificationService
	reports      *service.ReportService
	renderer     Renderer
	auth         *auth.Authenticator
	checks       map[string]Pinger
	corsOrigins  []string
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		assets:       deps.Assets,
		invoices:     deps.Invoices,
		ledger:       deps.Ledger,
		verification: deps.Verification,
		reports:      deps.Reports,
		renderer:     deps.Renderer,
		auth:         deps.Auth,
		checks:       deps.Checks,
		corsOrigins:  deps.CORSOrigins,
		logger:       util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))
	if len(h.corsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     h.corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			ExposeHeaders:    []string{"Content-Disposition", "Idempotent-Replayed"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", h.login)
		v1.GET("/invoices/verify/:invoiceNumber", h.verifyInvoice)
	}

	admin := v1.Group("", h.auth.Middleware())
	{
		admin.GET("/assets", h.listAssets)
		admin.POST("/assets", h.createAsset)
		admin.GET("/assets/:id", h.getAsset)
		admin.PATCH("/assets/:id", h.updateAsset)
		admin.DELETE("/assets/:id", h.deleteAsset)

		admin.GET("/invoices", h.listInvoices)
		admin.POST("/invoices", h.createInvoice)
		admin.GET("/invoices/:id", h.getInvoice)
		admin.GET("/invoices/:id/pdf", h.invoicePDF)

		admin.GET("/movements", h.listMovements)
		admin.GET("/movements/export", h.exportMovements)

		admin.GET("/verify/logs", h.verificationLogs)
		admin.GET("/reports/summary", h.reportSummary)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		h.logger.Warn("Readiness check failed", zap.Any("failed", failed))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// login exchanges admin credentials for a bearer token
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	token, expiresAt, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.logger.Warn("Admin login rejected", zap.String("email", req.Email), zap.String("ip", clientIP(c)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

// verifyInvoice is the public QR lookup
func (h *Handler) verifyInvoice(c *gin.Context) {
	invoice, err := h.verification.Verify(c.Request.Context(), c.Param("invoiceNumber"), service.Caller{
		IP:        clientIP(c),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// verificationLogs lists recent public lookups
func (h *Handler) verificationLogs(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	logs, err := h.verification.RecentLogs(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// reportSummary returns the dashboard aggregates
func (h *Handler) reportSummary(c *gin.Context) {
	summary, err := h.reports.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// clientIP prefers proxy headers over the socket peer
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	if ip := c.RemoteIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// queryInt reads an optional integer query param, answering 400 when it
// is not a number
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameter",
			"details": name + " must be an integer",
			"field":   name,
		})
		return 0, false
	}
	return n, true
}

// requestLogger logs each request through zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", clientIP(c)))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
