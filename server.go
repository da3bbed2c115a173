package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"bitbucket.org/mmdatafocus/stockledger_backend/middlewares"
	"bitbucket.org/mmdatafocus/stockledger_backend/models"
	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultPort = "8080"

var (
	storeMu     sync.RWMutex
	ledgerStore models.LedgerStore
)

func getLedgerStore() models.LedgerStore {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return ledgerStore
}

func setLedgerStore(s models.LedgerStore) {
	storeMu.Lock()
	ledgerStore = s
	storeMu.Unlock()
}

// correlationMiddleware tags every request with a correlation id, echoed in
// the response header and attached to the request context for log fields.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// readinessMiddleware gates ledger endpoints until the backend store is
// wired; the store comes up after the listener so startup probes pass
// immediately.
func readinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/auth/login" {
			c.Next()
			return
		}
		if getLedgerStore() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

func healthzHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"backend":    config.LedgerBackend(),
			"ready":      getLedgerStore() != nil,
			"redis":      config.GetRedisDB() != nil,
			"extraction": config.ExtractionEnabled(),
		})
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(correlationMiddleware())
	r.Use(readinessMiddleware())

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS: explicit allowlist via CORS_ALLOWED_ORIGINS in
	// production, allow-all for developer convenience otherwise.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = utils.UniqueSlice(utils.SplitAndTrim(allowedOrigins))
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", healthzHandler())
	r.POST("/auth/login", loginHandler())

	api := r.Group("/api", middlewares.AuthMiddleware())
	{
		api.POST("/entries", newEntryHandler())
		api.GET("/products", listProductsHandler())
		api.POST("/products", provisionProductHandler())
		api.GET("/products/:name/sales", productSalesHandler())
		api.POST("/documents/search", documentSearchHandler())
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	log.Printf("listening on :%s", port)

	// Backends come up after the listener; the readiness gate covers the gap.
	config.ConnectRedis()
	config.ConnectGenAI()

	switch config.LedgerBackend() {
	case config.LedgerBackendWorkbook:
		store, err := models.NewWorkbookStore(config.WorkbookPath())
		if err != nil {
			logger.Fatalf("workbook backend: %v", err)
		}
		setLedgerStore(store)
	default:
		config.ConnectSheetsWithRetry()
		store, err := models.NewSheetStore()
		if err != nil {
			logger.Fatalf("sheets backend: %v", err)
		}
		setLedgerStore(store)
	}
	log.Printf("ledger backend ready (%s)", config.LedgerBackend())

	<-sigCtx.Done()
	log.Printf("shutdown signal received; draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.LogError(logger, "server.go", "main", "srv.Shutdown", nil, err)
	}
}
