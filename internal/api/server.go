package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kopy/internal/api/handlers"
	"kopy/internal/api/middleware"
	"kopy/internal/config"
	"kopy/internal/database"
	"kopy/internal/events"
	"kopy/internal/importer"
	"kopy/internal/logger"
	"kopy/internal/shopify"
	"kopy/internal/syncer"
	"kopy/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

type Server struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, log *logger.Logger, db *database.Database, publisher *events.Publisher) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	// Admin-style URLs resolve through the request's own credentials, so the
	// shared fetcher carries no admin client of its own.
	fetcher := shopify.NewFetcher(cfg.StorefrontAccessToken, cfg.AdminAPIVersion, nil, log)
	listing := shopify.NewListingClient(log)
	imp := importer.New(db.DB, fetcher, log)
	engine := worker.NewEngine(db.DB, imp, log)
	syncEngine := syncer.New(db.DB, fetcher, log)
	adminFactory := handlers.NewAdminFactory(cfg, log)

	importHandler := handlers.NewImportHandler(db.DB, log, fetcher, imp, adminFactory)
	bulkHandler := handlers.NewBulkHandler(db.DB, log, listing, engine, publisher, adminFactory)
	syncHandler := handlers.NewSyncHandler(db.DB, log, syncEngine, adminFactory)
	productHandler := handlers.NewProductHandler(db.DB, log)
	settingsHandler := handlers.NewSettingsHandler(db.DB, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Shop(cfg.ShopDomain))
	{
		products := v1.Group("/products")
		{
			products.POST("/fetch", importHandler.Fetch)
			products.POST("/import", importHandler.Import)
			products.GET("", productHandler.List)
			products.GET("/stats", productHandler.Stats)
			products.GET("/source-shops", productHandler.SourceShops)
			products.GET("/:id", productHandler.Get)
			products.PATCH("/:id/status", productHandler.UpdateStatus)
			products.PATCH("/:id/sync", productHandler.ToggleSync)
			products.DELETE("/:id", productHandler.Delete)
		}

		bulk := v1.Group("/bulk")
		{
			bulk.POST("/fetch", bulkHandler.FetchCatalog)
			bulk.POST("/start", bulkHandler.StartJob)
			bulk.GET("/jobs/:id", bulkHandler.JobStatus)
		}

		sync := v1.Group("/sync")
		{
			sync.POST("/products/:id", syncHandler.SyncProduct)
			sync.POST("/all", syncHandler.SyncAll)
		}

		v1.POST("/webhooks/products/update", syncHandler.ProductsUpdateWebhook)

		settings := v1.Group("/settings")
		{
			settings.GET("", settingsHandler.Get)
			settings.PUT("", settingsHandler.Update)
		}
	}

	return &Server{
		config: cfg,
		logger: log,
		db:     db,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Shop-Domain", "X-Shopify-Access-Token"},
		AllowCredentials: false,
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}
