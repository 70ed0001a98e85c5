package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/guttosm/tradeexport/config"
	"github.com/guttosm/tradeexport/internal/api"
	"github.com/guttosm/tradeexport/internal/mapper"
	"github.com/guttosm/tradeexport/internal/querybuilder"
	"github.com/guttosm/tradeexport/internal/service"
	"github.com/guttosm/tradeexport/internal/storage"
)

// NewExportService wires the repository and the query builder for cfg's
// table on top of an open database.
func NewExportService(cfg config.Config, db *sqlx.DB) (service.ExportService, error) {
	builder, err := querybuilder.New(cfg.Database.Table)
	if err != nil {
		return nil, fmt.Errorf("DB_TABLE: %w", err)
	}
	repo := storage.NewTradesRepository(db)
	return service.NewExportService(repo, builder), nil
}

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to the trade history database using InitDB().
//   - Initializes the repository and export service layers.
//   - Creates the HTTP handler layer with the configured row error policy.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources (e.g., DB connection).
func InitializeApp() (*gin.Engine, func(), error) {
	cfg := config.AppConfig

	policy, err := mapper.ParsePolicy(cfg.Export.OnRowError)
	if err != nil {
		return nil, nil, err
	}

	db, err := dbOpener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	svc, err := NewExportService(cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	handler := api.NewHandler(svc, api.HandlerOptions{Policy: policy, FlushEvery: cfg.Export.FlushEvery})
	router := api.NewRouter(handler)

	healthHandler := api.NewHealthHandler(svc.Ping)
	healthHandler.Register(router)

	cleanup := func() {
		_ = db.Close()
	}

	return router, cleanup, nil
}
