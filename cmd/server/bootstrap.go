package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openfedx/offering-service/internal/api"
	"github.com/openfedx/offering-service/internal/app"
	"github.com/openfedx/offering-service/internal/app/maintenance"
	"github.com/openfedx/offering-service/internal/auth"
	"github.com/openfedx/offering-service/internal/catalog"
	"github.com/openfedx/offering-service/internal/database"
	"github.com/openfedx/offering-service/internal/directory"
	"github.com/openfedx/offering-service/internal/services"
	"github.com/openfedx/offering-service/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Account    *auth.ServiceAccount
	Offerings  *services.OfferingService
	Reconciler *maintenance.Reconciler
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, outbound clients, the offering
// coordinator and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Account, err = auth.NewServiceAccount(cfg.OutboundAuth.ServiceAccountConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise service account: %w", err)
	}

	catalogClient, err := catalog.New(cfg.Catalog.CatalogClientConfig(), stack.Account)
	if err != nil {
		return nil, fmt.Errorf("initialise catalog client: %w", err)
	}

	directoryClient, err := directory.New(cfg.Directory.DirectoryClientConfig(), stack.Account)
	if err != nil {
		return nil, fmt.Errorf("initialise directory client: %w", err)
	}

	stack.Offerings, err = services.NewOfferingService(stack.DB, catalogClient, directoryClient, cfg.Federation.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("initialise offering service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Reconciler = maintenance.NewReconciler(stack.Offerings, stack.Account,
			maintenance.WithRevocationSchedule(cfg.Maintenance.RevocationSweep),
			maintenance.WithTokenRefreshSchedule(cfg.Maintenance.TokenRefreshSweep),
		)
		if err := stack.Reconciler.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(cfg, stack.Offerings)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Reconciler != nil {
		<-s.Reconciler.Stop().Done()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseOpenConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.MigrateAndPrepare(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
