package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/auth"
	"github.com/ekaya-inc/taskboard/pkg/config"
	"github.com/ekaya-inc/taskboard/pkg/handlers"
	"github.com/ekaya-inc/taskboard/pkg/logging"
	"github.com/ekaya-inc/taskboard/pkg/mcp"
	"github.com/ekaya-inc/taskboard/pkg/mcp/tools"
	"github.com/ekaya-inc/taskboard/pkg/middleware"
	"github.com/ekaya-inc/taskboard/pkg/normalize"
	"github.com/ekaya-inc/taskboard/pkg/notion"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	shared := cfg.Shared.Connection()

	// Log startup configuration
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("aggregation_mode", cfg.Aggregation.Mode),
		zap.Bool("shared_workspace", shared != nil),
		zap.Bool("server_oauth_app", cfg.Notion.AppCredentials() != nil),
		zap.Bool("manager_role", cfg.ManagerSecret != ""),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled))

	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = randomSecret()
		logger.Warn("SESSION_SECRET is not set; using a random key, browser connections will not survive a restart")
	}

	conventions, err := normalize.LoadConventions(cfg.ConventionsFile)
	if err != nil {
		logger.Fatal("Failed to load property conventions", zap.Error(err))
	}

	// Notion API
	notionClient := notion.NewClient(cfg.Notion, logger)
	discovery := notion.NewDiscovery(cfg.Notion, logger)
	oauth := notion.NewOAuth(cfg.Notion, logger)

	// Cookie-backed browser state
	cookieSettings := auth.DeriveCookieSettings(cfg.BaseURL, cfg.CookieDomain)
	store := auth.NewCookieStore(sessionSecret, cookieSettings, logger)
	managerTokens := auth.NewManagerTokens(cfg.ManagerSecret, cfg.ManagerTokenTTL)

	// Services
	resolver := normalize.NewRelationResolver(notionClient, conventions,
		cfg.Relations.MaxConcurrency, cfg.Relations.FetchTimeout, logger)
	workloadService := services.NewWorkloadService(
		services.WorkloadConfig{Shared: shared, Mode: cfg.Aggregation.Mode},
		notionClient, resolver, normalize.NewNormalizer(conventions), logger)
	connectionService := services.NewConnectionService(discovery, logger)
	mappingService := services.NewPropertyMappingService(discovery, logger)
	oauthService := services.NewOAuthService(cfg.Notion.AppCredentials(), oauth, logger)
	roleService := services.NewRoleService(managerTokens, logger)

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewWorkloadHandler(workloadService, store, logger).RegisterRoutes(mux)
	handlers.NewConnectionsHandler(connectionService, store, logger).RegisterRoutes(mux)
	handlers.NewPropertyMappingHandler(mappingService, store, logger).RegisterRoutes(mux)
	handlers.NewNotionAuthHandler(oauthService, store, logger).RegisterRoutes(mux)
	handlers.NewRoleHandler(roleService, cookieSettings, logger).RegisterRoutes(mux)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(cfg.Version, mcp.NewAuditLogger(logger), logger)
		health := tools.HealthInfo{
			Version:         cfg.Version,
			AggregationMode: cfg.Aggregation.Mode,
			ManagerRequired: managerTokens.Enabled(),
		}
		if shared != nil {
			health.SharedWorkspace = shared.WorkspaceName
		}
		tools.RegisterHealthTool(mcpServer, health)
		tools.RegisterWorkloadTools(mcpServer, &tools.WorkloadToolDeps{
			Workload: workloadService,
			Logger:   logger,
		})
		logger.Info("MCP endpoint enabled",
			zap.Strings("tools", mcpServer.ToolNames()),
			zap.Bool("manager_required", managerTokens.Enabled()))

		var managerAuth *auth.Middleware
		if managerTokens.Enabled() {
			managerAuth = auth.NewMiddleware(auth.NewAuthService(managerTokens, logger), logger)
		}
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux, managerAuth)
	}

	// Serve static UI files from ui/dist
	mux.Handle("/", http.FileServer(http.Dir("./ui/dist")))

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting taskboard",
			zap.String("addr", httpServer.Addr),
			zap.String("version", cfg.Version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForShutdown(logger, httpServer)
}

func waitForShutdown(logger *zap.Logger, httpServer *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate session secret: %v", err)
	}
	return hex.EncodeToString(buf)
}
