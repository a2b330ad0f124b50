package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	credservice "dataspace/internal/credential/service"
	credstore "dataspace/internal/credential/store"
	"dataspace/internal/idp"
	"dataspace/internal/issuer"
	opservice "dataspace/internal/operation/service"
	opstore "dataspace/internal/operation/store"
	"dataspace/internal/participant/metrics"
	pservice "dataspace/internal/participant/service"
	pstore "dataspace/internal/participant/store"
	"dataspace/internal/platform/config"
	"dataspace/internal/platform/database"
	"dataspace/internal/platform/health"
	"dataspace/internal/platform/httpserver"
	"dataspace/internal/platform/logger"
	"dataspace/internal/platform/tracer"
	"dataspace/internal/provisioner"
	"dataspace/internal/seeder"
	tenantservice "dataspace/internal/tenant/service"
	tenantstore "dataspace/internal/tenant/store"
	transport "dataspace/internal/transport/http"
	"dataspace/internal/visibility"
)

// main wires stores, external adapters, and services, then runs the HTTP
// server. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	log.Info("initializing dataspace service",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"postgres", cfg.DatabaseURL != "",
	)

	healthHandler := health.New(cfg.Environment)

	// Postgres when a database is configured, in-memory otherwise (demo
	// and test environments).
	var (
		tenants      tenantservice.Store
		participants pservice.ParticipantStore
		users        pservice.UserStore
		opWriter     pservice.OperationStore
		opReader     opservice.Store
		credentials  credservice.CredentialStore
		runner       database.Runner
	)
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			log.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		ops := opstore.NewPostgres(db)
		tenants = tenantstore.NewPostgres(db)
		participants = pstore.NewPostgres(db)
		users = pstore.NewPostgresUsers(db)
		opWriter, opReader = ops, ops
		credentials = credstore.NewPostgres(db)
		runner = database.NewTxRunner(db)
		healthHandler.RegisterCheck("database", db.Ping)
	} else {
		ops := opstore.NewInMemory()
		tenants = tenantstore.NewInMemory()
		participants = pstore.NewInMemory()
		users = pstore.NewInMemoryUsers()
		opWriter, opReader = ops, ops
		credentials = credstore.NewInMemory()
		runner = database.NopRunner{}
	}

	if cfg.DatabaseURL == "" && cfg.Environment == "development" {
		seed := seeder.New(tenants, participants, users, opWriter, credentials, log)
		if err := seed.SeedAll(ctx); err != nil {
			log.Warn("failed to seed demo data", "error", err)
		}
	}

	provisionerClient := provisioner.New(cfg.Provisioner, provisioner.WithLogger(log))
	issuerClient := issuer.New(cfg.Issuer, issuer.WithLogger(log))
	idpClient := idp.New(cfg.IdP, idp.WithLogger(log))

	// Best-effort: the identity provider may come up after this service,
	// and every later admin call reports its own failure anyway.
	if err := idpClient.Bootstrap(ctx, cfg.IdP.ClientID, []string{
		string(visibility.RoleAdmin),
		string(visibility.RoleAdminTenant),
		string(visibility.RoleUserParticipant),
	}); err != nil {
		log.Warn("identity provider bootstrap failed", "error", err)
	}

	participantMetrics := metrics.New()

	tenantSvc := tenantservice.New(tenants, idpClient, tenantservice.WithLogger(log))
	participantSvc := pservice.New(participants, users, tenants, opWriter,
		provisionerClient, idpClient, runner,
		pservice.WithLogger(log),
		pservice.WithMetrics(participantMetrics),
		pservice.WithTracer(tracer.NewOTel()),
	)

	credentialOpts := []credservice.Option{
		credservice.WithLogger(log),
		credservice.WithMetrics(participantMetrics),
	}
	if cfg.Issuer.MockCredentials {
		credentialOpts = append(credentialOpts, credservice.WithMockIssuance())
	}
	credentialSvc := credservice.New(credentials, participantSvc, issuerClient, runner,
		cfg.Issuer.IssuerDID, cfg.Issuer.HolderPID, credentialOpts...)

	operationSvc := opservice.New(opReader, participantSvc, opservice.WithLogger(log))

	handler := transport.NewHandler(tenantSvc, participantSvc, credentialSvc, operationSvc)
	router := transport.NewRouter(handler, healthHandler, []byte(cfg.JWTSigningKey), log)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
