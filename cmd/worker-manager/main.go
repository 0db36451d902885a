// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dca-workers/internal/collections"
	"dca-workers/internal/collections/postgres"
	"dca-workers/internal/collections/risk"
	"dca-workers/internal/common/camunda"
	"dca-workers/internal/common/config"
	"dca-workers/internal/common/database"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/observability"
	"dca-workers/internal/common/search"
	"dca-workers/internal/common/validation"
	"dca-workers/pkg/registry"

	// Agencies (2)
	na "dca-workers/internal/workers/agencies/notify-agency"
	oa "dca-workers/internal/workers/agencies/onboard-agency"

	// Allocation (3)
	aac "dca-workers/internal/workers/allocation/auto-allocate-cases"
	mac "dca-workers/internal/workers/allocation/manual-assign-case"
	sae "dca-workers/internal/workers/allocation/set-agency-eligibility"

	// Cases (3)
	cc "dca-workers/internal/workers/cases/classify-cases"
	ic "dca-workers/internal/workers/cases/import-cases"
	ucs "dca-workers/internal/workers/cases/update-case-status"

	// Reporting (3)
	bd "dca-workers/internal/workers/reporting/build-dashboard"
	sc "dca-workers/internal/workers/reporting/search-cases"
	sci "dca-workers/internal/workers/reporting/sync-case-index"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Stores: PostgreSQL, plus Redis and Elasticsearch when configured ---
	conns, err := database.Connect(ctx, cfg.Database, database.DefaultRetryPolicy, log)
	if err != nil {
		zapLog.Fatal("store connection failed", zap.Error(err))
	}
	defer conns.Close()

	if cfg.Database.Postgres.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, conns.Postgres.DB); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("Collection schema ensured")
	}

	var caseIndex *search.CaseIndex
	if conns.Elasticsearch != nil {
		caseIndex = search.NewCaseIndex(conns.Elasticsearch.Client, cfg.Search.CaseIndex, cfg.Search.PageSize)
		if err := caseIndex.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("case index setup failed", zap.Error(err))
		}
		zapLog.Info("Case index ready", zap.String("index", caseIndex.Index()))
	}

	// --- Collection engine ---
	model, err := risk.FromConfig(cfg.Model, conns.Cache(), log)
	if err != nil {
		zapLog.Fatal("risk model failed to load", zap.Error(err))
	}

	store := postgres.NewStore(conns.Postgres.DB)
	audit := collections.NewAuditLog()
	importer := collections.NewImporter(store, audit, cfg.Collections.MaxImportRows, log)
	classifier := collections.NewClassifier(store, audit, model, config.GetDuration(cfg.Model.Timeout), log)
	allocator := collections.NewAllocator(store, audit, log)
	lifecycle := collections.NewLifecycle(store, audit, log)
	agencies := collections.NewAgencies(store, audit, log)
	dashboards := collections.NewDashboards(store, audit, cfg.Collections.RecentAuditLimit, log)

	notifyCfg := na.LoadConfig(cfg.Notifications, config.GetWorkerConfig(cfg, na.TaskType))
	notifier, err := na.NewSESNotifier(ctx, notifyCfg, log)
	if err != nil {
		zapLog.Fatal("notification clients failed", zap.Error(err))
	}

	// --- Input validation ---
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry failed to load", zap.Error(err), zap.String("path", cfg.Registry.Path))
	}
	if err := reg.Validate(); err != nil {
		zapLog.Fatal("activity registry is invalid", zap.Error(err))
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		zapLog.Fatal("input schemas failed to compile", zap.Error(err))
	}

	runner := camunda.NewRunner(zeebe.Zeebe(), obs, zapLog).
		WithInputValidation(validator, apperr.NewErrorHandler(log.WithFields(map[string]interface{}{
			"component": "input-validation",
		})))

	// --- Workers ---
	wc := func(taskType string) config.WorkerConfig {
		return config.GetWorkerConfig(cfg, taskType)
	}

	runner.Start(ic.TaskType, wc(ic.TaskType),
		ic.NewHandler(ic.LoadConfig(wc(ic.TaskType)), importer, log).Handle)
	runner.Start(cc.TaskType, wc(cc.TaskType),
		cc.NewHandler(cc.LoadConfig(wc(cc.TaskType)), classifier, log).Handle)
	runner.Start(ucs.TaskType, wc(ucs.TaskType),
		ucs.NewHandler(ucs.LoadConfig(wc(ucs.TaskType)), lifecycle, log).Handle)

	runner.Start(aac.TaskType, wc(aac.TaskType),
		aac.NewHandler(aac.LoadConfig(wc(aac.TaskType)), allocator, log).Handle)
	runner.Start(mac.TaskType, wc(mac.TaskType),
		mac.NewHandler(mac.LoadConfig(wc(mac.TaskType)), allocator, log).Handle)
	runner.Start(sae.TaskType, wc(sae.TaskType),
		sae.NewHandler(sae.LoadConfig(wc(sae.TaskType)), allocator, log).Handle)

	runner.Start(oa.TaskType, wc(oa.TaskType),
		oa.NewHandler(oa.LoadConfig(wc(oa.TaskType)), agencies, log).Handle)
	runner.Start(na.TaskType, wc(na.TaskType),
		na.NewHandler(notifyCfg, store, notifier, log).Handle)

	runner.Start(bd.TaskType, wc(bd.TaskType),
		bd.NewHandler(bd.LoadConfig(wc(bd.TaskType)), dashboards, log).Handle)
	if caseIndex != nil {
		runner.Start(sci.TaskType, wc(sci.TaskType),
			sci.NewHandler(sci.LoadConfig(wc(sci.TaskType)), store, caseIndex, log).Handle)
		runner.Start(sc.TaskType, wc(sc.TaskType),
			sc.NewHandler(sc.LoadConfig(wc(sc.TaskType)), caseIndex, log).Handle)
	} else {
		zapLog.Warn("elasticsearch not configured, search workers not started")
	}

	zapLog.Info("Workers registered", zap.Int("count", runner.Count()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		results := conns.Check(checkCtx)
		results["zeebe"] = zeebe.HealthCheck(checkCtx)
		for name, err := range results {
			checks[name] = "ok"
			if err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		label := "ready"
		if status != http.StatusOK {
			label = "not ready"
		}
		writeStatus(w, status, label, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runner.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, status int, label string, checks map[string]string) {
	body := map[string]interface{}{
		"status": label,
		"time":   time.Now().Format(time.RFC3339),
	}
	if checks != nil {
		body["checks"] = checks
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
