package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/serisow/datalens/alerts"
	"github.com/serisow/datalens/anomaly"
	"github.com/serisow/datalens/audit"
	"github.com/serisow/datalens/chat"
	"github.com/serisow/datalens/config"
	"github.com/serisow/datalens/db"
	"github.com/serisow/datalens/extraction"
	"github.com/serisow/datalens/handlers"
	"github.com/serisow/datalens/logging"
	"github.com/serisow/datalens/masking"
	"github.com/serisow/datalens/quality"
	"github.com/serisow/datalens/report"
	"github.com/serisow/datalens/schema"
	"github.com/serisow/datalens/server"
	"github.com/serisow/datalens/session"
	"github.com/serisow/datalens/tabular"
	"github.com/serisow/datalens/transform"
)

func main() {
	cfg := config.Load()

	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	auditStore, err := initAuditStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize audit store: %v", err)
	}

	sessions := session.NewStore(logger)
	sessions.StartCleanup(cfg.SessionTTL, cfg.CleanupInterval)
	defer sessions.StopCleanup()

	checker := quality.NewChecker()
	detector := anomaly.NewDetector(logger, anomaly.Thresholds{
		ZScore:             cfg.ZScoreThreshold,
		IQRMultiplier:      cfg.IQRMultiplier,
		SeverityStdFactor:  cfg.SeverityStdFactor,
		ExtremeValueFactor: cfg.ExtremeValueFactor,
		SpikeFactor:        cfg.SpikeFactor,
		NullFractionCutoff: cfg.NullFractionCutoff,
	})

	h := handlers.New(logger, handlers.Deps{
		Config:      cfg,
		Sessions:    sessions,
		Extractor:   extraction.NewExtractor(logger),
		Builder:     tabular.NewBuilder(logger),
		Learner:     schema.NewLearner(),
		Checker:     checker,
		Detector:    detector,
		Masker:      masking.NewMasker(logger),
		Transformer: transform.NewTransformer(logger),
		Assistant:   chat.NewAssistant(logger, checker, detector),
		Registry:    report.DefaultRegistry(),
		Audit:       auditStore,
		Notifiers:   initNotifiers(cfg, logger),
	})

	r := server.SetupRoutes(h)
	n := setupNegroni(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, cfg)
	} else {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      n,
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		server.ServeDevelopment(srv)
	}
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}

func initLogger(cfg config.Config) (*slog.Logger, error) {
	fileHandler, err := logging.NewDailyFileHandler(cfg.LogDir, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if err != nil {
		return nil, err
	}
	return slog.New(fileHandler), nil
}

// initAuditStore connects to Postgres when a database URL is configured and
// falls back to the in-memory trail otherwise.
func initAuditStore(cfg config.Config) (audit.Store, error) {
	if cfg.DatabaseURL == "" {
		return audit.NewMemoryStore(), nil
	}

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store := audit.NewPostgresStore(pool)
	if err := store.EnsureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func initNotifiers(cfg config.Config, logger *slog.Logger) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.TwilioAccountSID != "" {
		sms, err := alerts.NewSMSNotifier(logger, alerts.TwilioCredentials{
			AccountSid: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
			ToNumber:   cfg.AlertPhoneNumber,
		})
		if err != nil {
			logger.Error("SMS alerting disabled", slog.String("error", err.Error()))
		} else {
			notifiers = append(notifiers, sms)
		}
	}

	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(logger, cfg.AlertWebhookURL))
	}

	return notifiers
}
