// Package app assembles the filing engine from configuration for the server and CLI binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"

	"eviction-tracker/efiling/internal/casefile/repository"
	"eviction-tracker/efiling/internal/config"
	"eviction-tracker/efiling/internal/db"
	"eviction-tracker/efiling/internal/draft"
	"eviction-tracker/efiling/internal/efile/auth"
	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/efile/efileapi"
	"eviction-tracker/efiling/internal/efile/payload"
	"eviction-tracker/efiling/internal/efile/service"
	"eviction-tracker/efiling/internal/efile/status"
	"eviction-tracker/efiling/internal/efile/submission"
	"eviction-tracker/efiling/internal/policy/engine"
	policyrepo "eviction-tracker/efiling/internal/policy/repository"
	"eviction-tracker/efiling/internal/resilience/breaker"
	"eviction-tracker/efiling/internal/resilience/retry"
	"eviction-tracker/efiling/internal/security"
	"eviction-tracker/efiling/internal/telemetry"
	teldomain "eviction-tracker/efiling/internal/telemetry/domain"
	"eviction-tracker/efiling/internal/telemetry/producer"
	telrepo "eviction-tracker/efiling/internal/telemetry/repository"
)

// App is the assembled engine. Close releases everything Build opened.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Breaker *breaker.Breaker
	Tokens  *auth.Manager
	Policy  *engine.OPAEvaluator
	Filings *service.FilingService
	Drafts  *draft.Store
	// Events fans out to the event history and, when configured, Kafka and OTel logs.
	Events telemetry.EventEmitter

	closers []io.Closer
}

// Options adds process-level emitters (e.g. the OTel log bridge) to the engine's event fan-out.
type Options struct {
	ExtraEmitters []telemetry.EventEmitter
}

// Build wires the engine. With DATABASE_URL set, cases, events and (optionally) drafts live in
// Postgres; otherwise everything is in memory.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	var (
		cases   service.CaseRepo
		history interface {
			telemetry.EventEmitter
			service.EventHistory
		}
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.DB = conn
		a.closers = append(a.closers, a.DB)
		cases = repository.NewPostgresRepository(a.DB)
		history = eventRecorder{telrepo.NewPostgresRepository(a.DB)}
	} else {
		log.Printf("app: DATABASE_URL not set, cases and events are kept in memory")
		cases = repository.NewMemoryRepository()
		history = telrepo.NewMemoryRepository()
	}

	emitters := []telemetry.EventEmitter{history}
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		p := producer.NewKafkaProducer(brokers, cfg.EventsTopic)
		a.closers = append(a.closers, p)
		emitters = append(emitters, p)
	}
	emitters = append(emitters, opts.ExtraEmitters...)
	a.Events = telemetry.Multi(emitters...)

	var key []byte
	if cfg.DraftEncryptionKey != "" {
		k, err := security.ParseSealKey(cfg.DraftEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("app: draft key: %w", err)
		}
		key = k
	}
	store, closer, err := draft.OpenBackend(ctx, draft.Backend{Kind: cfg.DraftBackend, Path: cfg.DraftPath, DB: a.DB, Key: key})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer)
	a.Drafts = draft.NewStore(store, cfg.DraftMaxAge)

	api := efileapi.NewClient(cfg.EFileBaseURL, cfg.EFileState, cfg.EFileClientToken, cfg.EFileTimeout)
	policy := retry.Policy{
		Retries:   cfg.Retries,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
		Jitter:    0.2,
		Permanent: domain.NewRetryClassifier(cfg.RetryableCodesList()).Permanent,
	}
	a.Breaker = breaker.New(breaker.Settings{
		Name:      "efile",
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
		Weight:    domain.FailureWeight,
		OnStateChange: func(name string, from, to breaker.State) {
			log.Printf("app: circuit %s %s -> %s", name, from, to)
		},
	})
	a.Tokens = auth.NewManager(api, auth.Config{
		Username:     cfg.EFileUsername,
		Password:     cfg.EFilePassword,
		TTL:          cfg.TokenTTL,
		SafetyBuffer: cfg.TokenSafetyBuffer,
		Retry:        policy,
	})
	a.Policy = engine.NewOPAEvaluator(policyrepo.NewFileRepository(cfg.PolicyPath), engine.Settings{Jurisdictions: cfg.JurisdictionsList()})
	builder := payload.New(payload.Options{
		FallbackCrossReference: domain.CrossReference{Number: cfg.FallbackXrefNumber, Code: cfg.FallbackXrefCode},
		MaxAttachmentBytes:     int(cfg.MaxAttachmentBytes),
	})
	a.Filings = service.NewFilingService(
		builder,
		a.Policy,
		a.Tokens,
		submission.New(api, a.Breaker, policy, a.Tokens),
		status.New(api, a.Breaker),
		cases,
		history,
		a.Events,
		a.Breaker,
	)
	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// eventRecorder lets the Postgres event history sit in the emitter fan-out.
type eventRecorder struct {
	*telrepo.PostgresRepository
}

func (r eventRecorder) Emit(ctx context.Context, e *teldomain.Event) error {
	return r.Save(ctx, e)
}
