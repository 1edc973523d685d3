package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	domainanaf "github.com/jhoicas/einvoice-gateway/internal/domain/anaf"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	domainksef "github.com/jhoicas/einvoice-gateway/internal/domain/ksef"
	infraanaf "github.com/jhoicas/einvoice-gateway/internal/infrastructure/anaf"
	"github.com/jhoicas/einvoice-gateway/internal/infrastructure/credentials"
	infraksef "github.com/jhoicas/einvoice-gateway/internal/infrastructure/ksef"
	"github.com/jhoicas/einvoice-gateway/internal/infrastructure/postgres"
	"github.com/jhoicas/einvoice-gateway/internal/infrastructure/storage"
	"github.com/jhoicas/einvoice-gateway/pkg/config"
)

// Container grafo de dependencias compartido por la API y el CLI.
type Container struct {
	Pool       *pgxpool.Pool
	Registry   *submission.Registry
	Dispatcher *submission.Dispatcher
	Batch      *submission.BatchRunner
	Worker     *submission.StatusCheckWorker
	Service    *submission.Service
}

// Build conecta PostgreSQL, S3, credenciales y clientes de proveedor, y registra
// los handlers ANAF y KSeF.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	c, err := build(ctx, cfg, pool, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func build(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log zerolog.Logger) (*Container, error) {
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	subRepo := postgres.NewSubmissionRepository(pool)
	eventRepo := postgres.NewDocumentEventRepository(pool)
	jobs := postgres.NewJobStore(pool)
	txRunner := postgres.NewTxRunner(pool)

	blobs, err := storage.NewS3BlobStore(ctx, storage.Config{
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Prefix:    cfg.Storage.Prefix,
	})
	if err != nil {
		return nil, err
	}

	sealer, err := credentials.NewSealerFromBase64(cfg.Credentials.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY: %w", err)
	}
	resolver := credentials.NewResolver(postgres.NewCredentialRepository(pool), sealer, credentials.OAuthConfig{
		ClientID:     cfg.ANAF.OAuthClientID,
		ClientSecret: cfg.ANAF.OAuthClientSecret,
		TokenURL:     cfg.ANAF.OAuthTokenURL,
	}, log.With().Str("component", "credentials").Logger())

	pipelineLog := log.With().Str("component", "submission").Logger()
	registry := submission.NewRegistry()

	// ANAF: subida + consultas diferidas.
	anafDeps := submission.Deps{
		Validator:   domainanaf.NewValidator(),
		Codec:       infraanaf.NewUBLBuilder(),
		Credentials: resolver,
		Blobs:       blobs,
		Tx:          txRunner,
		Logger:      pipelineLog,
	}
	anafClient := infraanaf.NewClient(infraanaf.ClientConfig{
		BaseURL:           cfg.ANAF.BaseURL,
		Environment:       cfg.ANAF.Environment,
		Timeout:           cfg.ANAF.Timeout,
		RequestsPerSecond: cfg.ANAF.RequestsPerSecond,
	})
	registry.Register(entity.ProviderANAF,
		submission.NewAnafHandler(anafDeps, anafClient, jobs),
		submission.NewAnafChecker(anafDeps, subRepo, invoiceRepo, anafClient, jobs),
	)

	// KSeF: sesión interactiva, sin consultas diferidas.
	ksefCfg := infraksef.ClientConfig{
		BaseURL:           cfg.KSeF.BaseURL,
		Timeout:           cfg.KSeF.Timeout,
		RequestsPerSecond: cfg.KSeF.RequestsPerSecond,
	}
	if cfg.KSeF.PublicKeyPath != "" {
		if ksefCfg.PublicKey, err = infraksef.LoadPublicKey(cfg.KSeF.PublicKeyPath); err != nil {
			return nil, fmt.Errorf("KSEF_PUBLIC_KEY_PATH: %w", err)
		}
	} else {
		log.Warn().Msg("KSEF_PUBLIC_KEY_PATH vacío: los envíos KSeF fallarán al abrir sesión")
	}
	ksefDeps := anafDeps
	ksefDeps.Validator = domainksef.NewValidator()
	ksefDeps.Codec = infraksef.NewFA2Builder(nil)
	registry.Register(entity.ProviderKSEF, submission.NewKsefHandler(ksefDeps, infraksef.NewClient(ksefCfg)), nil)

	dispatcher := submission.NewDispatcher(registry, invoiceRepo, subRepo, log.With().Str("component", "dispatcher").Logger())

	return &Container{
		Pool:       pool,
		Registry:   registry,
		Dispatcher: dispatcher,
		Batch:      submission.NewBatchRunner(invoiceRepo, dispatcher, log.With().Str("component", "batch").Logger()),
		Worker: submission.NewStatusCheckWorker(jobs, dispatcher, submission.WorkerConfig{
			PollInterval: cfg.Worker.PollInterval,
			BatchSize:    cfg.Worker.ClaimSize,
			Lease:        cfg.Worker.Lease,
		}, log.With().Str("component", "worker").Logger()),
		Service: submission.NewService(dispatcher, invoiceRepo, subRepo, eventRepo),
	}, nil
}

// Close libera el pool.
func (c *Container) Close() {
	c.Pool.Close()
}
