package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docstream/internal/config"
	"github.com/kirillkom/docstream/internal/core/classify"
	"github.com/kirillkom/docstream/internal/core/compliance"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/core/usecase"
	"github.com/kirillkom/docstream/internal/infrastructure/classifier/ollama"
	"github.com/kirillkom/docstream/internal/infrastructure/extractor/formats"
	"github.com/kirillkom/docstream/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/docstream/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docstream/internal/infrastructure/render/imagemagick"
	"github.com/kirillkom/docstream/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docstream/internal/infrastructure/resilience"
	"github.com/kirillkom/docstream/internal/infrastructure/scanner/clamav"
	"github.com/kirillkom/docstream/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docstream/internal/observability/logging"
)

type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue *nats.Queue
	Repo  ports.DocumentRepository

	IngestUC     ports.DocumentIngestor
	ProcessUC    ports.DocumentProcessor
	MetadataUC   ports.StageRunner
	AutoTagUC    ports.StageRunner
	OCRUC        ports.StageRunner
	PreviewUC    ports.StageRunner
	ThumbnailUC  ports.StageRunner
	AIClassifyUC ports.StageRunner
	ComplianceUC *usecase.ComplianceUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	log := logging.NewJSONLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	indexer := postgres.NewSearchIndexer(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:   cfg.ResilienceRetryMaxAttempts,
		BreakerEnabled:     cfg.ResilienceBreakerEnabled,
		BreakerMinRequests: uint32(cfg.ResilienceBreakerMinRequests),
	})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init task queue: %w", err)
	}
	notifier := nats.NewNotifier(queue, cfg.NATSSecuritySubject)

	scanner := clamav.NewWithOptions(cfg.ClamAVHost, cfg.ClamAVPort, clamav.Options{
		Timeout:            time.Duration(cfg.ClamAVTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})

	extractor := formats.New(storage, cfg.SOfficeBin)
	ocrEngine := tesseract.New(tesseract.WithBinary(cfg.TesseractBin))
	renderer := imagemagick.New(imagemagick.WithBinary(cfg.ConvertBin))
	aiClassifier := ollama.New(cfg.ClassifierURL, cfg.ClassifierModel)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, scanner, extractor, queue, notifier, indexer, log)
	metadataUC := usecase.NewMetadataExtractionUseCase(repo, log)
	autoTagUC := usecase.NewAutoTagUseCase(repo, classify.New(classify.DefaultRules()), queue, log)
	ocrUC := usecase.NewOCRUseCase(repo, storage, ocrEngine, renderer, queue, indexer, cfg.OCRLanguage, log)
	previewUC := usecase.NewPreviewUseCase(repo, storage, renderer, log)
	thumbnailUC := usecase.NewThumbnailUseCase(repo, storage, renderer, queue, log)
	aiClassifyUC := usecase.NewAIClassifyUseCase(repo, aiClassifier, autoTagUC, log)
	complianceUC := usecase.NewComplianceUseCase(repo, compliance.NewScorer(compliance.DefaultRuleSet()), log)

	return &App{
		Config: cfg,
		Log:    log,
		Queue:  queue,
		Repo:   repo,

		IngestUC:     ingestUC,
		ProcessUC:    processUC,
		MetadataUC:   metadataUC,
		AutoTagUC:    autoTagUC,
		OCRUC:        ocrUC,
		PreviewUC:    previewUC,
		ThumbnailUC:  thumbnailUC,
		AIClassifyUC: aiClassifyUC,
		ComplianceUC: complianceUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
