package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docstream/internal/bootstrap"
	"github.com/kirillkom/docstream/internal/config"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/observability/metrics"
)

const stageTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go serveMetrics(app, cfg.WorkerMetricsPort, workerMetrics)

	runners := map[string]ports.StageRunner{
		ports.StageMetadata:   app.MetadataUC,
		ports.StageAutoTag:    app.AutoTagUC,
		ports.StageOCR:        app.OCRUC,
		ports.StagePreview:    app.PreviewUC,
		ports.StageThumbnail:  app.ThumbnailUC,
		ports.StageAIClassify: app.AIClassifyUC,
	}

	handle := func(handlerCtx context.Context, task ports.Task) error {
		stageCtx, cancel := context.WithTimeout(handlerCtx, stageTimeout)
		defer cancel()

		workerMetrics.StartStage()
		start := time.Now()

		var err error
		switch {
		case task.Stage == ports.StageProcess:
			err = app.ProcessUC.ProcessByID(stageCtx, task.DocumentID)
		case runners[task.Stage] != nil:
			err = runners[task.Stage].Run(stageCtx, task)
		default:
			err = fmt.Errorf("unknown stage %q", task.Stage)
		}

		workerMetrics.FinishStage("worker", task.Stage, time.Since(start), err)
		if err != nil {
			app.Log.Error("stage failed",
				"stage", task.Stage,
				"document_id", task.DocumentID,
				"attempt", task.Attempt,
				"error", err,
			)
		}
		return err
	}

	lanes := []ports.Lane{
		ports.LaneDocumentProcessing,
		ports.LaneOCRProcessing,
		ports.LaneAIProcessing,
		ports.LaneDefault,
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for _, lane := range lanes {
		g.Go(func() error {
			app.Log.Info("worker subscribed", "lane", string(lane))
			return app.Queue.Subscribe(groupCtx, lane, handle)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func serveMetrics(app *bootstrap.App, port string, workerMetrics *metrics.WorkerMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		app.Log.Error("metrics server error", "error", err)
	}
}
