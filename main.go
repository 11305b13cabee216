package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ffcompress/api"
	"ffcompress/config"
	"ffcompress/ffmpeg"
	"ffcompress/intake"
	"ffcompress/logging"
	"ffcompress/task"

	"github.com/c2h5oh/datasize"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
)

// How long a watched file must stay unmodified before it is queued.
const watchSettle = 2 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// 1. Load configuration
	cfg, err := config.Load(args...)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffcompress: %v\n", err)
		return 2
	}
	log := logging.New(cfg, os.Stderr)

	// 2. Resolve the external tools once, up front
	tools, err := config.ResolveTools(cfg)
	if err != nil {
		log.Error("could not locate ffmpeg tools", "error", err)
		return 1
	}
	log.Info("using tools", "ffmpeg", tools.FFmpeg, "ffprobe", tools.FFprobe)

	// Batch mode sizes the queue to fit every file.
	var files []string
	if len(cfg.Files) > 0 {
		files, err = intake.Discover(cfg.Files)
		if err != nil {
			log.Error("could not read inputs", "error", err)
			return 1
		}
		if len(files) == 0 {
			log.Warn("no video files found", "paths", cfg.Files)
			return 1
		}
		if cfg.QueueSize < len(files) {
			cfg.QueueSize = len(files)
		}
	}

	// 3. Wire the pipeline into the task manager
	pipeline := ffmpeg.NewPipeline(cfg, tools, nil, log)
	taskManager, err := task.NewManager(cfg, pipeline, log)
	if err != nil {
		log.Error("failed to initialize task manager", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	taskManager.Start(ctx)

	if files != nil {
		return runBatch(ctx, cfg, taskManager, files, log)
	}
	return serve(ctx, stop, cfg, taskManager, pipeline, log)
}

func submitFile(tm *task.Manager, cfg *config.Config, path string) (*task.Task, error) {
	if err := ffmpeg.ValidateInput(path, cfg.MaxInputSize); err != nil {
		return nil, err
	}
	return tm.Submit(task.Job{
		InputPath: path,
		Profile:   cfg.Profile(),
		Quality:   cfg.DefaultQuality,
		ForceFix:  cfg.ForceFix,
	})
}

// runBatch queues files in order, waits for the queue to drain and prints
// a summary. It returns non-zero if any file did not compress.
func runBatch(ctx context.Context, cfg *config.Config, tm *task.Manager, files []string, log hclog.Logger) int {
	events, unsubscribe := tm.Subscribe(64)
	defer unsubscribe()
	go func() {
		for ev := range events {
			if ev.Type == task.EventStage && ev.Task != nil {
				fmt.Printf("[%d/%d] %s: %s\n", ev.Task.Seq, len(files), filepath.Base(ev.Task.InputPath), ev.Stage)
			}
		}
	}()

	var ids []string
	failed := 0
	for _, f := range files {
		t, err := submitFile(tm, cfg, f)
		if err != nil {
			log.Error("skipping file", "path", f, "error", err)
			failed++
			continue
		}
		ids = append(ids, t.ID)
	}

	if err := tm.WaitIdle(ctx); err != nil {
		log.Warn("interrupted, waiting for the running job to finish")
		<-tm.Done()
	}

	fmt.Println()
	var saved int64
	for _, id := range ids {
		t, ok := tm.Get(id)
		if !ok {
			continue
		}
		name := filepath.Base(t.InputPath)
		switch t.Status {
		case task.StatusCompleted:
			saved += t.InputSize - t.OutputSize
			fmt.Printf("  ok      %-40s %10s -> %-10s %s\n", name,
				datasize.ByteSize(t.InputSize).HumanReadable(),
				datasize.ByteSize(t.OutputSize).HumanReadable(),
				filepath.Base(t.OutputPath))
		default:
			failed++
			fmt.Printf("  %-7s %-40s %s\n", t.Status, name, t.Error)
		}
	}
	if saved > 0 {
		fmt.Printf("\n  saved %s\n", datasize.ByteSize(saved).HumanReadable())
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *config.Config, tm *task.Manager, pipeline *ffmpeg.Pipeline, log hclog.Logger) int {
	if cfg.WatchDir != "" {
		w, err := intake.NewWatcher(cfg.WatchDir, watchSettle, func(path string) error {
			_, err := submitFile(tm, cfg, path)
			return err
		}, log)
		if err != nil {
			log.Error("failed to watch directory", "dir", cfg.WatchDir, "error", err)
			return 1
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("watcher stopped", "error", err)
			}
		}()
	}

	if !log.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(tm, pipeline, cfg, log)
	srv := &http.Server{
		Addr:     ":" + cfg.Port,
		Handler:  router,
		ErrorLog: log.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
		// Event streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("listen failed", "error", err)
		code = 1
	}

	// Restore default behavior on the interrupt signal and notify user of shutdown.
	stop()
	log.Info("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("waiting for the active job to finish")
	<-tm.Done()
	log.Info("server exiting")
	return code
}
