// Command odometry runs the visual odometry service: it drains a frame
// source through the motion-estimation pipeline, persists frames and
// trajectory records, and serves the inspection API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/odometry.report/internal/api"
	"github.com/banshee-data/odometry.report/internal/camera"
	"github.com/banshee-data/odometry.report/internal/config"
	"github.com/banshee-data/odometry.report/internal/db"
	"github.com/banshee-data/odometry.report/internal/timeutil"
	"github.com/banshee-data/odometry.report/internal/version"
	"github.com/banshee-data/odometry.report/internal/vo"
	"github.com/banshee-data/odometry.report/internal/vo/monitor"
	vostore "github.com/banshee-data/odometry.report/internal/vo/storage/sqlite"
)

var (
	configPath  = flag.String("config", "", "Path to tuning config JSON")
	dbPath      = flag.String("db", "odometry.db", "Path to SQLite database")
	migrations  = flag.String("migrations", "migrations", "Path to schema migrations")
	framesDir   = flag.String("frames", "", "Directory of input frames (png/jpeg)")
	storeDir    = flag.String("store-frames", "", "Directory for raw frame persistence (empty disables)")
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	devMode     = flag.Bool("dev", false, "Run against the synthetic frame source")
	devFrames   = flag.Int("dev-frames", 50, "Synthetic frame count in dev mode")
	traceFrames = flag.Bool("trace", false, "Enable per-frame trace logging")
	plotPath    = flag.String("plot", "", "Write a trajectory PNG here when the session ends")
)

func main() {
	flag.Parse()

	writers := vo.LogWriters{Ops: os.Stderr, Diag: os.Stderr}
	if *traceFrames {
		writers.Trace = os.Stderr
	}
	vo.SetLogWriters(writers)

	if err := run(); err != nil {
		log.Fatalf("odometry: %v", err)
	}
}

func run() error {
	clock := timeutil.RealClock{}
	vo.Opsf("odometry %s (%s) starting", version.Version, version.GitSHA)

	tuning, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	var intrinsics camera.Intrinsics
	if *devMode {
		// The synthetic source has no physical camera; use a nominal
		// pinhole centred on its frames.
		intrinsics = camera.Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}
	} else {
		intrinsics, err = tuning.Intrinsics()
		if err != nil {
			return err
		}
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.MigrateUp(*migrations); err != nil {
		return err
	}

	var source camera.FrameSource
	switch {
	case *devMode:
		source = camera.NewSyntheticSource(640, 480, *devFrames, tuning.Seed())
	case *framesDir != "":
		source, err = camera.NewDirectorySource(*framesDir)
		if err != nil {
			return err
		}
	default:
		return errors.New("either -frames or -dev is required")
	}
	defer source.Close()

	var frameStore camera.FrameStore
	if *storeDir != "" {
		frameStore, err = camera.NewDirectoryStore(*storeDir)
		if err != nil {
			return err
		}
	}

	sessionID := uuid.NewString()
	store := vostore.NewRecordStore(database.DB)
	sourceName := *framesDir
	if *devMode {
		sourceName = "synthetic"
	}
	if err := store.CreateSession(sessionID, sourceName, clock.Now()); err != nil {
		return err
	}

	pipeline, err := vo.NewPipeline(vo.PipelineConfig{
		SessionID:       sessionID,
		Intrinsics:      intrinsics,
		Seed:            tuning.Seed(),
		ExtractorParams: tuning.ExtractorParams(),
		MatcherParams:   tuning.MatcherParams(),
		FilterParams:    tuning.FilterParams(),
		Records:         store,
		Frames:          frameStore,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.NewServer(pipeline, store).ServeMux(),
	}
	go func() {
		vo.Opsf("http listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			vo.Opsf("http server: %v", err)
		}
	}()

	runErr := pipeline.Run(ctx, source)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		vo.Opsf("pipeline ended with error: %v", runErr)
	}

	if *plotPath != "" {
		records, err := store.GetRecords(sessionID, 0)
		if err != nil {
			vo.Opsf("load records for plot: %v", err)
		} else if err := monitor.SaveTrajectoryPNG(*plotPath, sessionID, records); err != nil {
			vo.Opsf("write trajectory plot: %v", err)
		} else {
			vo.Opsf("trajectory plot written to %s", *plotPath)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		vo.Opsf("http shutdown: %v", err)
	}
	return nil
}
