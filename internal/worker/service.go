// Package worker provides the HTTP clustering service for textclust.
package worker

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm/logger"

	"github.com/thebtf/textclust/internal/clustering"
	"github.com/thebtf/textclust/internal/config"
	gormdb "github.com/thebtf/textclust/internal/db/gorm"
	"github.com/thebtf/textclust/internal/presets"
	"github.com/thebtf/textclust/internal/telemetry"
	"github.com/thebtf/textclust/internal/watcher"
	"github.com/thebtf/textclust/internal/worker/sse"
)

// MaxBodyBytes caps the size of a clustering request body.
const MaxBodyBytes = 32 << 20

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// Service is the clustering HTTP service.
type Service struct {
	startTime      time.Time
	ctx            context.Context
	config         *config.Config
	pipeline       *clustering.Pipeline
	store          *gormdb.Store
	analysisStore  *gormdb.AnalysisStore
	sseBroadcaster *sse.Broadcaster
	sem            *semaphore.Weighted
	recorder       *telemetry.Recorder
	router         chi.Router
	server         *http.Server
	cancel         context.CancelFunc
	watchers       []*watcher.Watcher
	version        string
	ready          atomic.Bool
}

// NewService wires the pipeline, optional persistence and the event stream.
// A database that cannot be opened disables persistence instead of failing.
func NewService(version string, cfg *config.Config) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		version:        version,
		config:         cfg,
		sseBroadcaster: sse.NewBroadcaster(),
		sem:            semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1))),
		recorder:       telemetry.Default(),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}

	if cfg.DBDriver != config.DriverNone {
		store, err := gormdb.NewStore(gormdb.Config{
			Driver:   cfg.DBDriver,
			Path:     cfg.DBPath,
			DSN:      cfg.DBDSN,
			MaxConns: cfg.MaxConns,
			LogLevel: logger.Silent,
		})
		if err != nil {
			log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("Database unavailable, analyses will not be stored")
		} else {
			svc.store = store
			svc.analysisStore = gormdb.NewAnalysisStore(store, cfg.MaxAnalyses)
		}
	}

	registry, err := presets.Load(cfg.PresetsPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.PresetsPath).Msg("Failed to load presets, continuing without them")
		registry = presets.Empty()
	}

	opts := []clustering.Option{
		clustering.WithDefaults(clustering.Defaults{
			Algorithm:       cfg.DefaultAlgorithm,
			TopKeywords:     cfg.TopKeywords,
			MinKeywordRunes: cfg.MinKeywordLength,
			SummaryStyle:    cfg.SummaryStyle,
		}),
		clustering.WithPresets(registry),
		clustering.WithAlgorithms(cfg.Algorithms),
		clustering.WithNotifier(svc.sseBroadcaster),
		clustering.WithRecorder(svc.recorder),
	}
	if svc.analysisStore != nil {
		opts = append(opts, clustering.WithSink(svc.analysisStore))
	}
	svc.pipeline = clustering.New(opts...)

	svc.setupRoutes()
	return svc, nil
}

// Handler returns the service router.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Run serves HTTP on the configured address until ctx ends, then shuts down
// gracefully.
func (s *Service) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.startWatchers()
	s.ready.Store(true)
	log.Info().Str("addr", s.server.Addr).Str("version", s.version).Msg("Starting clustering service")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.ctx.Done():
		}
		return s.Shutdown()
	})
	return g.Wait()
}

// Shutdown stops accepting requests, disconnects stream clients and closes
// the database.
func (s *Service) Shutdown() error {
	if !s.ready.Swap(false) {
		return nil
	}
	log.Info().Msg("Shutting down clustering service")

	for _, w := range s.watchers {
		_ = w.Stop()
	}
	s.sseBroadcaster.Close()

	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		err = s.server.Shutdown(ctx)
	}
	s.cancel()
	if s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// startWatchers reloads presets when their file changes and restarts the
// service when the settings file changes.
func (s *Service) startWatchers() {
	presetsPath := s.config.PresetsPath
	presetsWatcher, err := watcher.New(presetsPath, func(exists bool) {
		s.reloadPresets(presetsPath)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create presets watcher")
	} else if err := presetsWatcher.Start(); err == nil {
		s.watchers = append(s.watchers, presetsWatcher)
	}

	settingsPath := config.SettingsPath()
	settingsWatcher, err := watcher.New(settingsPath, func(bool) {
		log.Warn().Str("path", settingsPath).Msg("Settings changed, shutting down for restart")
		s.cancel()
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
	} else if err := settingsWatcher.Start(); err == nil {
		s.watchers = append(s.watchers, settingsWatcher)
	}
}

func (s *Service) reloadPresets(path string) {
	registry, err := presets.Load(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Invalid presets file, keeping previous presets")
		return
	}
	s.pipeline.SetPresets(registry)
	log.Info().Str("path", path).Int("presets", len(registry.All())).Msg("Presets reloaded")
}
