package commands

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"focusflow/internal/config"
	"focusflow/internal/notify"
	"focusflow/internal/service"
	"focusflow/internal/session"
	"focusflow/internal/storage"
	"focusflow/internal/view"
	"focusflow/internal/web"
)

const (
	sweepEvery     = 15 * time.Minute
	purgeEvery     = time.Hour
	jobTimeout     = 30 * time.Second
	shutdownWindow = 10 * time.Second
)

func addServe(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	topLevel.AddCommand(cmd)
}

func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	revocations, mem, publisher, err := a.sessions(ctx)
	if err != nil {
		return err
	}
	provider := session.NewProvider(a.users, session.Options{
		Secret:      []byte(cfg.JWTSecret),
		TTL:         cfg.SessionTTL,
		Revocations: revocations,
	}, log.WithField("component", "session"))

	manager := view.NewManager(a.stores(), log)
	provider.Subscribe(manager.Observe)
	if publisher != nil {
		provider.Subscribe(publisher.Publish)
	}

	blobs, opener, err := a.blobStore(ctx)
	if err != nil {
		return err
	}
	attacher := storage.NewAttacher(blobs, storage.Policy{MaxBytes: cfg.UploadMaxBytes}, log.WithField("component", "attacher"))

	metrics := web.NewMetrics()
	metrics.TrackWorkspaces(manager.Len)

	gin.SetMode(gin.ReleaseMode)
	router := web.NewRouter(web.Deps{
		Sessions:      provider,
		Workspaces:    manager,
		Attacher:      attacher,
		Blobs:         opener,
		Profiles:      a.users,
		Metrics:       metrics,
		Log:           log.WithField("component", "http"),
		SecureCookies: strings.HasPrefix(cfg.PublicBaseURL, "https://"),
		CookieTTL:     cfg.SessionTTL,
		MaxUpload:     cfg.UploadMaxBytes,
	})

	scheduler := service.NewSchedulerService(time.Local, log)
	if _, err := scheduler.ScheduleInterval("workspace-sweep", sweepEvery, func() {
		manager.Sweep(cfg.WorkspaceIdleTTL)
	}); err != nil {
		return err
	}
	if mem != nil {
		if _, err := scheduler.ScheduleInterval("revocation-purge", purgeEvery, func() { mem.Purge() }); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if publisher != nil {
		g.Go(func() error {
			if err := publisher.Listen(gctx, manager.Observe); err != nil {
				log.WithError(err).Error("identity event listener stopped")
			}
			return nil
		})
	}

	if cfg.DigestEnabled() {
		api, err := notify.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return err
		}
		tg := notify.NewTelegram(api, a.users, a.digest(), log)
		if err := scheduleDigest(scheduler, cfg, tg); err != nil {
			return err
		}
		g.Go(func() error { return tg.Listen(gctx) })
	}

	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("focusflow listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWindow)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		manager.CloseAll()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func scheduleDigest(scheduler *service.SchedulerService, cfg config.Config, tg *notify.Telegram) error {
	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		_, _ = tg.SendDigests(ctx)
	}
	if cfg.DigestTime != "" {
		_, err := scheduler.ScheduleDaily("digest", cfg.DigestTime, job)
		return err
	}
	_, err := scheduler.ScheduleInterval("digest", cfg.DigestInterval, job)
	return err
}
