package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/findingjimoh/android-sms-gateway/internal/api"
	"github.com/findingjimoh/android-sms-gateway/internal/backoff"
	"github.com/findingjimoh/android-sms-gateway/internal/cache"
	"github.com/findingjimoh/android-sms-gateway/internal/client"
	"github.com/findingjimoh/android-sms-gateway/internal/config"
	"github.com/findingjimoh/android-sms-gateway/internal/dispatch"
	"github.com/findingjimoh/android-sms-gateway/internal/events"
	"github.com/findingjimoh/android-sms-gateway/internal/inbox"
	"github.com/findingjimoh/android-sms-gateway/internal/model"
	"github.com/findingjimoh/android-sms-gateway/internal/registration"
	"github.com/findingjimoh/android-sms-gateway/internal/repo"
	"github.com/findingjimoh/android-sms-gateway/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.LoadAll()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(startupCtx, db); err != nil {
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	gw, err := client.NewGatewayClient(cfg.Gateway.ServerURL)
	if err != nil {
		log.Error("failed to build gateway client", "error", err)
		os.Exit(1)
	}

	bus := events.NewBus(log)
	go logRegistrationEvents(log, bus.Subscribe(16))

	regStore := repo.NewPostgresRegistrationStore(db)
	regSvc := registration.NewService(regStore, gw, bus, cfg.Gateway.DeviceName, log)

	var reportCache dispatch.ReportCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		reportCache = cache.NewRedisReportCache(rdb, cfg.Redis.TTL)
	}

	pipeline := dispatch.NewPipeline(repo.NewPostgresMessageStore(db), gw, regSvc, reportCache, log)

	contentStore := repo.NewPostgresContentStore(db)
	engine := inbox.NewEngine(gw, regSvc, log,
		inbox.NewSMSReader(contentStore), inbox.NewMMSReader(contentStore))

	mode := registrationMode(cfg.Registration)
	runner := backoff.Runner{
		Policy:      backoff.Default(),
		IsDuplicate: client.IsDuplicate,
		IsTransient: client.IsTransient,
		Log:         log,
	}

	ensure := func(ctx context.Context) error {
		pushToken, err := regStore.LoadPushToken(ctx)
		if err != nil {
			return err
		}
		return regSvc.EnsureRegistered(ctx, pushToken, mode)
	}

	if err := runner.Run(startupCtx, "registration", ensure); err != nil {
		// Not fatal: the server may be unreachable right now. The runs
		// below re-register as soon as a 401 shows up.
		log.Error("initial registration failed", "module", "registration", "error", err)
	}

	// run wraps a body with the shared retry policy and heals a rejected
	// token by re-registering once before giving the body a second chance.
	run := func(name string, body func(context.Context) error) scheduler.RunFunc {
		return func(ctx context.Context) error {
			err := runner.Run(ctx, name, body)
			if err == nil || !isAuthFailure(err) {
				return err
			}
			if err := ensure(ctx); err != nil {
				return err
			}
			return runner.Run(ctx, name, body)
		}
	}

	pullSched, err := scheduler.New("pull", cfg.Gateway.PullInterval, run("pull", func(ctx context.Context) error {
		_, err := pipeline.Pull(ctx)
		return err
	}), log)
	if err != nil {
		log.Error("failed to build pull scheduler", "error", err)
		os.Exit(1)
	}

	inboxSched, err := scheduler.New("inbox-sync", cfg.Gateway.InboxInterval, run("inbox-sync", engine.SyncInbox), log)
	if err != nil {
		log.Error("failed to build inbox scheduler", "error", err)
		os.Exit(1)
	}

	refreshSched, err := scheduler.New("refresh", cfg.Gateway.RefreshInterval, run("refresh", func(ctx context.Context) error {
		return refreshRemoteConfig(ctx, log, gw, regSvc)
	}), log)
	if err != nil {
		log.Error("failed to build refresh scheduler", "error", err)
		os.Exit(1)
	}

	pullSched.Start()
	inboxSched.Start()
	refreshSched.Start()
	defer func() {
		refreshSched.Stop()
		inboxSched.Stop()
		pullSched.Stop()
	}()

	handler := api.NewHandler(repo.NewPostgresConversationRepo(db), pullSched, inboxSched, refreshSched)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.Router(handler),
	}

	go func() {
		log.Info("local api listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("local api failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}

func registrationMode(cfg config.RegistrationConfig) model.RegistrationMode {
	switch cfg.Mode {
	case "credentials":
		return model.WithCredentials(cfg.Login, cfg.Password)
	case "code":
		return model.WithCode(cfg.Code)
	default:
		return model.Anonymous()
	}
}

func isAuthFailure(err error) bool {
	return client.IsUnauthorized(err) || errors.Is(err, registration.ErrNotRegistered)
}

func refreshRemoteConfig(ctx context.Context, log *slog.Logger, gw *client.GatewayClient, regSvc *registration.Service) error {
	info, err := regSvc.Info(ctx)
	if err != nil {
		return err
	}

	webhooks, err := gw.GetWebhooks(ctx, info.AccessToken)
	if err != nil {
		return err
	}
	settings, err := gw.GetSettings(ctx, info.AccessToken)
	if err != nil {
		return err
	}

	log.Info("remote config refreshed", "module", "refresh",
		"webhooks", len(webhooks), "settings", len(settings))
	return nil
}

func logRegistrationEvents(log *slog.Logger, ch <-chan events.Event) {
	for e := range ch {
		switch ev := e.(type) {
		case events.RegistrationSucceeded:
			log.Info("device registered", "module", "registration",
				"hostname", ev.Hostname, "login", ev.Login)
		case events.RegistrationFailed:
			log.Warn("device registration failed", "module", "registration",
				"hostname", ev.Hostname, "message", ev.Message)
		}
	}
}
