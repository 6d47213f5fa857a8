package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/botdeckhq/botdeck/internal/config"
	"github.com/botdeckhq/botdeck/internal/conversation"
	"github.com/botdeckhq/botdeck/internal/credentials"
	"github.com/botdeckhq/botdeck/internal/db"
	"github.com/botdeckhq/botdeck/internal/deployment"
	"github.com/botdeckhq/botdeck/internal/handlers"
	"github.com/botdeckhq/botdeck/internal/logger"
	"github.com/botdeckhq/botdeck/internal/platforms/discord"
	"github.com/botdeckhq/botdeck/internal/platforms/gohighlevel"
	"github.com/botdeckhq/botdeck/internal/platforms/slack"
	"github.com/botdeckhq/botdeck/internal/processor"
	"github.com/botdeckhq/botdeck/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBPool,
			provideHTTPClient,
			deployment.NewStore,
			deployment.NewRegistry,
			provideDispatcher,
			credentials.NewStore,
			provideRefreshers,
			provideSweeper,
			provideConversationService,
			provideProcessor,
			provideSlackClient,
			provideSlackHandler,
			provideSlackWebhook,
			provideSocketMode,
			provideGoHighLevelClient,
			provideGoHighLevelHandler,
			provideGoHighLevelWebhook,
			provideDiscordHandler,
			provideDiscordReceiver,
			provideServer,
		),
		fx.Invoke(
			registerPlatforms,
			startDispatcher,
			startSocketMode,
			startDiscordReceiver,
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	return config.Load(configPath)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideHTTPClient(cfg config.Config) *http.Client {
	timeout := time.Duration(cfg.Credentials.RequestTimeoutSeconds) * time.Second
	return &http.Client{Timeout: timeout}
}

func provideDispatcher(log *slog.Logger) *deployment.Dispatcher {
	return deployment.NewDispatcher(log, 8, 512)
}

// refresherMap holds one token refresher per provider with OAuth configured.
type refresherMap map[deployment.PlatformType]*credentials.Refresher

func provideRefreshers(log *slog.Logger, cfg config.Config, httpClient *http.Client, store *credentials.Store) refresherMap {
	m := refresherMap{}
	if cfg.Slack.ClientID != "" {
		m[deployment.PlatformSlack] = credentials.NewRefresher(log, httpClient,
			cfg.Slack.TokenURL, cfg.Slack.ClientID, cfg.Slack.ClientSecret, store)
	}
	if cfg.GoHighLevel.ClientID != "" {
		m[deployment.PlatformGoHighLevel] = credentials.NewRefresher(log, httpClient,
			cfg.GoHighLevel.TokenURL, cfg.GoHighLevel.ClientID, cfg.GoHighLevel.ClientSecret, store)
	}
	return m
}

func provideSweeper(log *slog.Logger, cfg config.Config, store *credentials.Store, refreshers refresherMap) (*credentials.Sweeper, error) {
	window, err := time.ParseDuration(cfg.Credentials.RefreshWindow)
	if err != nil {
		return nil, err
	}
	return credentials.NewSweeper(log, store, refreshers, cfg.Credentials.RefreshSchedule, window), nil
}

func provideConversationService(log *slog.Logger, pool *pgxpool.Pool) conversation.Service {
	return conversation.NewStore(log, pool)
}

func provideProcessor(log *slog.Logger, cfg config.Config, conversations conversation.Service) processor.Runner {
	llm := processor.NewOpenAI(cfg.Processor.APIKey, cfg.Processor.BaseURL, cfg.Processor.Model)
	return processor.NewService(log, conversations, llm, cfg.Processor.SystemPrompt, int32(cfg.Processor.HistoryLimit))
}

func provideSlackClient(log *slog.Logger, httpClient *http.Client, store *credentials.Store, refreshers refresherMap) *slack.Client {
	authClient := credentials.NewClient(log, httpClient, store, refreshers[deployment.PlatformSlack])
	return slack.NewClient(log, authClient, "")
}

func provideSlackHandler(log *slog.Logger, depStore *deployment.Store, credStore *credentials.Store, client *slack.Client, runner processor.Runner) *slack.Handler {
	return slack.NewHandler(log, depStore, credStore, client, runner)
}

func provideSlackWebhook(log *slog.Logger, cfg config.Config, handler *slack.Handler, dispatcher *deployment.Dispatcher) *slack.Webhook {
	return slack.NewWebhook(log, cfg.Slack.SigningSecret, handler, dispatcher)
}

func provideSocketMode(log *slog.Logger, cfg config.Config, client *slack.Client, handler *slack.Handler, dispatcher *deployment.Dispatcher) *slack.SocketMode {
	if cfg.Slack.AppToken == "" {
		return nil
	}
	return slack.NewSocketMode(log, client, cfg.Slack.AppToken, handler, dispatcher)
}

func provideGoHighLevelClient(log *slog.Logger, cfg config.Config, httpClient *http.Client, store *credentials.Store, refreshers refresherMap) *gohighlevel.Client {
	authClient := credentials.NewClient(log, httpClient, store, refreshers[deployment.PlatformGoHighLevel])
	return gohighlevel.NewClient(log, authClient, cfg.GoHighLevel.APIBase)
}

func provideGoHighLevelHandler(log *slog.Logger, depStore *deployment.Store, credStore *credentials.Store, client *gohighlevel.Client, runner processor.Runner) *gohighlevel.Handler {
	return gohighlevel.NewHandler(log, depStore, credStore, client, runner)
}

func provideGoHighLevelWebhook(log *slog.Logger, cfg config.Config, handler *gohighlevel.Handler, dispatcher *deployment.Dispatcher) *gohighlevel.Webhook {
	return gohighlevel.NewWebhook(log, cfg.GoHighLevel.WebhookSecret, handler, dispatcher)
}

func provideDiscordHandler(log *slog.Logger, depStore *deployment.Store, runner processor.Runner) *discord.Handler {
	return discord.NewHandler(log, depStore, runner)
}

func provideDiscordReceiver(log *slog.Logger, cfg config.Config, store *deployment.Store, creds *credentials.Store, handler *discord.Handler, dispatcher *deployment.Dispatcher) *discord.Receiver {
	if !cfg.Discord.Enabled {
		return nil
	}
	return discord.NewReceiver(log, store, creds, handler, dispatcher)
}

func provideServer(log *slog.Logger, cfg config.Config, depStore *deployment.Store, credStore *credentials.Store, registry *deployment.Registry, slackWebhook *slack.Webhook, ghlWebhook *gohighlevel.Webhook) (*server.Server, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, err
	}
	return server.NewServer(log, cfg.Server.Addr, cfg.Auth.JWTSecret,
		handlers.NewPingHandler(log),
		handlers.NewAuthHandler(log, cfg.Admin.Username, cfg.Admin.Password, cfg.Auth.JWTSecret, expiresIn),
		handlers.NewDeploymentsHandler(log, depStore, registry),
		handlers.NewCredentialsHandler(log, credStore, registry),
		slackWebhook,
		ghlWebhook,
	), nil
}

func registerPlatforms(registry *deployment.Registry, slackHandler *slack.Handler, ghlHandler *gohighlevel.Handler, discordHandler *discord.Handler) {
	registry.MustRegister(slackHandler)
	registry.MustRegister(ghlHandler)
	registry.MustRegister(discordHandler)
}

func startDispatcher(lc fx.Lifecycle, dispatcher *deployment.Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { dispatcher.Start(context.Background()); return nil },
		OnStop:  func(ctx context.Context) error { return dispatcher.Shutdown(ctx) },
	})
}

func startSocketMode(lc fx.Lifecycle, socket *slack.SocketMode) {
	if socket == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { socket.Start(context.Background()); return nil },
		OnStop:  func(context.Context) error { socket.Stop(); return nil },
	})
}

func startDiscordReceiver(lc fx.Lifecycle, receiver *discord.Receiver) {
	if receiver == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return receiver.Start(ctx) },
		OnStop:  func(context.Context) error { receiver.Stop(); return nil },
	})
}

func startSweeper(lc fx.Lifecycle, sweeper *credentials.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return sweeper.Start() },
		OnStop:  func(context.Context) error { sweeper.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", slog.String("error", err.Error()))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
