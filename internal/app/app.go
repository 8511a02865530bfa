// Package app wires configuration, integrations, state and use cases into
// a ready handler. Both the Lambda entry point and the dev server build
// from here.
package app

import (
	"context"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"studio-relay/handler"
	"studio-relay/internal/config"
	"studio-relay/internal/integrations/paramstore"
	"studio-relay/internal/integrations/telegram"
	"studio-relay/internal/repository"
	"studio-relay/internal/store"
	"studio-relay/internal/usecase"
)

// State is what both the memory store and the DynamoDB repository provide
// to the use cases, plus the sweep hook the dev server drives on a timer.
type State interface {
	usecase.RateLimiter
	usecase.SessionStore
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// App holds the built components an entry point may need.
type App struct {
	Handler  *handler.Handler
	Telegram *telegram.Client
	State    State
}

// Build assembles the full service from configuration.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	source, err := credentialSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tg, err := telegram.NewClient(source)
	if err != nil {
		return nil, err
	}

	state, err := buildState(ctx, cfg)
	if err != nil {
		return nil, err
	}

	relaySvc, err := usecase.NewRelayService(tg, state)
	if err != nil {
		return nil, err
	}
	botSvc, err := usecase.NewBotService(tg, state, state)
	if err != nil {
		return nil, err
	}

	h, err := handler.NewHandler(relaySvc, botSvc, handler.Options{
		WebhookSecret: cfg.WebhookSecret,
		Debug:         cfg.Debug,
	})
	if err != nil {
		return nil, err
	}

	return &App{Handler: h, Telegram: tg, State: state}, nil
}

// credentialSource prefers SSM when a parameter prefix is configured.
// Missing env credentials are not fatal here: the contract is a 500
// configuration-error response at request time, not a crash loop.
func credentialSource(ctx context.Context, cfg config.Config) (telegram.CredentialSource, error) {
	if cfg.ParamPrefix == "" {
		if !cfg.CredentialsFromEnv() {
			slog.Warn("bot credentials absent; relay requests will fail with a configuration error")
		}
		return telegram.StaticSource{Token: cfg.BotToken, ChatID: cfg.ChatID}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return telegram.NewParamSource(ps, cfg.ParamPrefix)
}

func buildState(ctx context.Context, cfg config.Config) (State, error) {
	if cfg.StateTable == "" {
		slog.Warn("state table not configured; rate limits and sessions are per-instance memory only")
		return store.NewMemory(
			store.WithWindow(cfg.RateLimitWindow, cfg.RateLimitCapacity),
			store.WithSessionTTL(cfg.SessionTTL),
		), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return repository.New(
		awsdynamodb.NewFromConfig(awsCfg),
		cfg.StateTable,
		cfg.RateLimitWindow,
		cfg.RateLimitCapacity,
		cfg.SessionTTL,
	)
}
