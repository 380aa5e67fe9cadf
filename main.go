package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	afterhoursagent "github.com/wireheat/afterhours/agent/agents/afterhours"
	eventsx "github.com/wireheat/afterhours/agent/events"
	intakex "github.com/wireheat/afterhours/agent/intake"
	statex "github.com/wireheat/afterhours/agent/state"
	toolx "github.com/wireheat/afterhours/agent/tool"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
	configx "github.com/wireheat/afterhours/pkg/config"
	_ "github.com/wireheat/afterhours/pkg/logger/autoload"
	signalwirex "github.com/wireheat/afterhours/pkg/signalwire"
	"github.com/wireheat/afterhours/server"
)

type AppConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	def := workflowx.Afterhours()
	registry, err := toolx.NewAfterhoursRegistry()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build tool registry")
	}

	repo, cleanup := buildRepository(appCfg.DatabaseURL)
	defer cleanup()

	hub := eventsx.NewHub()

	agent, err := afterhoursagent.New(statex.NewMemoryStore(), def, registry, repo, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent")
	}

	serverCfg := configx.MustNew[server.Config]("SERVER")

	sw := buildSignalWire()
	srv := server.New(*serverCfg, agent, repo, hub, sw)

	if sw != nil {
		go registerHandler(srv, sw)
	}

	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}

// buildRepository picks the durable backend when DATABASE_URL is set and falls
// back to the in-memory repository otherwise.
func buildRepository(dsn string) (intakex.Repository, func()) {
	if dsn == "" {
		log.Info().Msg("using in-memory intake repository")
		return intakex.NewMemoryRepository(), func() {}
	}

	repo, err := intakex.NewPostgresRepository(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open postgres repository")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := repo.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize postgres repository")
	}

	log.Info().Msg("using postgres intake repository")
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Warn().Err(err).Msg("closing postgres repository")
		}
	}
}

// buildSignalWire returns nil when credentials are absent; the server degrades
// to dialog-core-only mode and the token endpoint reports unavailable.
func buildSignalWire() *signalwirex.Client {
	cfg, err := configx.New[signalwirex.Config]("SIGNALWIRE")
	if err != nil {
		log.Warn().Err(err).Msg("signalwire config incomplete, telephony disabled")
		return nil
	}

	client, err := signalwirex.NewClient(*cfg)
	if err != nil {
		if errors.Is(err, signalwirex.ErrNotConfigured) {
			log.Warn().Msg("signalwire credentials not set, telephony disabled")
		} else {
			log.Warn().Err(err).Msg("signalwire client unavailable, telephony disabled")
		}
		return nil
	}
	return client
}

// registerHandler runs platform setup in the background so a slow or failing
// telephony API never blocks serving the dialog core.
func registerHandler(srv *server.Server, sw *signalwirex.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := sw.EnsureHandler(ctx)
	if err != nil {
		log.Error().Err(err).Msg("call handler registration failed")
		return
	}
	srv.SetHandlerInfo(info)
	log.Info().Str("address", info.Address).Msg("call handler registered")
}
