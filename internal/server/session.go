package server

import (
	"buildsession/internal/config"
	"buildsession/internal/eventbus"
	"buildsession/internal/session"
	"buildsession/internal/state"
	"buildsession/internal/transport"
)

// NewSession builds the store and connection manager for the configured
// session. Frames are mirrored to Redis when deps carries a client.
func NewSession(cfg *config.Config, deps *Dependency, factory transport.Factory) (*session.Manager, *state.Store) {
	logger := deps.Logger
	store := state.NewStore(logger)
	store.OnEffect(func(e state.Effect) {
		logger.Debug("Effect committed", "effect", e.String(), "session_id", cfg.Session.SessionID)
	})

	var opts []session.Option
	if deps.Redis != nil {
		opts = append(opts, session.WithMirror(eventbus.NewRedisMirror(deps.Redis, logger)))
	}
	return session.NewManager(SessionConfig(cfg), store, factory, logger, opts...), store
}

// SessionConfig maps the file/env configuration onto the manager's config.
func SessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		URL:            cfg.Session.WSURL,
		Token:          cfg.Session.Token,
		SessionID:      cfg.Session.SessionID,
		ConnectTimeout: cfg.Session.ConnectTimeout,
		SendInit:       cfg.Session.SendInit,
		InitialPrompt:  cfg.Session.InitialPrompt,
		Transport: transport.Options{
			HandshakeTimeout: cfg.Transport.HandshakeTimeout,
			WriteTimeout:     cfg.Transport.WriteTimeout,
			PingInterval:     cfg.Transport.PingInterval,
			PongWait:         cfg.Transport.PongWait,
			MaxFrameBytes:    cfg.Transport.MaxFrameBytes,
		},
		Reconnect: session.ReconnectPolicy{
			Mode:                session.ReconnectMode(cfg.Reconnect.Mode),
			MaxAttempts:         cfg.Reconnect.MaxAttempts,
			InitialInterval:     cfg.Reconnect.InitialInterval,
			MaxInterval:         cfg.Reconnect.MaxInterval,
			Multiplier:          cfg.Reconnect.Multiplier,
			RandomizationFactor: cfg.Reconnect.RandomizationFactor,
			MaxElapsedTime:      cfg.Reconnect.MaxElapsedTime,
		},
	}
}
