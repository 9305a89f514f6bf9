package safevoice

import (
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/safevoice/safevoice-go/internal/metrics"
	"github.com/safevoice/safevoice-go/internal/rest"
	"github.com/safevoice/safevoice-go/notify"
	"github.com/safevoice/safevoice-go/session"
	"github.com/safevoice/safevoice-go/tokenstore"
)

// Builder assembles a [Client]. Construction is allocation-only until Build;
// no I/O happens before [Client.Start].
type Builder struct {
	config     Config
	httpClient *http.Client
	store      tokenstore.Store
	logger     *zap.Logger

	built bool
}

// New creates a Builder with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the REST root.
func (b *Builder) WithBaseURL(url string) *Builder {
	b.config.API.BaseURL = url
	return b
}

// WithSocketURL sets the push endpoint base. Empty disables the live
// channel.
func (b *Builder) WithSocketURL(url string) *Builder {
	b.config.API.SocketURL = url
	return b
}

// WithHTTPClient sets the HTTP client used for REST calls and websocket
// dials. Per-call timeouts come from the configuration, not the client.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithTokenStore sets the token persistence backend. Defaults to
// [tokenstore.NewMemory].
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.store = store
	return b
}

// WithRedisTokenStore is shorthand for WithTokenStore over a Redis hash.
func (b *Builder) WithRedisTokenStore(client *redis.Client, prefix string, ttl time.Duration) *Builder {
	b.store = tokenstore.NewRedis(client, prefix, ttl)
	return b
}

// WithLogger sets the structured logger. Defaults to a nop logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the client. A Builder builds
// at most once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := b.store
	if store == nil {
		store = tokenstore.NewMemory()
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	m := metrics.New(cfg.Metrics.Enabled)

	restClient := rest.NewClient(cfg.API.BaseURL, httpClient, cfg.API.RequestTimeout, logger)

	manager := session.NewManager(session.Config{
		ExpirySkew:        cfg.Session.ExpirySkew,
		ProactiveInterval: cfg.Session.ProactiveInterval,
		RefreshThreshold:  cfg.Session.RefreshThreshold,
		RefreshTimeout:    cfg.Session.RefreshTimeout,
	}, store, restClient, logger, m)

	// Authenticated REST calls draw their bearer from the manager; login and
	// refresh never do, which keeps the wiring acyclic.
	restClient.SetTokenSource(manager)

	notifications := notify.NewStore(restClient, logger, m)

	var channel *notify.Channel
	if cfg.API.SocketURL != "" {
		channel = notify.NewChannel(notify.ChannelConfig{
			URL:            cfg.API.SocketURL,
			DialTimeout:    cfg.Channel.DialTimeout,
			InitialBackoff: cfg.Channel.InitialBackoff,
			MaxBackoff:     cfg.Channel.MaxBackoff,
			Multiplier:     cfg.Channel.Multiplier,
			MaxRetries:     cfg.Channel.MaxRetries,
			ReadLimit:      cfg.Channel.ReadLimit,
		}, notifications, manager, httpClient, logger, m)
	}

	b.built = true

	return &Client{
		config:        cfg,
		log:           logger,
		metrics:       m,
		rest:          restClient,
		session:       manager,
		notifications: notifications,
		channel:       channel,
	}, nil
}
