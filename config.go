package safevoice

import (
	"errors"
	"time"
)

// Config defines the client's endpoints and timing policy. Zero values are
// filled from defaults by [New]; Validate runs at Build.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Gate    GateConfig
	Channel ChannelConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the backend.
type APIConfig struct {
	// BaseURL is the REST root, e.g. "https://api.example.org/api". Required.
	BaseURL string
	// SocketURL is the push endpoint base, e.g.
	// "wss://api.example.org/ws/notifications". Empty disables the live
	// channel; the notification store then works through Refetch only.
	SocketURL string
	// RequestTimeout bounds each REST call.
	RequestTimeout time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig is the session manager's timing policy.
type SessionConfig struct {
	// ExpirySkew is the minimum remaining token lifetime required to treat
	// a stored or held access token as usable without refreshing.
	ExpirySkew time.Duration
	// ProactiveInterval is the period of the background expiry check. It
	// should be well below the backend's access-token lifetime.
	ProactiveInterval time.Duration
	// RefreshThreshold is the remaining lifetime below which the proactive
	// check refreshes.
	RefreshThreshold time.Duration
	// RefreshTimeout bounds one refresh round trip.
	RefreshTimeout time.Duration
}

/*
====================================
GATE CONFIG
====================================
*/

// GateConfig holds the redirect targets [Client.Authorize] hands back.
type GateConfig struct {
	// LoginTarget is where an unauthenticated subject is sent.
	LoginTarget string
	// HomeTarget is where an authenticated subject with the wrong role is
	// sent. Wrong role is not "logged out", so this is never LoginTarget.
	HomeTarget string
}

/*
====================================
CHANNEL CONFIG
====================================
*/

// ChannelConfig is the notification channel's dial and reconnect policy.
type ChannelConfig struct {
	DialTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// MaxRetries is the consecutive-failure budget before the channel
	// degrades to poll-only mode.
	MaxRetries int
	// ReadLimit caps a single inbound frame, in bytes.
	ReadLimit int64
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			RequestTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			ExpirySkew:        60 * time.Second,
			ProactiveInterval: 30 * time.Second,
			RefreshThreshold:  60 * time.Second,
			RefreshTimeout:    10 * time.Second,
		},
		Gate: GateConfig{
			LoginTarget: TargetLogin,
			HomeTarget:  TargetHome,
		},
		Channel: ChannelConfig{
			DialTimeout:    8 * time.Second,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
			MaxRetries:     3,
			ReadLimit:      1 << 20,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API.BaseURL is required")
	}
	if c.API.RequestTimeout <= 0 {
		return errors.New("API.RequestTimeout must be positive")
	}
	if c.Session.ExpirySkew <= 0 ||
		c.Session.ProactiveInterval <= 0 ||
		c.Session.RefreshThreshold <= 0 ||
		c.Session.RefreshTimeout <= 0 {
		return errors.New("Session durations must be positive")
	}
	if c.Gate.LoginTarget == "" || c.Gate.HomeTarget == "" {
		return errors.New("Gate targets must be set")
	}
	if c.Channel.DialTimeout <= 0 ||
		c.Channel.InitialBackoff <= 0 ||
		c.Channel.MaxBackoff < c.Channel.InitialBackoff {
		return errors.New("Channel backoff configuration invalid")
	}
	if c.Channel.Multiplier < 1 {
		return errors.New("Channel.Multiplier must be >= 1")
	}
	if c.Channel.MaxRetries < 0 {
		return errors.New("Channel.MaxRetries must be >= 0")
	}
	return nil
}
