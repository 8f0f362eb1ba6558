// Package config loads settings from the environment and an optional .env file.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// STT providers.
const (
	ProviderGoogle   = "google"
	ProviderDeepgram = "deepgram"
)

var (
	ErrMissingValue    = errors.New("config: missing required value")
	ErrUnknownProvider = errors.New("config: unknown STT provider")
)

type Config struct {
	Port        int
	PublicURL   string
	StreamURL   string
	PauseLength int

	STTProvider       string
	GoogleCredentials string
	DeepgramAPIKey    string
	LanguageCode      string

	ReconnectDelay  time.Duration
	ShutdownTimeout time.Duration

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	LogLevel string
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from v, filling in defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("PORT", 8000)
	v.SetDefault("PAUSE_LENGTH", 60)
	v.SetDefault("STT_PROVIDER", ProviderGoogle)
	v.SetDefault("LANGUAGE_CODE", "en-US")
	v.SetDefault("RECONNECT_DELAY", 5*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Port:              v.GetInt("PORT"),
		PublicURL:         strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		StreamURL:         v.GetString("STREAM_URL"),
		PauseLength:       v.GetInt("PAUSE_LENGTH"),
		STTProvider:       strings.ToLower(v.GetString("STT_PROVIDER")),
		GoogleCredentials: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
		DeepgramAPIKey:    v.GetString("DEEPGRAM_API_KEY"),
		LanguageCode:      v.GetString("LANGUAGE_CODE"),
		ReconnectDelay:    v.GetDuration("RECONNECT_DELAY"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
		TwilioAccountSID:  v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  v.GetString("TWILIO_FROM_NUMBER"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}

	if cfg.StreamURL == "" && cfg.PublicURL != "" {
		u, err := StreamURLFor(cfg.PublicURL)
		if err != nil {
			return nil, err
		}
		cfg.StreamURL = u
	}
	return cfg, nil
}

// StreamURLFor turns the public base URL into the websocket URL of /media.
func StreamURLFor(publicURL string) (string, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", errors.Wrap(err, "parse PUBLIC_URL")
	}
	if u.Host == "" {
		return "", errors.Errorf("PUBLIC_URL %q has no host", publicURL)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/media"
	u.RawQuery = ""
	return u.String(), nil
}

// HasTwilio reports whether outbound calls can be placed.
func (c *Config) HasTwilio() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// ValidateServe checks what the server needs to transcribe.
func (c *Config) ValidateServe() error {
	switch c.STTProvider {
	case ProviderGoogle:
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return errors.Wrap(ErrMissingValue, "DEEPGRAM_API_KEY")
		}
	default:
		return errors.Wrapf(ErrUnknownProvider, "%q", c.STTProvider)
	}
	if c.Port <= 0 {
		return errors.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

// ValidateCall checks what placing an outbound call needs.
func (c *Config) ValidateCall() error {
	required := []struct{ key, value string }{
		{"TWILIO_ACCOUNT_SID", c.TwilioAccountSID},
		{"TWILIO_AUTH_TOKEN", c.TwilioAuthToken},
		{"TWILIO_FROM_NUMBER", c.TwilioFromNumber},
		{"PUBLIC_URL", c.PublicURL},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.Wrap(ErrMissingValue, r.key)
		}
	}
	return nil
}
