package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/longregen/alicia-edge/internal/adapters/gateway"
	"github.com/longregen/alicia-edge/internal/adapters/player"
	"github.com/longregen/alicia-edge/internal/adapters/retry"
	"github.com/longregen/alicia-edge/internal/adapters/vendor"
	"github.com/longregen/alicia-edge/internal/application"
	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/orchestrator"
	"github.com/longregen/alicia-edge/internal/playback"
	"github.com/longregen/alicia-edge/pkg/otel"
)

// Config holds all configuration for alicia-edge
type Config struct {
	Gateway       GatewayConfig       `json:"gateway"`
	Device        DeviceConfig        `json:"device"`
	Prompts       PromptsConfig       `json:"prompts"`
	Playback      PlaybackConfig      `json:"playback"`
	Player        PlayerConfig        `json:"player"`
	Observability ObservabilityConfig `json:"observability"`
}

// GatewayConfig holds the cloud gateway connection settings
type GatewayConfig struct {
	URL                string   `json:"url"`          // ws or wss endpoint, signed per biz on connect
	CACertPath         string   `json:"ca_cert_path"` // optional PEM bundle for wss
	Heartbeat          Duration `json:"heartbeat"`
	ReconnectInterval  Duration `json:"reconnect_interval"`
	ReconnectAttempts  int      `json:"reconnect_attempts"` // 0 retries forever
	WriteTimeout       Duration `json:"write_timeout"`
	PongTimeout        Duration `json:"pong_timeout"`
	MicrophoneWatchdog Duration `json:"microphone_watchdog"`
}

// DeviceConfig holds the device identity and speaker defaults
type DeviceConfig struct {
	MAC             string `json:"mac"`
	Serial          string `json:"serial"` // generated and persisted when empty
	BizType         string `json:"biz_type"`
	BizGroup        string `json:"biz_group"`
	BizSecret       string `json:"biz_secret"`
	CredentialsPath string `json:"credentials_path"`
	Volume          int    `json:"volume"`
	Muted           bool   `json:"muted"`
}

// PromptsConfig holds the local prompt sources played on device events
type PromptsConfig struct {
	Wakeup       string `json:"wakeup"`
	Record       string `json:"record"`
	NetworkLost  string `json:"network_lost"`
	ServerLost   string `json:"server_lost"`
	Unauthorized string `json:"unauthorized"`
	NotActivated string `json:"not_activated"`
}

// PlaybackConfig holds the arbiter timing
type PlaybackConfig struct {
	TTSFrameTimeout Duration `json:"tts_frame_timeout"`
	ResumeGrace     Duration `json:"resume_grace"`
}

// PlayerConfig tunes the simulated player engine
type PlayerConfig struct {
	PromptDuration Duration `json:"prompt_duration"`
	MusicDuration  Duration `json:"music_duration"`
	NearlyLead     Duration `json:"nearly_lead"` // how long before the end NearlyCompleted is reported
	TTSByteRate    int      `json:"tts_byte_rate"`
}

// ObservabilityConfig holds logging, tracing and the debug server
type ObservabilityConfig struct {
	LogLevel     string `json:"log_level"`
	Environment  string `json:"environment"`
	OTLPEndpoint string `json:"otlp_endpoint"`
	StdoutTraces bool   `json:"stdout_traces"`
	DebugAddr    string `json:"debug_addr"` // empty disables the debug server
	// DebugToken, when set, is required as a bearer token on the debug input endpoints
	DebugToken string `json:"debug_token"`
}

// Duration is a time.Duration written as a Go duration string in JSON.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "alicia-edge")
	session := orchestrator.DefaultConfig()
	playbackDefaults := playback.DefaultConfig()

	return &Config{
		Gateway: GatewayConfig{
			URL:                session.GatewayURL,
			Heartbeat:          Duration(session.Heartbeat),
			ReconnectInterval:  Duration(session.Reconnect.Interval),
			ReconnectAttempts:  session.Reconnect.MaxAttempts,
			WriteTimeout:       Duration(10 * time.Second),
			PongTimeout:        Duration(3 * time.Second),
			MicrophoneWatchdog: Duration(session.MicrophoneWatchdog),
		},
		Device: DeviceConfig{
			CredentialsPath: filepath.Join(dataDir, "credentials.msgpack"),
			Volume:          50,
		},
		Prompts: PromptsConfig{
			Wakeup:       "file:///usr/share/alicia-edge/prompts/wakeup.mp3",
			Record:       "file:///usr/share/alicia-edge/prompts/record.mp3",
			NetworkLost:  "file:///usr/share/alicia-edge/prompts/network_lost.mp3",
			ServerLost:   "file:///usr/share/alicia-edge/prompts/server_lost.mp3",
			Unauthorized: "file:///usr/share/alicia-edge/prompts/unauthorized.mp3",
			NotActivated: "file:///usr/share/alicia-edge/prompts/not_activated.mp3",
		},
		Playback: PlaybackConfig{
			TTSFrameTimeout: Duration(playbackDefaults.TTSFrameTimeout),
			ResumeGrace:     Duration(playbackDefaults.ResumeGrace),
		},
		Player: PlayerConfig{
			PromptDuration: Duration(2 * time.Second),
			MusicDuration:  Duration(3 * time.Minute),
			NearlyLead:     Duration(5 * time.Second),
			TTSByteRate:    32000,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			Environment: "development",
			DebugAddr:   "127.0.0.1:8780",
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envBool loads a boolean environment variable into the target pointer if set and valid
func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// envDuration loads a Go duration string (e.g. "250ms") into the target pointer if set and valid
func envDuration(key string, target *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = Duration(d)
		}
	}
}

// Load loads configuration from the config file and environment variables
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	// Gateway
	envString("ALICIA_EDGE_GATEWAY_URL", &cfg.Gateway.URL)
	envString("ALICIA_EDGE_GATEWAY_CA_CERT", &cfg.Gateway.CACertPath)
	envDuration("ALICIA_EDGE_GATEWAY_HEARTBEAT", &cfg.Gateway.Heartbeat)
	envDuration("ALICIA_EDGE_GATEWAY_RECONNECT_INTERVAL", &cfg.Gateway.ReconnectInterval)
	envInt("ALICIA_EDGE_GATEWAY_RECONNECT_ATTEMPTS", &cfg.Gateway.ReconnectAttempts)
	envDuration("ALICIA_EDGE_GATEWAY_WRITE_TIMEOUT", &cfg.Gateway.WriteTimeout)
	envDuration("ALICIA_EDGE_GATEWAY_PONG_TIMEOUT", &cfg.Gateway.PongTimeout)
	envDuration("ALICIA_EDGE_MICROPHONE_WATCHDOG", &cfg.Gateway.MicrophoneWatchdog)

	// Device
	envString("ALICIA_EDGE_MAC", &cfg.Device.MAC)
	envString("ALICIA_EDGE_SERIAL", &cfg.Device.Serial)
	envString("ALICIA_EDGE_BIZ_TYPE", &cfg.Device.BizType)
	envString("ALICIA_EDGE_BIZ_GROUP", &cfg.Device.BizGroup)
	envString("ALICIA_EDGE_BIZ_SECRET", &cfg.Device.BizSecret)
	envString("ALICIA_EDGE_CREDENTIALS_PATH", &cfg.Device.CredentialsPath)
	envInt("ALICIA_EDGE_VOLUME", &cfg.Device.Volume)
	envBool("ALICIA_EDGE_MUTED", &cfg.Device.Muted)

	// Prompts
	envString("ALICIA_EDGE_PROMPT_WAKEUP", &cfg.Prompts.Wakeup)
	envString("ALICIA_EDGE_PROMPT_RECORD", &cfg.Prompts.Record)
	envString("ALICIA_EDGE_PROMPT_NETWORK_LOST", &cfg.Prompts.NetworkLost)
	envString("ALICIA_EDGE_PROMPT_SERVER_LOST", &cfg.Prompts.ServerLost)
	envString("ALICIA_EDGE_PROMPT_UNAUTHORIZED", &cfg.Prompts.Unauthorized)
	envString("ALICIA_EDGE_PROMPT_NOT_ACTIVATED", &cfg.Prompts.NotActivated)

	// Playback and the simulated player
	envDuration("ALICIA_EDGE_TTS_FRAME_TIMEOUT", &cfg.Playback.TTSFrameTimeout)
	envDuration("ALICIA_EDGE_RESUME_GRACE", &cfg.Playback.ResumeGrace)
	envDuration("ALICIA_EDGE_PLAYER_PROMPT_DURATION", &cfg.Player.PromptDuration)
	envDuration("ALICIA_EDGE_PLAYER_MUSIC_DURATION", &cfg.Player.MusicDuration)
	envDuration("ALICIA_EDGE_PLAYER_NEARLY_LEAD", &cfg.Player.NearlyLead)
	envInt("ALICIA_EDGE_PLAYER_TTS_BYTE_RATE", &cfg.Player.TTSByteRate)

	// Observability
	envString("ALICIA_EDGE_LOG_LEVEL", &cfg.Observability.LogLevel)
	envString("ALICIA_EDGE_ENVIRONMENT", &cfg.Observability.Environment)
	envString("ALICIA_EDGE_OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	envBool("ALICIA_EDGE_STDOUT_TRACES", &cfg.Observability.StdoutTraces)
	envString("ALICIA_EDGE_DEBUG_ADDR", &cfg.Observability.DebugAddr)
	envString("ALICIA_EDGE_DEBUG_TOKEN", &cfg.Observability.DebugToken)

	if dir := filepath.Dir(cfg.Device.CredentialsPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Session returns the orchestrator configuration.
func (c *Config) Session() orchestrator.Config {
	return orchestrator.Config{
		GatewayURL: c.Gateway.URL,
		Heartbeat:  c.Gateway.Heartbeat.Std(),
		Reconnect: retry.ReconnectPolicy{
			Interval:    c.Gateway.ReconnectInterval.Std(),
			MaxAttempts: c.Gateway.ReconnectAttempts,
		},
		MicrophoneWatchdog: c.Gateway.MicrophoneWatchdog.Std(),
	}
}

// Transport returns the gateway client configuration.
func (c *Config) Transport() *gateway.Config {
	t := gateway.DefaultConfig()
	t.WriteTimeout = c.Gateway.WriteTimeout.Std()
	t.PongTimeout = c.Gateway.PongTimeout.Std()
	return t
}

// Arbiter returns the playback arbiter configuration.
func (c *Config) Arbiter() playback.Config {
	return playback.Config{
		TTSFrameTimeout: c.Playback.TTSFrameTimeout.Std(),
		ResumeGrace:     c.Playback.ResumeGrace.Std(),
	}
}

// PlayerEngine returns the simulated player timing.
func (c *Config) PlayerEngine() player.Config {
	return player.Config{
		PromptDuration: c.Player.PromptDuration.Std(),
		MusicDuration:  c.Player.MusicDuration.Std(),
		NearlyLead:     c.Player.NearlyLead.Std(),
		TTSByteRate:    c.Player.TTSByteRate,
	}
}

// Identity returns the static device identity.
func (c *Config) Identity() vendor.Identity {
	return vendor.Identity{
		MAC:        c.Device.MAC,
		Serial:     c.Device.Serial,
		BizType:    c.Device.BizType,
		BizGroup:   c.Device.BizGroup,
		BizSecret:  c.Device.BizSecret,
		CACertPath: c.Gateway.CACertPath,
		Volume:     c.Device.Volume,
		Muted:      c.Device.Muted,
	}
}

// Assistant returns the assistant configuration with the configured prompts.
func (c *Config) Assistant() application.Config {
	cfg := application.DefaultConfig()
	cfg.Prompts = application.Prompts{
		Wakeup:       c.Prompts.Wakeup,
		Record:       c.Prompts.Record,
		NetworkLost:  c.Prompts.NetworkLost,
		ServerLost:   c.Prompts.ServerLost,
		Unauthorized: c.Prompts.Unauthorized,
		NotActivated: c.Prompts.NotActivated,
	}
	return cfg
}

// SlogLevel parses the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	return otel.ParseLevel(c.Observability.LogLevel)
}

// IsDebugServerEnabled reports whether the debug HTTP server should listen
func (c *Config) IsDebugServerEnabled() bool {
	return c.Observability.DebugAddr != ""
}

// Masked returns a copy safe to print, with secrets replaced.
func (c *Config) Masked() *Config {
	out := *c
	out.Device.BizSecret = mask(c.Device.BizSecret)
	out.Observability.DebugToken = mask(c.Observability.DebugToken)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.URL == "" {
		errs = append(errs, "gateway URL is required")
	} else if !isValidURL(c.Gateway.URL) {
		errs = append(errs, "gateway URL must be a valid URL")
	} else if u, _ := url.Parse(c.Gateway.URL); u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, "gateway URL must use the ws or wss scheme")
	}
	if c.Gateway.Heartbeat <= 0 {
		errs = append(errs, "gateway heartbeat must be positive")
	}
	if c.Gateway.ReconnectInterval <= 0 {
		errs = append(errs, "gateway reconnect interval must be positive")
	}
	if c.Gateway.ReconnectAttempts < 0 {
		errs = append(errs, "gateway reconnect attempts must not be negative")
	}
	if c.Gateway.WriteTimeout <= 0 {
		errs = append(errs, "gateway write timeout must be positive")
	}
	if c.Gateway.PongTimeout <= 0 {
		errs = append(errs, "gateway pong timeout must be positive")
	}
	if c.Gateway.MicrophoneWatchdog <= 0 {
		errs = append(errs, "microphone watchdog must be positive")
	}

	// Device validation
	if c.Device.MAC == "" {
		errs = append(errs, "device MAC is required")
	} else if _, err := domain.NormalizeMAC(c.Device.MAC); err != nil {
		errs = append(errs, fmt.Sprintf("device MAC %q is malformed", c.Device.MAC))
	}
	if c.Device.Volume < 0 || c.Device.Volume > 100 {
		errs = append(errs, "device volume must be between 0 and 100")
	}
	if c.Device.CredentialsPath == "" {
		errs = append(errs, "credentials path is required")
	}

	// Prompt validation
	prompts := map[string]string{
		"wakeup":        c.Prompts.Wakeup,
		"record":        c.Prompts.Record,
		"network_lost":  c.Prompts.NetworkLost,
		"server_lost":   c.Prompts.ServerLost,
		"unauthorized":  c.Prompts.Unauthorized,
		"not_activated": c.Prompts.NotActivated,
	}
	for _, name := range []string{"wakeup", "record", "network_lost", "server_lost", "unauthorized", "not_activated"} {
		if prompts[name] == "" {
			errs = append(errs, fmt.Sprintf("prompt %s is required", name))
		}
	}

	// Playback validation
	if c.Playback.TTSFrameTimeout <= 0 {
		errs = append(errs, "tts frame timeout must be positive")
	}
	if c.Playback.ResumeGrace < 0 {
		errs = append(errs, "resume grace must not be negative")
	}
	if c.Player.PromptDuration <= 0 || c.Player.MusicDuration <= 0 {
		errs = append(errs, "player durations must be positive")
	}
	if c.Player.NearlyLead < 0 {
		errs = append(errs, "player nearly lead must not be negative")
	}
	if c.Player.TTSByteRate < 1 {
		errs = append(errs, "player tts byte rate must be positive")
	}

	// Observability validation
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Observability.LogLevel)); err != nil {
		errs = append(errs, fmt.Sprintf("log level %q is not one of debug, info, warn, error", c.Observability.LogLevel))
	}
	if c.Observability.OTLPEndpoint != "" && !isValidURL(c.Observability.OTLPEndpoint) {
		errs = append(errs, "OTLP endpoint must be a valid URL")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("ALICIA_EDGE_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	configPath := filepath.Join(homeDir, ".config", "alicia-edge", "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return "config.json"
}
