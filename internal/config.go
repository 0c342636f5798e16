package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/atelier/internal/assistant"
	"github.com/starford/atelier/internal/cache"
	"github.com/starford/atelier/internal/fetcher"
	"github.com/starford/atelier/internal/pdftext"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage backends.
const (
	StorageFS  = "fs"
	StorageGCS = "gcs"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Storage   StorageConfig     `yaml:"storage"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	LLM       LLMConfig         `yaml:"llm"`
	Drive     DriveConfig       `yaml:"drive"`
	Assistant AssistantConfig   `yaml:"assistant"`
	Extractor ExtractorConfig   `yaml:"extractor"`
	Cache     CacheConfig       `yaml:"cache"`
	Watch     WatchConfig       `yaml:"watch"`
	Events    EventsConfig      `yaml:"events"`
	Auth      AuthConfig        `yaml:"auth"`
	MCP       MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"app", &c.App},
		{"storage", &c.Storage},
		{"sqlite", &c.SQLite},
		{"llm", &c.LLM},
		{"drive", &c.Drive},
		{"assistant", &c.Assistant},
		{"extractor", &c.Extractor},
		{"cache", &c.Cache},
		{"auth", &c.Auth},
		{"mcp", &c.MCP},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where uploaded files live. Dir is used by the fs
// backend, Bucket (and optionally CredentialsFile) by gcs.
type StorageConfig struct {
	Backend         string `yaml:"backend"`
	Dir             string `yaml:"dir"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(StorageFS, StorageGCS)),
		validation.Field(&c.Dir, validation.When(c.Backend == StorageFS, validation.Required)),
		validation.Field(&c.Bucket, validation.When(c.Backend == StorageGCS, validation.Required)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// DriveConfig holds the Google OAuth client. Drive is disabled when
// ClientID is empty.
type DriveConfig struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	RedirectURL  string        `yaml:"redirect_url"`
	TokenURL     string        `yaml:"token_url"`
	Endpoint     string        `yaml:"endpoint"`
	MaxBytes     int64         `yaml:"max_bytes"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Enabled reports whether a Drive client is configured.
func (c *DriveConfig) Enabled() bool {
	return c.ClientID != ""
}

// Validate validates the Drive configuration.
func (c *DriveConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.RedirectURL, validation.Required),
		validation.Field(&c.MaxBytes, validation.Min(int64(0))),
	)
}

// AssistantConfig bounds chat and summary context.
type AssistantConfig struct {
	MaxSources       int `yaml:"max_sources"`
	MaxDocChars      int `yaml:"max_doc_chars"`
	MaxNoteChars     int `yaml:"max_note_chars"`
	MaxSummaryChars  int `yaml:"max_summary_chars"`
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

// Validate validates the assistant limits.
func (c *AssistantConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSources, validation.Min(0)),
		validation.Field(&c.MaxDocChars, validation.Min(0)),
		validation.Field(&c.MaxNoteChars, validation.Min(0)),
		validation.Field(&c.MaxSummaryChars, validation.Min(0)),
		validation.Field(&c.FetchConcurrency, validation.Min(0), validation.Max(64)),
	)
}

// Limits converts the section to assistant limits.
func (c *AssistantConfig) Limits() assistant.Limits {
	return assistant.Limits{
		MaxSources:       c.MaxSources,
		MaxDocChars:      c.MaxDocChars,
		MaxNoteChars:     c.MaxNoteChars,
		MaxSummaryChars:  c.MaxSummaryChars,
		FetchConcurrency: c.FetchConcurrency,
	}
}

// ExtractorConfig picks the PDF text strategy and the ceiling for
// internally stored files.
type ExtractorConfig struct {
	Strategy         string `yaml:"strategy"`
	MaxInternalBytes int64  `yaml:"max_internal_bytes"`
}

// Validate validates the extractor configuration.
func (c *ExtractorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Strategy, validation.In(pdftext.StrategyAuto, pdftext.StrategyHeuristic, pdftext.StrategyParser)),
		validation.Field(&c.MaxInternalBytes, validation.Min(int64(0))),
	)
}

// CacheConfig configures the summary cache.
type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	Prefix    string        `yaml:"prefix"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(cache.BackendNone, cache.BackendMemory, cache.BackendRedis)),
		validation.Field(&c.RedisAddr, validation.When(c.Backend == cache.BackendRedis, validation.Required)),
		validation.Field(&c.RedisDB, validation.Min(0)),
	)
}

func (c *CacheConfig) options() cache.Config {
	return cache.Config{
		Backend:   c.Backend,
		TTL:       c.TTL,
		RedisAddr: c.RedisAddr,
		RedisDB:   c.RedisDB,
		Prefix:    c.Prefix,
	}
}

// WatchConfig controls reconciliation of the fs blob directory.
type WatchConfig struct {
	Enabled bool          `yaml:"enabled"`
	Settle  time.Duration `yaml:"settle"`
}

// EventsConfig configures the SSE broker.
type EventsConfig struct {
	Throttle time.Duration `yaml:"throttle"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// MCPConfig configures the stdio MCP server. Owner scopes Drive access for
// tool calls.
type MCPConfig struct {
	Owner string `yaml:"owner"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	if c.Owner == "" {
		return errors.New("owner is required")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	limits := assistant.DefaultLimits()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Backend: StorageFS,
			Dir:     "./data/sources",
		},
		SQLite: SQLiteConfig{
			Path: "./data/atelier.db",
		},
		LLM: LLMConfig{
			BaseURL: "https://ai.gateway.lovable.dev/v1",
			Model:   "google/gemini-2.5-flash",
			Timeout: 60 * time.Second,
		},
		Drive: DriveConfig{
			MaxBytes: 10 << 20,
			Timeout:  30 * time.Second,
		},
		Assistant: AssistantConfig{
			MaxSources:       limits.MaxSources,
			MaxDocChars:      limits.MaxDocChars,
			MaxNoteChars:     limits.MaxNoteChars,
			MaxSummaryChars:  limits.MaxSummaryChars,
			FetchConcurrency: limits.FetchConcurrency,
		},
		Extractor: ExtractorConfig{
			Strategy:         pdftext.StrategyAuto,
			MaxInternalBytes: fetcher.DefaultMaxInternalBytes,
		},
		Cache: CacheConfig{
			Backend: cache.BackendMemory,
			TTL:     24 * time.Hour,
		},
		Watch: WatchConfig{
			Enabled: true,
			Settle:  300 * time.Millisecond,
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		MCP: MCPConfig{
			Owner: "local",
		},
	}
}
