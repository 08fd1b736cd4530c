package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/voxnote/internal/kv"
	"github.com/starford/voxnote/internal/responder"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Storage   StorageConfig     `yaml:"storage"`
	Backup    BackupConfig      `yaml:"backup"`
	Auth      AuthConfig        `yaml:"auth"`
	Responder ResponderConfig   `yaml:"responder"`
	Inbox     InboxConfig       `yaml:"inbox"`
	RateLimit RateLimitConfig   `yaml:"ratelimit"`
	Reminders RemindersConfig   `yaml:"reminders"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Backup.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Responder.Validate(); err != nil {
		return err
	}
	if err := c.Inbox.Validate(); err != nil {
		return err
	}
	return c.RateLimit.Validate()
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

// StorageConfig selects the key-value backend.
//
// Path is the database file for sqlite and the data directory for file.
// The memory driver ignores it and loses everything on exit.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverFile, DriverMemory)),
		validation.Field(&c.Path, validation.Required.When(c.Driver != DriverMemory)),
	)
}

// BackupConfig holds the optional S3 backup target. Writes are only
// mirrored while the user's backupEnabled setting is on.
type BackupConfig struct {
	Enabled bool        `yaml:"enabled"`
	S3      kv.S3Config `yaml:"s3"`
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	s3 := &c.S3
	return validation.ValidateStruct(s3,
		validation.Field(&s3.Bucket, validation.Required),
		validation.Field(&s3.Region, validation.Required),
	)
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
	// Normalise empty mode to "disabled".
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ResponderConfig tunes the simulated AI backend. A zero seed picks
// recording templates at random.
type ResponderConfig struct {
	AudioDelay   time.Duration `yaml:"audio_delay"`
	UploadDelay  time.Duration `yaml:"upload_delay"`
	ChatDelay    time.Duration `yaml:"chat_delay"`
	SuggestDelay time.Duration `yaml:"suggest_delay"`
	Seed         uint64        `yaml:"seed"`
}

// Validate validates the responder configuration.
func (c *ResponderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AudioDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.UploadDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.ChatDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.SuggestDelay, validation.Min(time.Duration(0))),
	)
}

// Delays converts the configured latencies.
func (c *ResponderConfig) Delays() responder.Delays {
	return responder.Delays{
		Audio:   c.AudioDelay,
		Upload:  c.UploadDelay,
		Chat:    c.ChatDelay,
		Suggest: c.SuggestDelay,
	}
}

// InboxConfig holds the audio drop directory and the directory uploads are
// saved to. They must differ, or every upload would be imported twice.
type InboxConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	MediaDir string `yaml:"media_dir"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required.When(c.Enabled)),
		validation.Field(&c.MediaDir, validation.Required),
	); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	inbox, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	mediaDir, err := filepath.Abs(c.MediaDir)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	if inbox == mediaDir {
		return fmt.Errorf("inbox: path and media_dir must differ (%s)", inbox)
	}
	return nil
}

// RateLimitConfig limits the AI endpoints. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RPS, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Required.When(c.RPS > 0), validation.Min(0)),
	)
}

// RemindersConfig controls the reminder scheduler. Delivery additionally
// requires the user's notifications setting.
type RemindersConfig struct {
	Enabled      bool `yaml:"enabled"`
	WeeklyReview bool `yaml:"weekly_review"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	d := responder.DefaultDelays()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "./voxnote.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Responder: ResponderConfig{
			AudioDelay:   d.Audio,
			UploadDelay:  d.Upload,
			ChatDelay:    d.Chat,
			SuggestDelay: d.Suggest,
		},
		Inbox: InboxConfig{
			Path:     "./inbox",
			MediaDir: "./media",
		},
		RateLimit: RateLimitConfig{
			RPS:   2,
			Burst: 5,
		},
		Reminders: RemindersConfig{
			Enabled:      true,
			WeeklyReview: true,
		},
	}
}
