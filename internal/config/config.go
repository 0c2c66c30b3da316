package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "THUMBNAILER"

// Config holds the main configuration for the application.
type Config struct {
	Directory      string        `mapstructure:"directory"` // Directory whose images are thumbnailed
	QualityPercent float64       `mapstructure:"quality"`   // JPEG quality as given by the user, 1..100
	Quality        float64       `mapstructure:"-"`         // JPEG quality as a fraction in (0, 1]
	MaxWidth       int           `mapstructure:"width"`     // Maximum thumbnail width in pixels
	Workers        int           `mapstructure:"workers"`   // Number of files processed in parallel
	Watch          bool          `mapstructure:"watch"`     // Keep running and process changed files
	Debounce       time.Duration `mapstructure:"debounce"`  // Quiet period before a changed file is processed
	Verbose        bool          `mapstructure:"verbose"`   // Log skipped files too
	Retry          Retry         `mapstructure:"retry"`
}

// Retry defines retry policy configuration for filesystem writes.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of attempts, at least one
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		QualityPercent: 75,
		Quality:        0.75,
		MaxWidth:       400,
		Workers:        runtime.NumCPU(),
		Debounce:       500 * time.Millisecond,
		Retry: Retry{
			Attempts: 1,
			Delay:    100 * time.Millisecond,
			Backoff:  2,
		},
	}
}

// RegisterFlags adds the command-line flags understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.StringP("config", "c", "", "Path to a YAML config file")
	fs.Float64P("quality", "q", d.QualityPercent, "JPEG quality in percent (1-100)")
	fs.IntP("width", "w", d.MaxWidth, "Maximum thumbnail width in pixels")
	fs.IntP("workers", "j", d.Workers, "Number of files processed in parallel")
	fs.Bool("watch", d.Watch, "Keep watching the directory after the first pass")
	fs.Duration("debounce", d.Debounce, "Quiet period before a changed file is processed in watch mode")
	fs.BoolP("verbose", "v", d.Verbose, "Log skipped files")
	fs.Int("retry-attempts", d.Retry.Attempts, "Attempts for each filesystem write")
	fs.Duration("retry-delay", d.Retry.Delay, "Initial delay between write attempts")
	fs.Float64("retry-backoff", d.Retry.Backoff, "Backoff multiplier between write attempts")
}

// flagKeys maps flag names to configuration keys where they differ.
var flagKeys = map[string]string{
	"retry-attempts": "retry.attempts",
	"retry-delay":    "retry.delay",
	"retry-backoff":  "retry.backoff",
}

// BindFlags binds the flags registered by RegisterFlags to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error

	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := f.Name
		if k, ok := flagKeys[key]; ok {
			key = k
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("failed to bind flag %s: %w", f.Name, bindErr)
		}
	})

	return err
}

// setDefaults registers every key with v so that environment variables are
// picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("directory", d.Directory)
	v.SetDefault("quality", d.QualityPercent)
	v.SetDefault("width", d.MaxWidth)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.delay", d.Retry.Delay)
	v.SetDefault("retry.backoff", d.Retry.Backoff)
}

// Load builds the configuration from defaults, an optional config file,
// THUMBNAILER_* environment variables and any flags bound to v, in
// increasing order of precedence. The result is validated.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Quality = cfg.QualityPercent / 100

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks ranges of every field. It is called once at startup; the
// rest of the program trusts the values.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.New("directory is required")
	}
	if c.Quality <= 0 || c.Quality > 1 {
		return fmt.Errorf("invalid quality %v (use a percentage in (0, 100])", c.QualityPercent)
	}
	if c.MaxWidth <= 0 {
		return fmt.Errorf("invalid width %d (must be positive)", c.MaxWidth)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("invalid workers %d (must be positive)", c.Workers)
	}
	if c.Watch && c.Debounce <= 0 {
		return fmt.Errorf("invalid debounce %v (must be positive)", c.Debounce)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("invalid retry attempts %d (must be at least 1)", c.Retry.Attempts)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("invalid retry delay %v", c.Retry.Delay)
	}
	if c.Retry.Backoff < 1 {
		return fmt.Errorf("invalid retry backoff %v (must be at least 1)", c.Retry.Backoff)
	}

	return nil
}
