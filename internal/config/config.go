package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fxcast/internal/logging"
	"fxcast/internal/market"
	"fxcast/internal/model"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Provider ProviderConfig `mapstructure:"provider"`
	Market   MarketConfig   `mapstructure:"market"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Training TrainingConfig `mapstructure:"training"`
	Registry RegistryConfig `mapstructure:"registry"`
	Run      RunConfig      `mapstructure:"run"`
	Serve    ServeConfig    `mapstructure:"serve"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ProviderConfig covers the daily-rates HTTP API.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RequestsPerSec int           `mapstructure:"requests_per_sec"`
	MaxRetries     uint64        `mapstructure:"max_retries"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MarketConfig identifies the currency pair and its trading calendar.
type MarketConfig struct {
	Base          string `mapstructure:"base"`
	Target        string `mapstructure:"target"`
	CutoffHourUTC int    `mapstructure:"cutoff_hour_utc"`
	HistoryStart  string `mapstructure:"history_start"`
}

// CacheConfig locates the local rate cache.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// TrainingConfig governs windowing and hyperparameter search.
type TrainingConfig struct {
	Lookback      int    `mapstructure:"lookback"`
	StepSize      int    `mapstructure:"step_size"`
	PctChangeDays []int  `mapstructure:"pct_change_days"`
	Folds         int    `mapstructure:"folds"`
	Trials        int    `mapstructure:"trials"`
	Model         string `mapstructure:"model"`
	Seed          int64  `mapstructure:"seed"`
	ArtifactPath  string `mapstructure:"artifact_path"`
}

// RegistryConfig selects the model registry backend. With a DSN the registry
// lives in PostgreSQL, otherwise under Dir.
type RegistryConfig struct {
	DSN       string `mapstructure:"dsn"`
	Dir       string `mapstructure:"dir"`
	ModelName string `mapstructure:"model_name"`
	Status    string `mapstructure:"status"`
}

// RunConfig schedules the daily refresh-and-forecast job.
type RunConfig struct {
	Schedule     string `mapstructure:"schedule"`
	RunOnStartup bool   `mapstructure:"run_on_startup"`
}

// ServeConfig configures the prediction HTTP server.
type ServeConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FXCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fxcast")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("provider.base_url", "https://api.polygon.io")
	v.SetDefault("provider.request_timeout", "10s")
	v.SetDefault("provider.requests_per_sec", 5)
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.user_agent", "fxcast/1.0")

	v.SetDefault("market.base", "GBP")
	v.SetDefault("market.target", "GHS")
	v.SetDefault("market.cutoff_hour_utc", market.DefaultCutoffHourUTC)
	v.SetDefault("market.history_start", "2017-01-01")

	v.SetDefault("cache.dir", "data")

	v.SetDefault("training.lookback", 30)
	v.SetDefault("training.step_size", 1)
	v.SetDefault("training.pct_change_days", []int{2, 7, 14, 30})
	v.SetDefault("training.folds", 5)
	v.SetDefault("training.trials", 10)
	v.SetDefault("training.model", "lasso")
	v.SetDefault("training.seed", int64(42))
	v.SetDefault("training.artifact_path", "models/latest.json")

	v.SetDefault("registry.dir", "models/registry")
	v.SetDefault("registry.status", "production")

	v.SetDefault("run.schedule", "5 22 * * *")
	v.SetDefault("run.run_on_startup", true)

	v.SetDefault("serve.addr", ":8000")
	v.SetDefault("serve.shutdown_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if _, err := c.Pair(); err != nil {
		return err
	}
	if c.Market.CutoffHourUTC < 0 || c.Market.CutoffHourUTC > 23 {
		return fmt.Errorf("market.cutoff_hour_utc must be within [0,23]")
	}
	if _, err := c.HistoryStart(); err != nil {
		return err
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Training.Lookback <= 0 {
		return fmt.Errorf("training.lookback must be greater than zero")
	}
	if c.Training.StepSize <= 0 {
		return fmt.Errorf("training.step_size must be greater than zero")
	}
	for _, days := range c.Training.PctChangeDays {
		if days < 1 || days > c.Training.Lookback {
			return fmt.Errorf("training.pct_change_days entries must be within [1,%d]", c.Training.Lookback)
		}
	}
	if c.Training.Folds < 2 {
		return fmt.Errorf("training.folds must be at least 2")
	}
	if c.Training.Trials <= 0 {
		return fmt.Errorf("training.trials must be greater than zero")
	}
	if _, err := c.ModelKind(); err != nil {
		return err
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// Pair resolves the configured currency pair.
func (c *Config) Pair() (market.Pair, error) {
	return market.NewPair(c.Market.Base, c.Market.Target)
}

// HistoryStart parses the configured history start date.
func (c *Config) HistoryStart() (time.Time, error) {
	start, err := time.Parse("2006-01-02", c.Market.HistoryStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("market.history_start must be YYYY-MM-DD: %w", err)
	}
	return start.UTC(), nil
}

// ModelKind resolves the configured model family.
func (c *Config) ModelKind() (model.Kind, error) {
	return model.ParseKind(c.Training.Model)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
