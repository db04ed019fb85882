package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"damatronics/agent"
	"damatronics/game"
	"damatronics/gamemaster"
	"damatronics/meta"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const envPrefix = "DAMAS"

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Tick     time.Duration `mapstructure:"tick"`
	MaxTicks int           `mapstructure:"max_ticks"`
	Realtime bool          `mapstructure:"realtime"`
	Parallel bool          `mapstructure:"parallel"`
	Noise    float64       `mapstructure:"noise"`
	Seed     uint64        `mapstructure:"seed"`

	Capture             string `mapstructure:"capture"`
	PromotionEndsCombo  bool   `mapstructure:"promotion_ends_combo"`
	ArrivalTimeoutTicks int    `mapstructure:"arrival_timeout_ticks"`
	MaxResends          int    `mapstructure:"max_resends"`
	Disposal            string `mapstructure:"disposal"`

	HTTPAddr  string `mapstructure:"http_addr"`
	Games     int    `mapstructure:"games"`
	OutputDir string `mapstructure:"output_dir"`

	Tuning agent.Tuning `mapstructure:"tuning"`
}

func setDefaults(v *viper.Viper) error {
	v.SetDefault("log_level", "info")
	v.SetDefault("tick", meta.TICK)
	v.SetDefault("max_ticks", meta.MAX_TICKS)
	v.SetDefault("realtime", false)
	v.SetDefault("parallel", false)
	v.SetDefault("noise", 0.0)
	v.SetDefault("seed", 1)
	v.SetDefault("capture", game.GlobalCapture.String())
	v.SetDefault("promotion_ends_combo", true)
	v.SetDefault("arrival_timeout_ticks", meta.ARRIVAL_TIMEOUT_TICKS)
	v.SetDefault("max_resends", meta.MAX_RESENDS)
	v.SetDefault("disposal", "graveyard")
	v.SetDefault("http_addr", meta.HTTP_ADDR)
	v.SetDefault("games", meta.NUM_GAMES)
	v.SetDefault("output_dir", "experiments")

	// every tuning key needs a default for environment overrides to be seen
	tuning := map[string]any{}
	if err := mapstructure.Decode(agent.DefaultTuning(), &tuning); err != nil {
		return err
	}
	for k, val := range tuning {
		v.SetDefault("tuning."+k, val)
	}
	return nil
}

// Setup loads defaults, then the config file at cfgPath if given, then
// DAMAS_* environment variables. Nested keys use underscores, e.g.
// DAMAS_TUNING_KP_ROT.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.MasterConfig(); err != nil {
		return err
	}
	if c.Games < 0 || c.MaxResends < 0 || c.ArrivalTimeoutTicks < 0 {
		return fmt.Errorf("games, max_resends and arrival_timeout_ticks must not be negative")
	}
	if c.Noise < 0 {
		return fmt.Errorf("noise must not be negative, got %f", c.Noise)
	}
	if err := c.Tuning.Validate(c.Tick); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	return nil
}

func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// MasterConfig builds the game master configuration.
func (c *Config) MasterConfig() (gamemaster.Config, error) {
	config := gamemaster.DefaultConfig()
	capture, ok := game.ParseCapturePolicy(c.Capture)
	if !ok {
		return config, fmt.Errorf("unknown capture policy %q", c.Capture)
	}
	rules := game.NewStandardRules()
	rules.Capture = capture
	rules.PromotionEndsCombo = c.PromotionEndsCombo
	config.Rules = rules

	switch c.Disposal {
	case "graveyard":
		config.Disposal = gamemaster.Graveyard
	case "remove":
		config.Disposal = gamemaster.RemoveFromScene
	default:
		return config, fmt.Errorf("unknown disposal %q", c.Disposal)
	}
	config.ArrivalTimeoutTicks = c.ArrivalTimeoutTicks
	config.MaxResends = c.MaxResends
	return config, nil
}
