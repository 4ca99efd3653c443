package config

import (
	"errors"
	"strings"
	"time"

	"pvyield/internal/yield"

	"github.com/spf13/viper"
)

type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	API    APIConfig    `mapstructure:"api"`
	Cache  CacheConfig  `mapstructure:"cache"`
	MQTT   MQTTConfig   `mapstructure:"mqtt"`
	Log    LogConfig    `mapstructure:"log"`
	Model  ModelConfig  `mapstructure:"model"`
}

type EngineConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Timeframe       string        `mapstructure:"timeframe"`
	Dataset         string        `mapstructure:"dataset"`
	Radius          int           `mapstructure:"radius"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	Concurrency     int           `mapstructure:"concurrency"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ModelConfig struct {
	Losses              float64             `mapstructure:"losses"`
	ArrayType           int                 `mapstructure:"array_type"`
	PerformanceRatio    float64             `mapstructure:"performance_ratio"`
	DegradationRate     float64             `mapstructure:"degradation_rate"`
	LifetimeYears       int                 `mapstructure:"lifetime_years"`
	ModuleClasses       []yield.ModuleClass `mapstructure:"module_classes"`
	StructureArrayTypes map[string]int      `mapstructure:"structure_array_types"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pvyield")
	}

	v.SetEnvPrefix("PVYIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("engine.base_url", "https://developer.nrel.gov/api/pvwatts/v8.json")
	v.SetDefault("engine.api_key", "")
	v.SetDefault("engine.timeout", "60s")
	v.SetDefault("engine.timeframe", "monthly")
	v.SetDefault("engine.dataset", "")
	v.SetDefault("engine.radius", 0)
	v.SetDefault("engine.breaker_failures", 5)
	v.SetDefault("engine.breaker_cooldown", "30s")
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("api.port", 8045)
	v.SetDefault("api.enabled", true)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "./pvyield.db")
	v.SetDefault("cache.ttl", "720h")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "pvyield")
	v.SetDefault("mqtt.client_id", "pvyield")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("model.losses", 14.08)
	v.SetDefault("model.array_type", yield.ArrayTypeFixedRoofMount)
	v.SetDefault("model.performance_ratio", 0.8)
	v.SetDefault("model.degradation_rate", 0.005)
	v.SetDefault("model.lifetime_years", 25)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Options turns the model section into calculator options. Tables left out
// of the config file keep their built-in defaults.
func (c *Config) Options() yield.Options {
	opts := yield.DefaultOptions()
	if len(c.Model.ModuleClasses) > 0 {
		opts.ModuleClasses = c.Model.ModuleClasses
	}
	for structure, code := range c.Model.StructureArrayTypes {
		opts.StructureArrayTypes[structure] = code
	}
	opts.Degradation = yield.Degradation{
		Rate:  c.Model.DegradationRate,
		Years: c.Model.LifetimeYears,
	}
	opts.Timeframe = c.Engine.Timeframe
	opts.Dataset = c.Engine.Dataset
	if c.Engine.Radius > 0 {
		radius := c.Engine.Radius
		opts.Radius = &radius
	}
	return opts
}

// LossParameters are the defaults applied to requests that omit them.
func (c *Config) LossParameters() yield.LossParameters {
	return yield.LossParameters{
		SystemLossesPercent: c.Model.Losses,
		ArrayTypeCode:       c.Model.ArrayType,
		PerformanceRatio:    c.Model.PerformanceRatio,
	}
}
