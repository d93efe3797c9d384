package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jmcvetta/randutil"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"mafia-server/internal/core"
)

const EnvPrefix = "MAFIA"

type Config struct {
	Addr      string          `mapstructure:"addr"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Phase     core.Timings    `mapstructure:"phase"`
}

type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	t := core.DefaultTimings()
	v.SetDefault("addr", "0.0.0.0:8080")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "mafia.db")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("scheduler.interval", time.Second)
	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("phase.town_naming", t.TownNaming)
	v.SetDefault("phase.town_voting", t.TownVoting)
	v.SetDefault("phase.role_reveal", t.RoleReveal)
	v.SetDefault("phase.host_role_reveal", t.HostRoleReveal)
	v.SetDefault("phase.night", t.Night)
	v.SetDefault("phase.day", t.Day)
	v.SetDefault("phase.voting", t.Voting)
}

// Flags are the command line switches. Their names match the config keys.
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("mafia-server", pflag.ContinueOnError)
	flags.String("config", "", "path to a config file (yaml, json or toml)")
	flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("addr", "0.0.0.0:8080", "api service address")
	flags.String("store.driver", "memory", "entity store: memory or sqlite")
	flags.String("store.dsn", "mafia.db", "sqlite database file")
	flags.String("log.level", "info", "log level")
	flags.Bool("log.pretty", false, "human readable console logs")
	return flags
}

// Load resolves the configuration from defaults, an optional config file,
// the dotenv file, MAFIA_ prefixed environment variables and args, in
// increasing order of precedence.
func Load(fsys afero.Fs, args []string) (*Config, *viper.Viper, error) {
	flags := Flags()
	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}

	envFile, _ := flags.GetString("env-file")
	if err := loadDotEnv(fsys, envFile); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetFs(fsys)
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "env-file" {
			return
		}
		// unchanged flags must not shadow env and file values
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	switch cfg.Store.Driver {
	case "memory", "sqlite":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.Auth.Secret == "" {
		secret, err := randutil.AlphaString(32)
		if err != nil {
			return nil, fmt.Errorf("generate auth secret: %w", err)
		}
		log.Warn().Msg("no auth.secret configured, tokens will not survive a restart")
		cfg.Auth.Secret = secret
	}
	return &cfg, nil
}

// loadDotEnv exports the variables of path that are not set yet. A missing
// file is fine.
func loadDotEnv(fsys afero.Fs, path string) error {
	if path == "" {
		return nil
	}
	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for k, val := range vars {
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, val)
		}
	}
	return nil
}

// Watch calls onChange with the new configuration whenever the config file
// is written. It does nothing without a config file.
func Watch(v *viper.Viper, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("config reload failed")
			return
		}
		log.Info().Str("file", e.Name).Msg("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
}
