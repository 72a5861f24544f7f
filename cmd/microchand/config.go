package main

import (
	"os"
	"strings"
	"time"

	"github.com/iov-one/microchan/api"
	"github.com/iov-one/microchan/errors"
	"github.com/spf13/viper"
	tmflags "github.com/tendermint/tendermint/libs/cli/flags"
	"github.com/tendermint/tendermint/libs/log"
)

const envPrefix = "MICROCHAN"

// Sink names accepted by relay.sink.
const (
	sinkNone  = "none"
	sinkLog   = "log"
	sinkRedis = "redis"
	sinkAMQP  = "amqp"
)

type HTTPConfig struct {
	Bind  string `mapstructure:"bind"`
	Debug bool   `mapstructure:"debug"`
}

type RelayConfig struct {
	Sink string `mapstructure:"sink"`
	// Addr is the redis address or the amqp url.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Topic is the redis stream or the amqp exchange.
	Topic      string        `mapstructure:"topic"`
	MaxLen     int64         `mapstructure:"max_len"`
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	StartAfter uint64        `mapstructure:"start_after"`
}

// Config of the daemon. Values come from the configuration file and are
// overridden by MICROCHAN_ prefixed environment variables, for example
// MICROCHAN_HTTP_BIND.
type Config struct {
	Home     string `mapstructure:"home"`
	LogLevel string `mapstructure:"log_level"`
	Genesis  string `mapstructure:"genesis"`
	// Node is the snowflake node number used for dispute IDs. It must be
	// unique among nodes sharing the same store.
	Node           int64            `mapstructure:"node"`
	CommitInterval time.Duration    `mapstructure:"commit_interval"`
	HTTP           HTTPConfig       `mapstructure:"http"`
	Denomination   api.Denomination `mapstructure:"denomination"`
	Relay          RelayConfig      `mapstructure:"relay"`
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("home", home+"/.microchan")
	v.SetDefault("log_level", "info")
	v.SetDefault("genesis", "genesis.json")
	v.SetDefault("node", 0)
	v.SetDefault("commit_interval", 5*time.Second)
	v.SetDefault("http.bind", "localhost:8480")
	v.SetDefault("http.debug", false)
	v.SetDefault("denomination.symbol", "IOV")
	v.SetDefault("denomination.decimals", 0)
	v.SetDefault("relay.sink", sinkNone)
	v.SetDefault("relay.addr", "")
	v.SetDefault("relay.password", "")
	v.SetDefault("relay.db", 0)
	v.SetDefault("relay.topic", "paychan")
	v.SetDefault("relay.max_len", 0)
	v.SetDefault("relay.interval", time.Second)
	v.SetDefault("relay.batch_size", 100)
	v.SetDefault("relay.start_after", 0)
}

// loadConfig reads the configuration file at path, if given, and the
// environment.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(errors.ErrInput, "read config %s: %s", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "decode config: %s", err)
	}
	return &c, c.Validate()
}

func (c *Config) Validate() error {
	var errs error
	if c.Home == "" {
		errs = errors.Append(errs, errors.Field("home", errors.ErrEmpty, "required"))
	}
	if c.Node < 0 || c.Node > 1023 {
		errs = errors.Append(errs, errors.Field("node", errors.ErrInput, "must be between 0 and 1023"))
	}
	if c.CommitInterval <= 0 {
		errs = errors.Append(errs, errors.Field("commit_interval", errors.ErrInput, "must be positive"))
	}
	if c.Denomination.Decimals < 0 || c.Denomination.Decimals > 18 {
		errs = errors.Append(errs, errors.Field("denomination.decimals", errors.ErrInput, "must be between 0 and 18"))
	}
	if c.Relay.Interval <= 0 {
		errs = errors.Append(errs, errors.Field("relay.interval", errors.ErrInput, "must be positive"))
	}
	if c.Relay.BatchSize <= 0 {
		errs = errors.Append(errs, errors.Field("relay.batch_size", errors.ErrInput, "must be positive"))
	}
	switch c.Relay.Sink {
	case sinkNone, sinkLog:
	case sinkRedis, sinkAMQP:
		if c.Relay.Addr == "" {
			errs = errors.Append(errs, errors.Field("relay.addr", errors.ErrEmpty, "required by %s sink", c.Relay.Sink))
		}
		if c.Relay.Topic == "" {
			errs = errors.Append(errs, errors.Field("relay.topic", errors.ErrEmpty, "required by %s sink", c.Relay.Sink))
		}
	default:
		errs = errors.Append(errs, errors.Field("relay.sink", errors.ErrInput, "unknown sink %q", c.Relay.Sink))
	}
	return errs
}

// newLogger returns a logger writing to stdout, filtered by level. level
// is a list of module:level pairs, as in "main:info,paychan:debug,*:error",
// or a single level applied to every module.
func newLogger(level string) (log.Logger, error) {
	logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	filtered, err := tmflags.ParseLogLevel(level, logger, "info")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "log level: %s", err)
	}
	return filtered.With("module", "main"), nil
}
