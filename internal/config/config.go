package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hypervisorReturns/internal/model"
	"hypervisorReturns/internal/scheduler"
)

// ChainConfig is one chain's RPC endpoint and supported protocols.
type ChainConfig struct {
	RPC       string   `mapstructure:"rpc"`
	Protocols []string `mapstructure:"protocols"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PGDSN             string
	StateFile         string
	LogLevel          string
	Periods           []int
	Chains            map[string]ChainConfig
	UpstreamURL       string
	UpstreamTimeout   time.Duration
	UpstreamRPS       float64
	UpstreamRetries   int
	RPCRetries        int
	RPCBackoff        time.Duration
	RedisAddr         string
	CacheTTL          time.Duration
	NATSURL           string
	NATSSubjectPrefix string
	OtelEndpoint      string
	MetricsAddr       string
	Schedules         scheduler.Specs
	TaskTimeout       time.Duration
	WriteConcurrency  int
	WriteChunkSize    int
}

// Load merges config file, environment variables, and flags into Config.
// A .env file in the working directory, if any, seeds the environment.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RETURNS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("periods", "1,7,30")
	v.SetDefault("upstream-timeout", 30*time.Second)
	v.SetDefault("upstream-rps", 5.0)
	v.SetDefault("upstream-retries", 3)
	v.SetDefault("rpc-retries", 5)
	v.SetDefault("rpc-backoff", 500*time.Millisecond)
	v.SetDefault("cache-ttl", 5*time.Minute)
	v.SetDefault("nats-subject-prefix", "returns.written")
	v.SetDefault("metrics-addr", ":9100")
	specs := scheduler.DefaultSpecs()
	v.SetDefault("schedules.daily", specs.Daily)
	v.SetDefault("schedules.weekly", specs.Weekly)
	v.SetDefault("schedules.monthly", specs.Monthly)
	v.SetDefault("task-timeout", 30*time.Minute)
	v.SetDefault("write-concurrency", 4)
	v.SetDefault("write-chunk-size", 500)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	periods, err := getIntSlice(v, "periods")
	if err != nil {
		return Config{}, fmt.Errorf("periods: %w", err)
	}

	cfg := Config{
		PGDSN:             v.GetString("pg-dsn"),
		StateFile:         v.GetString("state-file"),
		LogLevel:          v.GetString("log-level"),
		Periods:           periods,
		Chains:            map[string]ChainConfig{},
		UpstreamURL:       v.GetString("upstream-url"),
		UpstreamTimeout:   v.GetDuration("upstream-timeout"),
		UpstreamRPS:       v.GetFloat64("upstream-rps"),
		UpstreamRetries:   v.GetInt("upstream-retries"),
		RPCRetries:        v.GetInt("rpc-retries"),
		RPCBackoff:        v.GetDuration("rpc-backoff"),
		RedisAddr:         v.GetString("redis-addr"),
		CacheTTL:          v.GetDuration("cache-ttl"),
		NATSURL:           v.GetString("nats-url"),
		NATSSubjectPrefix: v.GetString("nats-subject-prefix"),
		OtelEndpoint:      v.GetString("otel-endpoint"),
		MetricsAddr:       v.GetString("metrics-addr"),
		Schedules: scheduler.Specs{
			Daily:   v.GetString("schedules.daily"),
			Weekly:  v.GetString("schedules.weekly"),
			Monthly: v.GetString("schedules.monthly"),
		},
		TaskTimeout:      v.GetDuration("task-timeout"),
		WriteConcurrency: v.GetInt("write-concurrency"),
		WriteChunkSize:   v.GetInt("write-chunk-size"),
	}
	if err := v.UnmarshalKey("chains", &cfg.Chains); err != nil {
		return Config{}, fmt.Errorf("chains: %w", err)
	}

	return cfg, nil
}

// ChainProtocols expands the chain table into sorted (chain, protocol) pairs.
func ChainProtocols(cfg Config) []model.ChainProtocol {
	var out []model.ChainProtocol
	for chain, cc := range cfg.Chains {
		for _, protocol := range cleanStrings(cc.Protocols) {
			out = append(out, model.ChainProtocol{Chain: chain, Protocol: protocol})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chain != out[j].Chain {
			return out[i].Chain < out[j].Chain
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}

// RPCs returns the RPC URL of every configured chain.
func RPCs(cfg Config) map[string]string {
	out := make(map[string]string, len(cfg.Chains))
	for chain, cc := range cfg.Chains {
		if cc.RPC != "" {
			out[chain] = cc.RPC
		}
	}
	return out
}

func getIntSlice(v *viper.Viper, key string) ([]int, error) {
	if !v.IsSet(key) {
		return nil, nil
	}

	var items []string
	switch typed := v.Get(key).(type) {
	case []int:
		for _, n := range typed {
			items = append(items, strconv.Itoa(n))
		}
	default:
		items = getStringSlice(v, key)
	}

	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", item, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("%d: %w", n, model.ErrInvalidPeriod)
		}
		out = append(out, n)
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
