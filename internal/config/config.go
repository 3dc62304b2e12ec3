package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Domain    DomainConfig    `mapstructure:"domain"`
	Fees      FeeConfig       `mapstructure:"fees"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
	AdminKey      string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ChainConfig struct {
	RPCURL string `mapstructure:"rpc_url"`
	// Operator key used to submit settle transactions when running
	// against a live chain.
	PrivateKey string `mapstructure:"private_key"`
	ChainID    int64  `mapstructure:"chain_id"`
	TimeoutMs  int    `mapstructure:"timeout_ms"`
	Retries    int    `mapstructure:"retries"`
}

// DomainConfig pins the EIP-712 domain. Signatures produced against a
// different name/version/contract will never verify here.
type DomainConfig struct {
	Name              string `mapstructure:"name"`
	Version           string `mapstructure:"version"`
	VerifyingContract string `mapstructure:"verifying_contract"`
}

type FeeConfig struct {
	RateBps   int64  `mapstructure:"rate_bps"`
	Collector string `mapstructure:"collector"`
}

type OracleConfig struct {
	// Static unit prices in USD per whole token, keyed by token address.
	// Used when no feed is configured for the token.
	StaticPrices map[string]string `mapstructure:"static_prices"`
	// On-chain price feed contract per token address.
	Feeds             map[string]string `mapstructure:"feeds"`
	CacheSeconds      int               `mapstructure:"cache_seconds"`
	StaleAfterSeconds int               `mapstructure:"stale_after_seconds"`
}

// RegistryConfig seeds the allow/ban registries at startup. Everything
// here is mutable at runtime through the admin surface.
type RegistryConfig struct {
	Collections    []string `mapstructure:"collections"`
	PaymentTokens  []string `mapstructure:"payment_tokens"`
	BannedAccounts []string `mapstructure:"banned_accounts"`
	// AllowNative adds the native-asset sentinel to the payment allowlist.
	AllowNative bool `mapstructure:"allow_native"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. MINTGATE_CHAIN_RPC_URL
	viper.SetEnvPrefix("mintgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("chain.timeout_ms", 5000)
	viper.SetDefault("chain.retries", 1)
	viper.SetDefault("domain.name", "MintGate")
	viper.SetDefault("domain.version", "1")
	viper.SetDefault("fees.rate_bps", 250)
	viper.SetDefault("registry.allow_native", true)
	viper.SetDefault("oracle.cache_seconds", 30)
	viper.SetDefault("oracle.stale_after_seconds", 300)
	viper.SetDefault("ratelimit.requests_per_second", 50)
	viper.SetDefault("ratelimit.burst", 100)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
