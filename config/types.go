package config

// Gateway configures the HTTP surface.
type Gateway struct {
	ListenAddress string  `toml:"ListenAddress" yaml:"listenAddress"`
	JWTSecret     string  `toml:"JWTSecret" yaml:"jwtSecret"`
	JWTSecretEnv  string  `toml:"JWTSecretEnv" yaml:"jwtSecretEnv"`
	JWTIssuer     string  `toml:"JWTIssuer" yaml:"jwtIssuer"`
	JWTAudience   string  `toml:"JWTAudience" yaml:"jwtAudience"`
	RatePerSecond float64 `toml:"RatePerSecond" yaml:"ratePerSecond"`
	RateBurst     int     `toml:"RateBurst" yaml:"rateBurst"`
}

// Logging mirrors observability/logging.Config.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
	Compress   bool   `toml:"Compress" yaml:"compress"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
}

// Allocation credits an account when a fresh ledger is created. Token may be
// empty for the native currency; Amount is a base unit integer string.
type Allocation struct {
	Token   string `toml:"Token" yaml:"token"`
	Address string `toml:"Address" yaml:"address"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// Webhook forwards committed ledger events. An empty Endpoint disables it.
type Webhook struct {
	Endpoint  string   `toml:"Endpoint" yaml:"endpoint"`
	Secret    string   `toml:"Secret" yaml:"secret"`
	SecretEnv string   `toml:"SecretEnv" yaml:"secretEnv"`
	Events    []string `toml:"Events" yaml:"events"`
}
