package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	avcrypto "cryptoavisos/crypto"
)

type Config struct {
	Environment string `toml:"Environment" yaml:"environment"`
	// DataDir holds the LevelDB ledger. Empty keeps the ledger in memory.
	DataDir string `toml:"DataDir" yaml:"dataDir"`
	// JournalPath is the sqlite event journal. Empty disables the journal.
	JournalPath string `toml:"JournalPath" yaml:"journalPath"`

	Admin   string `toml:"Admin" yaml:"admin"`
	Custody string `toml:"Custody" yaml:"custody"`
	// InitialFee is a decimal percentage such as "1" or "2.5".
	InitialFee         string `toml:"InitialFee" yaml:"initialFee"`
	DomainID           uint64 `toml:"DomainID" yaml:"domainId"`
	AllowedSigner      string `toml:"AllowedSigner" yaml:"allowedSigner"`
	SignerKeystorePath string `toml:"SignerKeystorePath" yaml:"signerKeystorePath"`

	Gateway   Gateway      `toml:"Gateway" yaml:"gateway"`
	Logging   Logging      `toml:"Logging" yaml:"logging"`
	Telemetry Telemetry    `toml:"Telemetry" yaml:"telemetry"`
	Webhook   Webhook      `toml:"Webhook" yaml:"webhook"`
	Genesis   []Allocation `toml:"Genesis" yaml:"genesis"`
}

// Load reads the configuration at path. TOML is assumed unless the file ends
// in .yaml or .yml. A missing file is replaced by a generated default.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown key %s in %s", undecoded[0], path)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if strings.TrimSpace(c.InitialFee) == "" {
		c.InitialFee = "1"
	}
	if c.DomainID == 0 {
		c.DomainID = 1
	}
	if strings.TrimSpace(c.Custody) == "" {
		c.Custody = DefaultCustody
	}
	if strings.TrimSpace(c.Gateway.ListenAddress) == "" {
		c.Gateway.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.Gateway.JWTSecretEnv) == "" {
		c.Gateway.JWTSecretEnv = "AVISOS_JWT_SECRET"
	}
	if c.Gateway.RatePerSecond == 0 {
		c.Gateway.RatePerSecond = 10
	}
	if c.Gateway.RateBurst == 0 {
		c.Gateway.RateBurst = 20
	}
	if strings.TrimSpace(c.Webhook.SecretEnv) == "" {
		c.Webhook.SecretEnv = "AVISOS_WEBHOOK_SECRET"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
}

// DefaultCustody is the account holding escrowed funds when none is
// configured.
var DefaultCustody = common.BytesToAddress(crypto.Keccak256([]byte("cryptoavisos/custody"))).Hex()

// createDefault writes a development configuration next to a freshly
// generated admin address and shipping signer keystore.
func createDefault(path string) (*Config, error) {
	adminKey, err := avcrypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	signerKey, err := avcrypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := filepath.Join(filepath.Dir(path), "signer.keystore")
	if err := avcrypto.SaveToKeystore(keystorePath, signerKey, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:            "./avisos-data",
		JournalPath:        "./avisos-data/journal.db",
		Admin:              adminKey.Address().Hex(),
		AllowedSigner:      signerKey.Address().Hex(),
		SignerKeystorePath: keystorePath,
	}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func secretValue(env, fallback string) string {
	if env = strings.TrimSpace(env); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(fallback)
}

// WebhookSecretValue resolves the webhook signing secret the same way as
// JWTSecretValue.
func (c *Config) WebhookSecretValue() string {
	return secretValue(c.Webhook.SecretEnv, c.Webhook.Secret)
}

// JWTSecretValue resolves the gateway signing secret, preferring the
// environment variable named by JWTSecretEnv.
func (c *Config) JWTSecretValue() string {
	return secretValue(c.Gateway.JWTSecretEnv, c.Gateway.JWTSecret)
}
