package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	avcrypto "cryptoavisos/crypto"
	"cryptoavisos/native/fees"
	"cryptoavisos/native/market"
	"cryptoavisos/observability/logging"
)

// Validate checks the loaded configuration for values the ledger cannot start
// with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Admin) == "" {
		return fmt.Errorf("config: Admin is required")
	}
	if _, err := avcrypto.ParseAddress(c.Admin); err != nil {
		return fmt.Errorf("config: Admin: %w", err)
	}
	if _, err := avcrypto.ParseAddress(c.Custody); err != nil {
		return fmt.Errorf("config: Custody: %w", err)
	}
	if strings.TrimSpace(c.AllowedSigner) != "" {
		if _, err := avcrypto.ParseAddress(c.AllowedSigner); err != nil {
			return fmt.Errorf("config: AllowedSigner: %w", err)
		}
	}
	if _, err := fees.ParsePercent(c.InitialFee); err != nil {
		return fmt.Errorf("config: InitialFee: %w", err)
	}
	if c.Gateway.RatePerSecond < 0 {
		return fmt.Errorf("config: Gateway.RatePerSecond must not be negative")
	}
	if c.Gateway.RateBurst < 0 {
		return fmt.Errorf("config: Gateway.RateBurst must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: Logging.Level: %w", err)
	}
	if strings.TrimSpace(c.Webhook.Endpoint) != "" && c.WebhookSecretValue() == "" {
		return fmt.Errorf("config: Webhook.Endpoint requires a secret (Webhook.Secret or $%s)", c.Webhook.SecretEnv)
	}
	for i, alloc := range c.Genesis {
		if _, _, _, err := alloc.parse(); err != nil {
			return fmt.Errorf("config: Genesis[%d]: %w", i, err)
		}
	}
	return nil
}

// EngineParams converts the ledger section into market parameters.
func (c *Config) EngineParams() (market.Params, error) {
	admin, err := avcrypto.ParseAddress(c.Admin)
	if err != nil {
		return market.Params{}, fmt.Errorf("config: Admin: %w", err)
	}
	custody, err := avcrypto.ParseAddress(c.Custody)
	if err != nil {
		return market.Params{}, fmt.Errorf("config: Custody: %w", err)
	}
	fee, err := fees.ParsePercent(c.InitialFee)
	if err != nil {
		return market.Params{}, fmt.Errorf("config: InitialFee: %w", err)
	}
	params := market.Params{
		Admin:      admin,
		Custody:    custody,
		InitialFee: fee,
		DomainID:   c.DomainID,
	}
	if strings.TrimSpace(c.AllowedSigner) != "" {
		signer, err := avcrypto.ParseAddress(c.AllowedSigner)
		if err != nil {
			return market.Params{}, fmt.Errorf("config: AllowedSigner: %w", err)
		}
		params.AllowedSigner = signer
	}
	return params, nil
}

// LoggingConfig projects the logging section for observability/logging.
func (c *Config) LoggingConfig(service string) logging.Config {
	return logging.Config{
		Service:    service,
		Env:        c.Environment,
		Level:      c.Logging.Level,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}

// Parse returns the token, recipient and amount of the allocation. An empty
// token selects the native currency.
func (a Allocation) Parse() (common.Address, common.Address, *big.Int, error) {
	return a.parse()
}

func (a Allocation) parse() (common.Address, common.Address, *big.Int, error) {
	var token common.Address
	if strings.TrimSpace(a.Token) != "" {
		parsed, err := avcrypto.ParseAddress(a.Token)
		if err != nil {
			return common.Address{}, common.Address{}, nil, fmt.Errorf("token: %w", err)
		}
		token = parsed
	}
	to, err := avcrypto.ParseAddress(a.Address)
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("address: %w", err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(a.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("amount %q must be a positive integer", a.Amount)
	}
	return token, to, amount, nil
}
