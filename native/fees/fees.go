package fees

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/state"
)

// LockPeriod is the delay, in seconds, between proposing a fee and being able
// to implement it.
const LockPeriod uint64 = 7 * 24 * 60 * 60

// Decimals is the fixed-point precision of fee percentages.
const Decimals = 18

var (
	// One is 1% expressed in fee units.
	One = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	// MaxFee is 100%.
	MaxFee = new(big.Int).Mul(big.NewInt(100), One)

	divisor = uint256.MustFromBig(MaxFee)
)

var configKey = []byte("fees/config")

// Config is the persisted fee state. Pending and UnlockAt are only meaningful
// while HasPending is set.
type Config struct {
	Current    *big.Int
	Pending    *big.Int
	UnlockAt   uint64
	HasPending bool
}

func (c *Config) normalize() *Config {
	if c.Current == nil {
		c.Current = big.NewInt(0)
	}
	if c.Pending == nil {
		c.Pending = big.NewInt(0)
	}
	return c
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return (&Config{}).normalize()
	}
	out := *c
	out.normalize()
	out.Current = new(big.Int).Set(out.Current)
	out.Pending = new(big.Int).Set(out.Pending)
	return &out
}

// Controller reads and writes the fee configuration held in ledger state.
type Controller struct {
	kv state.KV
}

func NewController(kv state.KV) *Controller {
	return &Controller{kv: kv}
}

// Config loads the current configuration. A ledger that was never initialised
// reports a zero fee.
func (c *Controller) Config() (*Config, error) {
	cfg := new(Config)
	if _, err := c.kv.KVGet(configKey, cfg); err != nil {
		return nil, fmt.Errorf("fees: load config: %w", err)
	}
	return cfg.normalize(), nil
}

func (c *Controller) store(cfg *Config) error {
	return c.kv.KVPut(configKey, cfg.normalize())
}

// Initialized reports whether a configuration has been written.
func (c *Controller) Initialized() (bool, error) {
	return c.kv.KVGet(configKey, nil)
}

// Init writes the initial fee. It is a no-op once a configuration exists so
// restarts never reset a fee that was implemented later.
func (c *Controller) Init(initial *big.Int) error {
	if err := Validate(initial); err != nil {
		return err
	}
	ok, err := c.Initialized()
	if err != nil || ok {
		return err
	}
	return c.store(&Config{Current: new(big.Int).Set(initial)})
}

// Prepare records fee as the pending proposal, replacing any earlier one.
func (c *Controller) Prepare(fee *big.Int, now uint64) (*Config, error) {
	if err := Validate(fee); err != nil {
		return nil, err
	}
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	cfg.Pending = new(big.Int).Set(fee)
	cfg.UnlockAt = now + LockPeriod
	cfg.HasPending = true
	if err := c.store(cfg); err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Implement promotes the pending fee once its lock has elapsed and returns the
// fee it replaced.
func (c *Controller) Implement(now uint64) (previous *big.Int, cfg *Config, err error) {
	cfg, err = c.Config()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.HasPending {
		return nil, nil, coreerrors.ErrNotPrepared
	}
	if now < cfg.UnlockAt {
		return nil, nil, coreerrors.ErrNotUnlocked
	}
	previous = cfg.Current
	cfg.Current = cfg.Pending
	cfg.Pending = big.NewInt(0)
	cfg.UnlockAt = 0
	cfg.HasPending = false
	if err := c.store(cfg); err != nil {
		return nil, nil, err
	}
	return previous, cfg.Clone(), nil
}

// Validate rejects negative fees and fees above 100%.
func Validate(fee *big.Int) error {
	if fee == nil || fee.Sign() < 0 || fee.Cmp(MaxFee) > 0 {
		return coreerrors.ErrFee
	}
	return nil
}

// Compute returns floor(price * fee / (100 * 10^18)).
func Compute(price, fee *big.Int) (*big.Int, error) {
	if price == nil || fee == nil || price.Sign() < 0 || fee.Sign() < 0 {
		return nil, coreerrors.ErrOverflow
	}
	p, overflow := uint256.FromBig(price)
	if overflow {
		return nil, coreerrors.ErrOverflow
	}
	f, overflow := uint256.FromBig(fee)
	if overflow {
		return nil, coreerrors.ErrOverflow
	}
	out, overflow := new(uint256.Int).MulDivOverflow(p, f, divisor)
	if overflow {
		return nil, coreerrors.ErrOverflow
	}
	return out.ToBig(), nil
}

// ParsePercent converts a decimal percentage such as "10" or "2.5" into fee
// units.
func ParsePercent(s string) (*big.Int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return nil, fmt.Errorf("fees: empty percentage")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > Decimals {
		return nil, fmt.Errorf("fees: %q has more than %d decimals", s, Decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", Decimals-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("fees: invalid percentage %q", s)
		}
	}
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("fees: invalid percentage %q", s)
	}
	if err := Validate(out); err != nil {
		return nil, fmt.Errorf("fees: percentage %q above 100", s)
	}
	return out, nil
}

// FormatPercent renders fee units as a decimal percentage.
func FormatPercent(fee *big.Int) string {
	if fee == nil {
		return "0"
	}
	q, r := new(big.Int).QuoRem(fee, One, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	digits := r.String()
	frac := strings.Repeat("0", Decimals-len(digits)) + digits
	return q.String() + "." + strings.TrimRight(frac, "0")
}
