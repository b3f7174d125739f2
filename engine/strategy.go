package engine

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/pphpc/rng"
)

// Strategy selects how work units are distributed among workers.
type Strategy uint8

const (
	SingleThread Strategy = iota
	EqualStatic
	OnDemand
	Exclusive
)

var strategyNames = [...]string{
	SingleThread: "single",
	EqualStatic:  "equal",
	OnDemand:     "ondemand",
	Exclusive:    "exclusive",
}

// Short aliases accepted on the command line and in config files.
var strategyAliases = map[string]Strategy{
	"st": SingleThread,
	"eq": EqualStatic,
	"od": OnDemand,
	"ex": Exclusive,
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// ParseStrategy resolves a strategy name or alias (case-insensitive).
func ParseStrategy(name string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range strategyNames {
		if s == n {
			return Strategy(i), nil
		}
	}
	if s, ok := strategyAliases[n]; ok {
		return s, nil
	}
	return 0, configError("unknown strategy %q", name)
}

// Keying returns the substream keying the strategy runs with. OnDemand
// hands a cell to whichever worker claims it first, so its draws only
// depend on the seed when streams are keyed by unit; it always uses
// KeyByUnit. Other strategies keep the requested keying.
func (s Strategy) Keying(requested rng.Keying) rng.Keying {
	if s == OnDemand {
		return rng.KeyByUnit
	}
	return requested
}

// Strategies returns all strategies in declaration order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategyNames))
	for i := range strategyNames {
		out[i] = Strategy(i)
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ProviderParams are the inputs a provider factory may use.
type ProviderParams struct {
	Size      int // work units per phase
	Workers   int
	BlockSize int // OnDemand only
	RowWidth  int // Exclusive only
}

// ProviderFactory builds a provider for one work size.
type ProviderFactory func(p ProviderParams) (Provider, error)

var registry = map[Strategy]ProviderFactory{}

// Register binds a factory to a strategy. It is meant to be called from init.
func Register(s Strategy, f ProviderFactory) {
	registry[s] = f
}

func init() {
	Register(SingleThread, func(p ProviderParams) (Provider, error) {
		if p.Workers != 1 {
			return nil, configError("single-thread strategy requires exactly 1 worker, got %d", p.Workers)
		}
		return NewSingleThreadProvider(p.Size), nil
	})
	Register(EqualStatic, func(p ProviderParams) (Provider, error) {
		return NewEqualStaticProvider(p.Size, p.Workers), nil
	})
	Register(OnDemand, func(p ProviderParams) (Provider, error) {
		if p.BlockSize < 1 {
			return nil, configError("ondemand block size must be >= 1, got %d", p.BlockSize)
		}
		return NewOnDemandProvider(p.Size, p.Workers, p.BlockSize), nil
	})
	Register(Exclusive, func(p ProviderParams) (Provider, error) {
		if p.RowWidth < 1 {
			return nil, configError("exclusive strategy needs a row width >= 1, got %d", p.RowWidth)
		}
		return NewExclusiveProvider(p.Size, p.Workers, p.RowWidth), nil
	})
}

// NewProvider looks up the strategy's factory and builds a provider.
func NewProvider(s Strategy, p ProviderParams) (Provider, error) {
	f, ok := registry[s]
	if !ok {
		return nil, configError("no provider registered for strategy %v", s)
	}
	if p.Workers < 1 {
		return nil, configError("worker count must be >= 1, got %d", p.Workers)
	}
	if p.Size < 0 {
		return nil, configError("work size must be >= 0, got %d", p.Size)
	}
	return f(p)
}
