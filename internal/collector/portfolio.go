package collector

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/crypto-decision-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// StaticPortfolio reads a portfolio snapshot from a YAML file on every call
type StaticPortfolio struct {
	path string
}

// NewStaticPortfolio creates a file backed portfolio source
func NewStaticPortfolio(path string) *StaticPortfolio {
	return &StaticPortfolio{path: path}
}

// Snapshot loads the file. A missing total equity is derived from cash plus
// positions at cost.
func (p *StaticPortfolio) Snapshot(ctx context.Context) (types.PortfolioState, error) {
	if err := ctx.Err(); err != nil {
		return types.PortfolioState{}, err
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return types.PortfolioState{}, fmt.Errorf("failed to read portfolio file: %w", err)
	}

	var state types.PortfolioState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return types.PortfolioState{}, fmt.Errorf("failed to decode portfolio file: %w", err)
	}

	positions := make(map[string]types.Position, len(state.Positions))
	for sym, pos := range state.Positions {
		positions[strings.ToUpper(sym)] = pos
	}
	state.Positions = positions

	if state.TotalEquity == 0 {
		state.TotalEquity = state.CashBalance
		for _, pos := range state.Positions {
			state.TotalEquity += pos.Quantity * pos.CostBasis
		}
	}
	return state, nil
}

// walletClient is the part of the Bybit client the portfolio source needs
type walletClient interface {
	GetAccountBalance(ctx context.Context, accountType bybit.AccountType, coins ...string) (*bybit.AccountInfo, error)
}

// BybitPortfolio snapshots the unified wallet and tracks peak equity for the
// lifetime of the process
type BybitPortfolio struct {
	client    walletClient
	account   bybit.AccountType
	quoteCoin string
	guard     guard

	mu   sync.Mutex
	peak float64
}

// NewBybitPortfolio creates a wallet backed portfolio source
func NewBybitPortfolio(client walletClient, opts Options) *BybitPortfolio {
	return &BybitPortfolio{
		client:    client,
		account:   bybit.AccountTypeUnified,
		quoteCoin: "USDT",
		guard:     newGuard("bybit-wallet", opts),
	}
}

// Snapshot fetches the wallet balance
func (p *BybitPortfolio) Snapshot(ctx context.Context) (types.PortfolioState, error) {
	var info *bybit.AccountInfo
	err := p.guard.run(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		info, err = p.client.GetAccountBalance(ctx, p.account)
		return err
	})
	if err != nil {
		return types.PortfolioState{}, err
	}

	state := info.Portfolio(p.quoteCoin)

	p.mu.Lock()
	if state.TotalEquity > p.peak {
		p.peak = state.TotalEquity
	}
	state.PeakEquity = p.peak
	p.mu.Unlock()
	return state, nil
}
