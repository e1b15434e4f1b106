package risk

import (
	"fmt"
	"strings"

	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/safety"
)

// DefaultMaxTotalExposurePct leaves a tenth of equity in cash
const DefaultMaxTotalExposurePct = 0.90

// SizingMethod selects one of the closed set of sizing algorithms
type SizingMethod string

const (
	FixedRisk          SizingMethod = "fixed_risk"
	Kelly              SizingMethod = "kelly"
	VolatilityAdjusted SizingMethod = "volatility_adjusted"
)

// ParseSizingMethod accepts the canonical names and their common spellings
func ParseSizingMethod(s string) (SizingMethod, error) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)) {
	case "fixedrisk", "fixed", "":
		return FixedRisk, nil
	case "kelly":
		return Kelly, nil
	case "volatilityadjusted", "volatility":
		return VolatilityAdjusted, nil
	default:
		return "", fmt.Errorf("unknown sizing method %q", s)
	}
}

// Parameters are the risk limits applied to every cycle. Fractions, not percentages.
type Parameters struct {
	MaxPositionSizePct float64      `yaml:"max_position_size_pct" json:"max_position_size_pct"`
	RiskPerTradePct    float64      `yaml:"risk_per_trade_pct" json:"risk_per_trade_pct"`
	StopLossPct        float64      `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct      float64      `yaml:"take_profit_pct" json:"take_profit_pct"`
	SizingMethod       SizingMethod `yaml:"sizing_method" json:"sizing_method"`
	MaxDrawdownPct     float64      `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
	MinTradeAmount     float64      `yaml:"min_trade_amount" json:"min_trade_amount"`

	// MaxTotalExposurePct caps invested capital (equity minus cash) after a BUY
	MaxTotalExposurePct float64 `yaml:"max_total_exposure_pct" json:"max_total_exposure_pct"`

	// Kelly inputs. When KellyOdds is 0 the edge is estimated from KellyWinRate
	// and the take-profit/stop-loss ratio.
	KellyEdge    float64 `yaml:"kelly_edge" json:"kelly_edge"`
	KellyOdds    float64 `yaml:"kelly_odds" json:"kelly_odds"`
	KellyWinRate float64 `yaml:"kelly_win_rate" json:"kelly_win_rate"`

	VolatilityScale float64 `yaml:"volatility_scale" json:"volatility_scale"`
}

// DefaultParameters returns conservative defaults
func DefaultParameters() Parameters {
	return Parameters{
		MaxPositionSizePct:  0.10,
		RiskPerTradePct:     0.02,
		StopLossPct:         0.05,
		TakeProfitPct:       0.10,
		SizingMethod:        FixedRisk,
		MaxDrawdownPct:      0.20,
		MinTradeAmount:      10,
		MaxTotalExposurePct: DefaultMaxTotalExposurePct,
		KellyWinRate:        0.5,
		VolatilityScale:     DefaultVolatilityScale,
	}
}

// Validate checks the parameters once at startup
func (p Parameters) Validate() error {
	v := safety.NewValidator()
	checks := []safety.ValidationResult{
		v.ValidatePercentageRange(p.MaxPositionSizePct, 1e-9, 1, "risk.max_position_size_pct"),
		v.ValidatePercentageRange(p.RiskPerTradePct, 1e-9, 1, "risk.risk_per_trade_pct"),
		v.ValidatePercentageRange(p.StopLossPct, 1e-9, 1-1e-9, "risk.stop_loss_pct"),
		v.ValidatePercentageRange(p.TakeProfitPct, 1e-9, 10, "risk.take_profit_pct"),
		v.ValidatePercentageRange(p.MaxDrawdownPct, 1e-9, 1, "risk.max_drawdown_pct"),
		v.ValidatePercentageRange(p.MaxTotalExposurePct, 1e-9, 1, "risk.max_total_exposure_pct"),
		v.ValidatePercentageRange(p.KellyWinRate, 0, 1, "risk.kelly_win_rate"),
	}
	for _, res := range checks {
		if !res.Valid {
			return decerrors.NewConfigurationError("risk", "validate", res.Message)
		}
	}

	if p.MinTradeAmount < 0 {
		return decerrors.NewConfigurationError("risk", "validate",
			fmt.Sprintf("risk.min_trade_amount must not be negative, got %g", p.MinTradeAmount))
	}
	if p.KellyOdds < 0 {
		return decerrors.NewConfigurationError("risk", "validate",
			fmt.Sprintf("risk.kelly_odds must not be negative, got %g", p.KellyOdds))
	}
	if p.VolatilityScale < 0 {
		return decerrors.NewConfigurationError("risk", "validate",
			fmt.Sprintf("risk.volatility_scale must not be negative, got %g", p.VolatilityScale))
	}
	if _, err := ParseSizingMethod(string(p.SizingMethod)); err != nil {
		return decerrors.NewConfigurationError("risk", "validate", err.Error())
	}
	return nil
}
