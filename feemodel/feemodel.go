// Package feemodel implements ionova's static fee formula, the
// EIP-1559-style dynamic base-fee adjustment, and optional price-oracle
// fee scaling (§4.4).
package feemodel

import (
	"github.com/shopspring/decimal"
)

// Floor is the minimum the dynamic base fee is ever adjusted down to
// (§4.4).
var Floor = decimal.New(1, -6) // 0.000001

// Config holds the static and dynamic fee parameters (§4.4).
type Config struct {
	BaseTxFee         decimal.Decimal
	BaseFeePerGas     decimal.Decimal
	TargetUtilization decimal.Decimal
	AdjustmentFactor  decimal.Decimal
}

// DefaultConfig matches §4.4's defaults.
func DefaultConfig() Config {
	return Config{
		BaseTxFee:         decimal.New(1, -4), // 0.0001
		BaseFeePerGas:     decimal.New(1, -6), // 0.000001
		TargetUtilization: decimal.NewFromFloat(0.8),
		AdjustmentFactor:  decimal.NewFromFloat(0.125),
	}
}

// TransactionFee is the fee breakdown for one transaction (§4.4).
type TransactionFee struct {
	BaseFee decimal.Decimal
	GasFee  decimal.Decimal
	Tip     decimal.Decimal
	Total   decimal.Decimal
}

// Calculate computes fee = base_tx_fee + base_fee_per_gas*gas_used + tip
// (§4.4).
func Calculate(cfg Config, gasUsed uint64, tip decimal.Decimal) TransactionFee {
	gasFee := cfg.BaseFeePerGas.Mul(decimal.NewFromInt(int64(gasUsed)))
	total := cfg.BaseTxFee.Add(gasFee).Add(tip)
	return TransactionFee{
		BaseFee: cfg.BaseTxFee,
		GasFee:  gasFee,
		Tip:     tip,
		Total:   total,
	}
}

// AdjustBaseFee applies one EIP-1559-style step: above target the fee
// rises by adjustmentFactor; below target it falls, floored at Floor;
// at target it is unchanged (§4.4, invariant 7).
func AdjustBaseFee(currentBaseFee decimal.Decimal, gasUsed, gasTarget uint64, adjustmentFactor decimal.Decimal) decimal.Decimal {
	utilization := decimal.NewFromInt(int64(gasUsed)).Div(decimal.NewFromInt(int64(gasTarget)))
	one := decimal.NewFromInt(1)

	switch {
	case utilization.GreaterThan(one):
		increase := currentBaseFee.Mul(adjustmentFactor)
		return currentBaseFee.Add(increase)
	case utilization.LessThan(one):
		decrease := currentBaseFee.Mul(adjustmentFactor)
		newFee := currentBaseFee.Sub(decrease)
		if newFee.LessThan(Floor) {
			return Floor
		}
		return newFee
	default:
		return currentBaseFee
	}
}

// PriceOracle supplies the current IONX/USD price for dynamic fee
// scaling (§4.4 "Optional price-oracle scaling").
type PriceOracle interface {
	PriceUSD() decimal.Decimal
	IsHealthy() bool
}

// Scaler scales base fees to target a fixed USD-equivalent cost,
// falling back to the last known price when the oracle is unhealthy.
type Scaler struct {
	TargetFeeUSD   decimal.Decimal
	BaseTokenPrice decimal.Decimal
	MinScaleFactor decimal.Decimal
	MaxScaleFactor decimal.Decimal
	lastKnownPrice decimal.Decimal
}

// NewScaler builds a Scaler with §4.4's defaults ($0.005 target, $1
// baseline, scale clamped to [0.00001, 100]).
func NewScaler() *Scaler {
	return &Scaler{
		TargetFeeUSD:   decimal.New(5, -3),
		BaseTokenPrice: decimal.New(1, 0),
		MinScaleFactor: decimal.New(1, -5),
		MaxScaleFactor: decimal.New(100, 0),
		lastKnownPrice: decimal.New(1, 0),
	}
}

// ScaleFactor computes clamp(base_price / observed_price, min, max),
// using the last known price when the oracle reports unhealthy.
func (s *Scaler) ScaleFactor(oracle PriceOracle) decimal.Decimal {
	price := s.lastKnownPrice
	if oracle.IsHealthy() {
		price = oracle.PriceUSD()
		s.lastKnownPrice = price
	}

	factor := s.BaseTokenPrice.Div(price)
	if factor.LessThan(s.MinScaleFactor) {
		factor = s.MinScaleFactor
	}
	if factor.GreaterThan(s.MaxScaleFactor) {
		factor = s.MaxScaleFactor
	}
	return factor
}

// AdjustedBaseTxFee scales a base transaction fee by the current factor.
func (s *Scaler) AdjustedBaseTxFee(base decimal.Decimal, oracle PriceOracle) decimal.Decimal {
	return base.Mul(s.ScaleFactor(oracle))
}

// AdjustedBaseFeePerGas scales a base per-gas fee by the current factor.
func (s *Scaler) AdjustedBaseFeePerGas(base decimal.Decimal, oracle PriceOracle) decimal.Decimal {
	return base.Mul(s.ScaleFactor(oracle))
}
