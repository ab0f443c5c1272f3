package feemodel

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculate_S1(t *testing.T) {
	cfg := DefaultConfig()
	fee := Calculate(cfg, 5000, decimal.Zero)
	assert.True(t, fee.Total.Equal(decimal.NewFromFloat(0.0051)), "got %s", fee.Total)
}

func TestAdjustBaseFee_OverTarget(t *testing.T) {
	current := decimal.New(1, 6)
	newFee := AdjustBaseFee(current, 25_000_000, 20_000_000, decimal.NewFromFloat(0.125))
	assert.True(t, newFee.GreaterThan(current))
}

func TestAdjustBaseFee_UnderTarget(t *testing.T) {
	current := decimal.New(1, 6)
	newFee := AdjustBaseFee(current, 15_000_000, 20_000_000, decimal.NewFromFloat(0.125))
	assert.True(t, newFee.LessThanOrEqual(current))
	assert.True(t, newFee.GreaterThanOrEqual(Floor))
}

func TestAdjustBaseFee_AtTarget(t *testing.T) {
	current := decimal.NewFromFloat(0.0005)
	newFee := AdjustBaseFee(current, 20_000_000, 20_000_000, decimal.NewFromFloat(0.125))
	assert.True(t, newFee.Equal(current))
}

func TestAdjustBaseFee_NeverBelowFloor(t *testing.T) {
	current := Floor
	newFee := AdjustBaseFee(current, 1, 1_000_000, decimal.NewFromFloat(0.999))
	assert.True(t, newFee.Equal(Floor))
}

type mockOracle struct {
	price   decimal.Decimal
	healthy bool
}

func (m mockOracle) PriceUSD() decimal.Decimal { return m.price }
func (m mockOracle) IsHealthy() bool           { return m.healthy }

func TestScaleFactorAt100k(t *testing.T) {
	s := NewScaler()
	scale := s.ScaleFactor(mockOracle{price: decimal.NewFromInt(100_000), healthy: true})
	assert.True(t, scale.Equal(decimal.New(1, -5)), "got %s", scale)
}

func TestAdjustedFeeAt100k(t *testing.T) {
	s := NewScaler()
	oracle := mockOracle{price: decimal.NewFromInt(100_000), healthy: true}

	base := s.AdjustedBaseTxFee(decimal.New(1, 4), oracle)
	assert.True(t, base.Equal(decimal.New(1, -1)), "got %s", base)

	gas := s.AdjustedBaseFeePerGas(decimal.New(1, 6), oracle)
	assert.True(t, gas.Equal(decimal.New(1, 1)), "got %s", gas)
}

func TestOracleFailureFallback(t *testing.T) {
	s := NewScaler()

	healthy := mockOracle{price: decimal.NewFromInt(100), healthy: true}
	scale1 := s.ScaleFactor(healthy)
	assert.True(t, scale1.Equal(decimal.NewFromFloat(0.01)))

	failed := mockOracle{price: decimal.NewFromInt(1000), healthy: false}
	scale2 := s.ScaleFactor(failed)
	assert.True(t, scale2.Equal(decimal.NewFromFloat(0.01)))
}
