package emission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	s := New(0)
	assert.True(t, s.MaxSupply.Equal(decimal.New(10_000_000_000, 0)))
	assert.True(t, s.GenesisAllocation.Equal(decimal.New(2_100_000, 0)))
	assert.True(t, s.InitialReward.Equal(decimal.NewFromFloat(79.35)))
	assert.Equal(t, uint32(10), s.TotalHalvings)
}

func TestBlockRewardHalving_S3(t *testing.T) {
	s := New(0)

	assert.True(t, s.CalculateBlockReward(0).Equal(decimal.NewFromFloat(79.35)))
	assert.True(t, s.CalculateBlockReward(1_000_000).Equal(decimal.NewFromFloat(79.35)))

	// S3: reward at height 63,072,000 is 39.675.
	assert.True(t, s.CalculateBlockReward(63_072_000).Equal(decimal.NewFromFloat(39.675)))
	assert.True(t, s.CalculateBlockReward(63_072_000*2).Equal(decimal.NewFromFloat(19.8375)))
	assert.True(t, s.CalculateBlockReward(63_072_000*3).Equal(decimal.NewFromFloat(9.91875)))
}

func TestPostScheduleRewardIsZero(t *testing.T) {
	s := New(0)
	// Open-question resolution: past total_halvings epochs, reward is zero.
	height := s.HalvingInterval * uint64(s.TotalHalvings+5)
	assert.True(t, s.CalculateBlockReward(height).IsZero())
	assert.Equal(t, s.TotalHalvings, s.CurrentEpoch(height))
}

func TestCurrentEpoch(t *testing.T) {
	s := New(0)
	assert.Equal(t, uint32(0), s.CurrentEpoch(0))
	assert.Equal(t, uint32(1), s.CurrentEpoch(63_072_000))
	assert.Equal(t, uint32(9), s.CurrentEpoch(63_072_000*9))
	assert.Equal(t, uint32(10), s.CurrentEpoch(63_072_000*15))
}

func TestEpochTotalEmission(t *testing.T) {
	s := New(0)
	epoch0 := s.EpochTotalEmission(0)
	want0 := decimal.NewFromFloat(79.35).Mul(decimal.NewFromInt(63_072_000))
	assert.True(t, epoch0.Equal(want0))

	epoch1 := s.EpochTotalEmission(1)
	assert.True(t, epoch1.Equal(epoch0.Div(decimal.NewFromInt(2))))
}

func TestMintAndBurn(t *testing.T) {
	s := New(0)
	assert.True(t, s.CirculatingSupply.Equal(decimal.New(2_100_000, 0)))

	reward := s.Mint(0)
	assert.True(t, reward.Equal(decimal.NewFromFloat(79.35)))
	assert.True(t, s.CirculatingSupply.Equal(decimal.New(2_100_000, 0).Add(decimal.NewFromFloat(79.35))))
	assert.True(t, s.TotalMinted.Equal(decimal.NewFromFloat(79.35)))

	s.Burn(decimal.NewFromInt(10))
	assert.True(t, s.TotalBurned.Equal(decimal.NewFromInt(10)))
}

func TestMaxSupplyCap(t *testing.T) {
	s := New(0)
	s.CirculatingSupply = decimal.New(9_999_999_950, 0)

	reward := s.Mint(0)
	assert.True(t, reward.Equal(decimal.NewFromInt(50)))
	assert.True(t, s.CirculatingSupply.Equal(s.MaxSupply))
	assert.True(t, s.IsEmissionComplete())
}

func TestBurnNeverGoesNegative(t *testing.T) {
	s := New(0)
	s.CirculatingSupply = decimal.NewFromInt(5)
	s.Burn(decimal.NewFromInt(100))
	assert.True(t, s.CirculatingSupply.IsZero())
	assert.True(t, s.TotalBurned.Equal(decimal.NewFromInt(100)))
}

func TestGenesisAllocationBreakdown(t *testing.T) {
	g := DefaultGenesisAllocationBreakdown()
	assert.True(t, g.Total().Equal(decimal.New(2_100_000, 0)))
}
