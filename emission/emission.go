// Package emission implements ionova's block-reward curve: halving
// epochs, supply caps, and burn accounting (§4.3).
package emission

import (
	"github.com/shopspring/decimal"
)

// Default parameters (§4.3).
var (
	DefaultMaxSupply         = decimal.New(10_000_000_000, 0)
	DefaultGenesisAllocation = decimal.New(2_100_000, 0)
	DefaultInitialReward     = decimal.NewFromFloat(79.35)
)

const (
	DefaultHalvingInterval uint64 = 63_072_000
	DefaultTotalHalvings   uint32 = 10

	blocksPerDay = 86_400
	daysPerYear  = 365
)

// Schedule tracks the emission curve and cumulative supply state.
type Schedule struct {
	MaxSupply         decimal.Decimal
	GenesisAllocation decimal.Decimal
	InitialReward     decimal.Decimal
	HalvingInterval   uint64
	TotalHalvings     uint32
	GenesisHeight     uint64

	CirculatingSupply decimal.Decimal
	TotalMinted       decimal.Decimal
	TotalBurned       decimal.Decimal
}

// New builds a Schedule with defaults and the given genesis height (§4.3).
func New(genesisHeight uint64) *Schedule {
	return &Schedule{
		MaxSupply:         DefaultMaxSupply,
		GenesisAllocation: DefaultGenesisAllocation,
		InitialReward:     DefaultInitialReward,
		HalvingInterval:   DefaultHalvingInterval,
		TotalHalvings:     DefaultTotalHalvings,
		GenesisHeight:     genesisHeight,
		CirculatingSupply: DefaultGenesisAllocation,
		TotalMinted:       decimal.Zero,
		TotalBurned:       decimal.Zero,
	}
}

func (s *Schedule) blocksSinceGenesis(height uint64) uint64 {
	if height < s.GenesisHeight {
		return 0
	}
	return height - s.GenesisHeight
}

func (s *Schedule) rawEpoch(height uint64) uint64 {
	return s.blocksSinceGenesis(height) / s.HalvingInterval
}

// CurrentEpoch reports the halving epoch for height, capped at
// TotalHalvings (§4.3).
func (s *Schedule) CurrentEpoch(height uint64) uint32 {
	e := s.rawEpoch(height)
	if e > uint64(s.TotalHalvings) {
		return s.TotalHalvings
	}
	return uint32(e)
}

// CalculateBlockReward computes the block reward for height. Once the
// schedule has run past TotalHalvings epochs, reward is zero — the
// resolution of spec.md's open question on post-schedule reward.
func (s *Schedule) CalculateBlockReward(height uint64) decimal.Decimal {
	e := s.rawEpoch(height)
	if e >= uint64(s.TotalHalvings) {
		return decimal.Zero
	}
	divisor := decimal.NewFromInt(1 << e)
	return s.InitialReward.Div(divisor)
}

// EpochTotalEmission computes the total reward minted across one full
// epoch (§4.3).
func (s *Schedule) EpochTotalEmission(epoch uint32) decimal.Decimal {
	if epoch >= s.TotalHalvings {
		return decimal.Zero
	}
	epochReward := s.InitialReward.Div(decimal.NewFromInt(1 << epoch))
	return epochReward.Mul(decimal.NewFromInt(int64(s.HalvingInterval)))
}

// TotalMintedAtHeight computes the total reward minted from genesis
// through height, summing complete epochs plus the partial current one.
func (s *Schedule) TotalMintedAtHeight(height uint64) decimal.Decimal {
	sinceGenesis := s.blocksSinceGenesis(height)
	completeEpochs := sinceGenesis / s.HalvingInterval
	remaining := sinceGenesis % s.HalvingInterval

	total := decimal.Zero
	maxEpoch := uint64(s.TotalHalvings)
	for e := uint64(0); e < completeEpochs && e < maxEpoch; e++ {
		total = total.Add(s.EpochTotalEmission(uint32(e)))
	}

	if completeEpochs < maxEpoch {
		total = total.Add(s.CalculateBlockReward(height).Mul(decimal.NewFromInt(int64(remaining))))
	}
	return total
}

// Mint computes the block reward for height, caps it at remaining supply
// headroom, and atomically updates CirculatingSupply/TotalMinted (§4.3).
func (s *Schedule) Mint(height uint64) decimal.Decimal {
	reward := s.CalculateBlockReward(height)

	projected := s.CirculatingSupply.Add(reward)
	if projected.GreaterThan(s.MaxSupply) {
		remaining := s.MaxSupply.Sub(s.CirculatingSupply)
		s.CirculatingSupply = s.MaxSupply
		s.TotalMinted = s.TotalMinted.Add(remaining)
		return remaining
	}

	s.CirculatingSupply = projected
	s.TotalMinted = s.TotalMinted.Add(reward)
	return reward
}

// Burn reduces CirculatingSupply by min(amount, CirculatingSupply) and
// records the full requested amount as burned (§4.3).
func (s *Schedule) Burn(amount decimal.Decimal) {
	deducted := amount
	if deducted.GreaterThan(s.CirculatingSupply) {
		deducted = s.CirculatingSupply
	}
	s.CirculatingSupply = s.CirculatingSupply.Sub(deducted)
	s.TotalBurned = s.TotalBurned.Add(amount)
}

// RemainingSupply reports headroom to MaxSupply.
func (s *Schedule) RemainingSupply() decimal.Decimal {
	return s.MaxSupply.Sub(s.CirculatingSupply)
}

// IsEmissionComplete reports whether circulating supply has reached the cap.
func (s *Schedule) IsEmissionComplete() bool {
	return s.CirculatingSupply.GreaterThanOrEqual(s.MaxSupply)
}

// CurrentInflationRate reports the annualized per-second inflation rate
// as a percentage, derived from the current block reward (§4.3).
func (s *Schedule) CurrentInflationRate(height uint64) decimal.Decimal {
	if s.CirculatingSupply.IsZero() {
		return decimal.Zero
	}
	annual := s.CalculateBlockReward(height).
		Mul(decimal.NewFromInt(blocksPerDay)).
		Mul(decimal.NewFromInt(daysPerYear))
	return annual.Div(s.CirculatingSupply).Mul(decimal.NewFromInt(100))
}

// Stats is a point-in-time snapshot of emission state (§4.3).
type Stats struct {
	MaxSupply          decimal.Decimal
	CirculatingSupply  decimal.Decimal
	TotalMinted        decimal.Decimal
	TotalBurned        decimal.Decimal
	RemainingSupply    decimal.Decimal
	CurrentEpoch       uint32
	CurrentBlockReward decimal.Decimal
	InflationRate      decimal.Decimal
	EmissionComplete   bool
}

// Stats computes a Stats snapshot at height.
func (s *Schedule) Stats(height uint64) Stats {
	return Stats{
		MaxSupply:          s.MaxSupply,
		CirculatingSupply:  s.CirculatingSupply,
		TotalMinted:        s.TotalMinted,
		TotalBurned:        s.TotalBurned,
		RemainingSupply:    s.RemainingSupply(),
		CurrentEpoch:       s.CurrentEpoch(height),
		CurrentBlockReward: s.CalculateBlockReward(height),
		InflationRate:      s.CurrentInflationRate(height),
		EmissionComplete:   s.IsEmissionComplete(),
	}
}

// GenesisAllocation is the pre-mined supply breakdown (§4.3).
type GenesisAllocation struct {
	NodeOperators decimal.Decimal
	Reserved      decimal.Decimal
}

// DefaultGenesisAllocationBreakdown matches the default Schedule's
// genesis_allocation total (2,000,000 + 100,000 = 2,100,000).
func DefaultGenesisAllocationBreakdown() GenesisAllocation {
	return GenesisAllocation{
		NodeOperators: decimal.New(2_000_000, 0),
		Reserved:      decimal.New(100_000, 0),
	}
}

// Total sums the genesis allocation's components.
func (g GenesisAllocation) Total() decimal.Decimal {
	return g.NodeOperators.Add(g.Reserved)
}
