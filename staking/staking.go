// Package staking implements ionova's Reward Distributor: splits each
// finalized block's minted reward between validators (by stake, with
// commission), sequencers (equally), and the treasury (§4.9).
package staking

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vipechan/ionova/emission"
)

// Pool split fractions (§4.9 step 2).
var (
	ValidatorPoolShare = decimal.NewFromFloat(0.70)
	SequencerPoolShare = decimal.NewFromFloat(0.20)
	TreasuryShare      = decimal.NewFromFloat(0.10)
)

var ErrValidatorNotFound = errors.New("staking: validator not found")

// Validator holds one validator's stake bookkeeping (§4.9).
type Validator struct {
	Operator       string
	SelfStake      decimal.Decimal
	DelegatedStake decimal.Decimal
	CommissionRate decimal.Decimal
	Delegators     map[string]decimal.Decimal
}

// TotalStake is self-stake plus all delegated stake.
func (v *Validator) TotalStake() decimal.Decimal {
	return v.SelfStake.Add(v.DelegatedStake)
}

// NewValidator builds a Validator with an empty delegator set.
func NewValidator(operator string, selfStake, commissionRate decimal.Decimal) *Validator {
	return &Validator{
		Operator:       operator,
		SelfStake:      selfStake,
		DelegatedStake: decimal.Zero,
		CommissionRate: commissionRate,
		Delegators:     make(map[string]decimal.Decimal),
	}
}

// ValidatorReward is one validator's share of a distribution round.
type ValidatorReward struct {
	OperatorReward   decimal.Decimal
	DelegatorRewards map[string]decimal.Decimal
}

// Distribution is the full outcome of one reward round (§4.9).
type Distribution struct {
	TotalReward      decimal.Decimal
	ValidatorRewards map[string]ValidatorReward
	SequencerRewards map[string]decimal.Decimal
	TreasuryAmount   decimal.Decimal
}

// Distributor owns validator stake bookkeeping and the treasury balance.
type Distributor struct {
	schedule        *emission.Schedule
	validators      map[string]*Validator
	TreasuryBalance decimal.Decimal
}

// New builds a Distributor backed by the given Emission Schedule, whose
// Mint provides each round's total_reward (§4.9 step 1).
func New(schedule *emission.Schedule) *Distributor {
	return &Distributor{
		schedule:        schedule,
		validators:      make(map[string]*Validator),
		TreasuryBalance: decimal.Zero,
	}
}

// AddValidator registers a validator for future distribution rounds.
func (d *Distributor) AddValidator(v *Validator) {
	d.validators[v.Operator] = v
}

// Delegate adds stake from a delegator to a validator.
func (d *Distributor) Delegate(operator, delegator string, amount decimal.Decimal) error {
	v, ok := d.validators[operator]
	if !ok {
		return ErrValidatorNotFound
	}
	v.Delegators[delegator] = v.Delegators[delegator].Add(amount)
	v.DelegatedStake = v.DelegatedStake.Add(amount)
	return nil
}

func (d *Distributor) totalNetworkStake() decimal.Decimal {
	total := decimal.Zero
	for _, v := range d.validators {
		total = total.Add(v.TotalStake())
	}
	return total
}

// sortedValidatorIDs returns validator operator ids sorted ascending, per
// §4.9 "Ordering within the validator loop is by validator id ascending"
// and §9 "Validator-loop determinism".
func (d *Distributor) sortedValidatorIDs() []string {
	ids := make([]string, 0, len(d.validators))
	for id := range d.validators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Distribute runs the full §4.9 round at the given height: mint, split
// into validator/sequencer/treasury pools, distribute each pro-rata by
// stake with operator commission, split the sequencer pool equally, and
// accumulate the treasury.
func (d *Distributor) Distribute(height uint64, activeSequencers []string) Distribution {
	totalReward := d.schedule.Mint(height)

	validatorPool := totalReward.Mul(ValidatorPoolShare)
	sequencerPool := totalReward.Mul(SequencerPoolShare)
	treasuryAmount := totalReward.Mul(TreasuryShare)

	validatorRewards := make(map[string]ValidatorReward, len(d.validators))
	totalStake := d.totalNetworkStake()

	if totalStake.GreaterThan(decimal.Zero) {
		for _, id := range d.sortedValidatorIDs() {
			v := d.validators[id]
			stakeFraction := v.TotalStake().Div(totalStake)
			validatorReward := validatorPool.Mul(stakeFraction)

			operatorReward, delegatorPool := applyCommission(v, validatorReward)
			validatorRewards[id] = ValidatorReward{
				OperatorReward:   operatorReward,
				DelegatorRewards: distributeToDelegators(v, delegatorPool),
			}
		}
	} else {
		treasuryAmount = treasuryAmount.Add(validatorPool)
	}

	sequencerRewards := make(map[string]decimal.Decimal, len(activeSequencers))
	if len(activeSequencers) > 0 {
		sorted := make([]string, len(activeSequencers))
		copy(sorted, activeSequencers)
		sort.Strings(sorted)

		share := sequencerPool.Div(decimal.NewFromInt(int64(len(sorted))))
		for _, seq := range sorted {
			sequencerRewards[seq] = share
		}
	} else {
		treasuryAmount = treasuryAmount.Add(sequencerPool)
	}

	d.TreasuryBalance = d.TreasuryBalance.Add(treasuryAmount)

	return Distribution{
		TotalReward:      totalReward,
		ValidatorRewards: validatorRewards,
		SequencerRewards: sequencerRewards,
		TreasuryAmount:   treasuryAmount,
	}
}

// applyCommission splits a validator's pool reward into the operator's
// total (self-stake share plus commission) and the pool left for
// delegators (§4.9 step 3).
func applyCommission(v *Validator, reward decimal.Decimal) (operatorTotal, delegatorPool decimal.Decimal) {
	total := v.TotalStake()
	if total.IsZero() {
		return decimal.Zero, decimal.Zero
	}

	selfFraction := v.SelfStake.Div(total)
	operatorBase := reward.Mul(selfFraction)
	delegatorBase := reward.Sub(operatorBase)

	commission := delegatorBase.Mul(v.CommissionRate)
	delegatorPool = delegatorBase.Sub(commission)
	operatorTotal = operatorBase.Add(commission)
	return operatorTotal, delegatorPool
}

// distributeToDelegators splits a validator's delegator pool pro-rata by
// each delegator's stake, iterating in sorted order for determinism.
func distributeToDelegators(v *Validator, delegatorPool decimal.Decimal) map[string]decimal.Decimal {
	rewards := make(map[string]decimal.Decimal, len(v.Delegators))
	if v.DelegatedStake.IsZero() {
		return rewards
	}

	for _, delegator := range sortedKeys(v.Delegators) {
		stake := v.Delegators[delegator]
		fraction := stake.Div(v.DelegatedStake)
		rewards[delegator] = delegatorPool.Mul(fraction)
	}
	return rewards
}
