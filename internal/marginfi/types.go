// Package marginfi holds the marginfi program's admin types, their borsh
// encoding, instruction builders and account header decoding.
package marginfi

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/ggonzalez94/mfi-cli/internal/fixed"
)

// BankOperationalState is the administrative lifecycle state of a bank.
type BankOperationalState uint8

const (
	BankPaused BankOperationalState = iota
	BankOperational
	BankReduceOnly
)

func (s BankOperationalState) String() string {
	switch s {
	case BankPaused:
		return "Paused"
	case BankOperational:
		return "Operational"
	case BankReduceOnly:
		return "ReduceOnly"
	default:
		return fmt.Sprintf("BankOperationalState(%d)", uint8(s))
	}
}

type InterestRateConfig struct {
	OptimalUtilizationRate fixed.I80F48
	PlateauInterestRate    fixed.I80F48
	MaxInterestRate        fixed.I80F48
	InsuranceFeeFixedAPR   fixed.I80F48
	InsuranceIRFee         fixed.I80F48
	ProtocolFixedFeeAPR    fixed.I80F48
	ProtocolIRFee          fixed.I80F48
}

// BankConfig is the full configuration a new bank is created with.
type BankConfig struct {
	DepositWeightInit    fixed.I80F48
	DepositWeightMaint   fixed.I80F48
	LiabilityWeightInit  fixed.I80F48
	LiabilityWeightMaint fixed.I80F48
	MaxCapacity          uint64
	PythOracle           solana.PublicKey
	InterestRateConfig   InterestRateConfig
	OperationalState     BankOperationalState
}

// BankConfigOpt is a partial bank update. Nil fields are left untouched by
// the program.
type BankConfigOpt struct {
	DepositWeightInit    *fixed.I80F48
	DepositWeightMaint   *fixed.I80F48
	LiabilityWeightInit  *fixed.I80F48
	LiabilityWeightMaint *fixed.I80F48
	MaxCapacity          *uint64
	OperationalState     *BankOperationalState
	Oracle               *solana.PublicKey
}

// IsEmpty reports whether the update changes nothing.
func (o BankConfigOpt) IsEmpty() bool {
	return o.DepositWeightInit == nil &&
		o.DepositWeightMaint == nil &&
		o.LiabilityWeightInit == nil &&
		o.LiabilityWeightMaint == nil &&
		o.MaxCapacity == nil &&
		o.OperationalState == nil &&
		o.Oracle == nil
}

// GroupConfig updates group-level settings; nil keeps the current admin.
type GroupConfig struct {
	Admin *solana.PublicKey
}
