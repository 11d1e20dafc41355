// Package command defines the closed set of commands the CLI can run and
// the rule deciding which of them need operator consent.
package command

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/ggonzalez94/mfi-cli/internal/model"
)

// Command is any runnable operator command.
type Command interface {
	// Path is the command path below the root, e.g. "bank update".
	Path() string
	// Args renders the command arguments in declaration order.
	Args() []model.Field
}

// ChainCommand is a Group or Bank command that talks to the program.
// Only types in this package implement it.
type ChainCommand interface {
	Command
	chainCommand()
}

// RequiresConsent reports whether cmd must pass the consent gate before it
// is dispatched. Reads are exempt; everything else, including variants this
// switch does not know, needs consent.
func RequiresConsent(cmd ChainCommand) bool {
	switch cmd.(type) {
	case GroupGet, GroupGetAll, BankGet, BankGetAll:
		return false
	default:
		return true
	}
}

type GroupGet struct {
	MarginfiGroup *solana.PublicKey
}

type GroupGetAll struct{}

type GroupCreate struct {
	Admin    *solana.PublicKey
	Override bool
}

type GroupUpdate struct {
	Admin *solana.PublicKey
}

type GroupAddBank struct {
	BankMint               solana.PublicKey
	DepositWeightInit      float64
	DepositWeightMaint     float64
	LiabilityWeightInit    float64
	LiabilityWeightMaint   float64
	MaxCapacity            uint64
	PythOracle             solana.PublicKey
	OptimalUtilizationRate float64
	PlateauInterestRate    float64
	MaxInterestRate        float64
	InsuranceFeeFixedAPR   float64
	InsuranceIRFee         float64
	ProtocolFixedFeeAPR    float64
	ProtocolIRFee          float64
}

type BankGet struct {
	Bank *solana.PublicKey
}

type BankGetAll struct {
	MarginfiGroup *solana.PublicKey
}

type BankUpdate struct {
	BankPK               solana.PublicKey
	DepositWeightInit    *float32
	DepositWeightMaint   *float32
	LiabilityWeightInit  *float32
	LiabilityWeightMaint *float32
	MaxCapacity          *uint64
	OperationalState     *OperationalStateArg
}

func (GroupGet) chainCommand()     {}
func (GroupGetAll) chainCommand()  {}
func (GroupCreate) chainCommand()  {}
func (GroupUpdate) chainCommand()  {}
func (GroupAddBank) chainCommand() {}
func (BankGet) chainCommand()      {}
func (BankGetAll) chainCommand()   {}
func (BankUpdate) chainCommand()   {}

func (GroupGet) Path() string     { return "group get" }
func (GroupGetAll) Path() string  { return "group get-all" }
func (GroupCreate) Path() string  { return "group create" }
func (GroupUpdate) Path() string  { return "group update" }
func (GroupAddBank) Path() string { return "group add-bank" }
func (BankGet) Path() string      { return "bank get" }
func (BankGetAll) Path() string   { return "bank get-all" }
func (BankUpdate) Path() string   { return "bank update" }

func (c GroupGet) Args() []model.Field {
	return []model.Field{{Name: "marginfi_group", Value: optKey(c.MarginfiGroup)}}
}

func (GroupGetAll) Args() []model.Field { return []model.Field{} }

func (c GroupCreate) Args() []model.Field {
	return []model.Field{
		{Name: "admin", Value: optKey(c.Admin)},
		{Name: "override", Value: strconv.FormatBool(c.Override)},
	}
}

func (c GroupUpdate) Args() []model.Field {
	return []model.Field{{Name: "admin", Value: optKey(c.Admin)}}
}

func (c GroupAddBank) Args() []model.Field {
	return []model.Field{
		{Name: "bank_mint", Value: c.BankMint.String()},
		{Name: "deposit_weight_init", Value: f64(c.DepositWeightInit)},
		{Name: "deposit_weight_maint", Value: f64(c.DepositWeightMaint)},
		{Name: "liability_weight_init", Value: f64(c.LiabilityWeightInit)},
		{Name: "liability_weight_maint", Value: f64(c.LiabilityWeightMaint)},
		{Name: "max_capacity", Value: strconv.FormatUint(c.MaxCapacity, 10)},
		{Name: "pyth_oracle", Value: c.PythOracle.String()},
		{Name: "optimal_utilization_rate", Value: f64(c.OptimalUtilizationRate)},
		{Name: "plateau_interest_rate", Value: f64(c.PlateauInterestRate)},
		{Name: "max_interest_rate", Value: f64(c.MaxInterestRate)},
		{Name: "insurance_fee_fixed_apr", Value: f64(c.InsuranceFeeFixedAPR)},
		{Name: "insurance_ir_fee", Value: f64(c.InsuranceIRFee)},
		{Name: "protocol_fixed_fee_apr", Value: f64(c.ProtocolFixedFeeAPR)},
		{Name: "protocol_ir_fee", Value: f64(c.ProtocolIRFee)},
	}
}

func (c BankGet) Args() []model.Field {
	return []model.Field{{Name: "bank", Value: optKey(c.Bank)}}
}

func (c BankGetAll) Args() []model.Field {
	return []model.Field{{Name: "marginfi_group", Value: optKey(c.MarginfiGroup)}}
}

func (c BankUpdate) Args() []model.Field {
	state := none
	if c.OperationalState != nil {
		state = c.OperationalState.String()
	}
	capacity := none
	if c.MaxCapacity != nil {
		capacity = strconv.FormatUint(*c.MaxCapacity, 10)
	}
	return []model.Field{
		{Name: "bank_pk", Value: c.BankPK.String()},
		{Name: "deposit_weight_init", Value: optF32(c.DepositWeightInit)},
		{Name: "deposit_weight_maint", Value: optF32(c.DepositWeightMaint)},
		{Name: "liability_weight_init", Value: optF32(c.LiabilityWeightInit)},
		{Name: "liability_weight_maint", Value: optF32(c.LiabilityWeightMaint)},
		{Name: "max_capacity", Value: capacity},
		{Name: "operational_state", Value: state},
	}
}

const none = "none"

func optKey(pk *solana.PublicKey) string {
	if pk == nil {
		return none
	}
	return pk.String()
}

func f64(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func optF32(v *float32) string {
	if v == nil {
		return none
	}
	return strconv.FormatFloat(float64(*v), 'g', -1, 32)
}
