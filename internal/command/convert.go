package command

import (
	"fmt"

	"github.com/ggonzalez94/mfi-cli/internal/fixed"
	"github.com/ggonzalez94/mfi-cli/internal/marginfi"
)

// OperationalStateArg is the command-line spelling of a bank operational
// state. It implements pflag.Value.
type OperationalStateArg string

const (
	StatePaused      OperationalStateArg = "paused"
	StateOperational OperationalStateArg = "operational"
	StateReduceOnly  OperationalStateArg = "reduce-only"
)

func ParseOperationalState(input string) (OperationalStateArg, error) {
	switch arg := OperationalStateArg(input); arg {
	case StatePaused, StateOperational, StateReduceOnly:
		return arg, nil
	default:
		return "", fmt.Errorf("invalid operational state %q (want paused|operational|reduce-only)", input)
	}
}

// State maps the argument onto the program's enum.
func (a OperationalStateArg) State() marginfi.BankOperationalState {
	switch a {
	case StatePaused:
		return marginfi.BankPaused
	case StateReduceOnly:
		return marginfi.BankReduceOnly
	default:
		return marginfi.BankOperational
	}
}

func (a OperationalStateArg) String() string { return string(a) }

func (a *OperationalStateArg) Set(s string) error {
	v, err := ParseOperationalState(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a *OperationalStateArg) Type() string { return "paused|operational|reduce-only" }

// ConfigOpt converts the update flags into a partial bank config. Unset
// weights stay unset and the oracle is never changed from this command.
func (c BankUpdate) ConfigOpt() (marginfi.BankConfigOpt, error) {
	var opt marginfi.BankConfigOpt
	weights := []struct {
		name string
		src  *float32
		dst  **fixed.I80F48
	}{
		{"deposit_weight_init", c.DepositWeightInit, &opt.DepositWeightInit},
		{"deposit_weight_maint", c.DepositWeightMaint, &opt.DepositWeightMaint},
		{"liability_weight_init", c.LiabilityWeightInit, &opt.LiabilityWeightInit},
		{"liability_weight_maint", c.LiabilityWeightMaint, &opt.LiabilityWeightMaint},
	}
	for _, w := range weights {
		if w.src == nil {
			continue
		}
		v, err := fixed.FromFloat32(*w.src)
		if err != nil {
			return marginfi.BankConfigOpt{}, fmt.Errorf("%s: %w", w.name, err)
		}
		*w.dst = &v
	}
	if c.MaxCapacity != nil {
		v := *c.MaxCapacity
		opt.MaxCapacity = &v
	}
	if c.OperationalState != nil {
		v := c.OperationalState.State()
		opt.OperationalState = &v
	}
	return opt, nil
}

// BankConfig converts the add-bank arguments into the config a new bank is
// created with. New banks start operational.
func (c GroupAddBank) BankConfig() (marginfi.BankConfig, error) {
	cfg := marginfi.BankConfig{
		MaxCapacity:      c.MaxCapacity,
		PythOracle:       c.PythOracle,
		OperationalState: marginfi.BankOperational,
	}
	ir := &cfg.InterestRateConfig
	values := []struct {
		name string
		src  float64
		dst  *fixed.I80F48
	}{
		{"deposit_weight_init", c.DepositWeightInit, &cfg.DepositWeightInit},
		{"deposit_weight_maint", c.DepositWeightMaint, &cfg.DepositWeightMaint},
		{"liability_weight_init", c.LiabilityWeightInit, &cfg.LiabilityWeightInit},
		{"liability_weight_maint", c.LiabilityWeightMaint, &cfg.LiabilityWeightMaint},
		{"optimal_utilization_rate", c.OptimalUtilizationRate, &ir.OptimalUtilizationRate},
		{"plateau_interest_rate", c.PlateauInterestRate, &ir.PlateauInterestRate},
		{"max_interest_rate", c.MaxInterestRate, &ir.MaxInterestRate},
		{"insurance_fee_fixed_apr", c.InsuranceFeeFixedAPR, &ir.InsuranceFeeFixedAPR},
		{"insurance_ir_fee", c.InsuranceIRFee, &ir.InsuranceIRFee},
		{"protocol_fixed_fee_apr", c.ProtocolFixedFeeAPR, &ir.ProtocolFixedFeeAPR},
		{"protocol_ir_fee", c.ProtocolIRFee, &ir.ProtocolIRFee},
	}
	for _, v := range values {
		n, err := fixed.FromFloat64(v.src)
		if err != nil {
			return marginfi.BankConfig{}, fmt.Errorf("%s: %w", v.name, err)
		}
		*v.dst = n
	}
	return cfg, nil
}
