package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/ggonzalez94/mfi-cli/internal/command"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	"github.com/ggonzalez94/mfi-cli/internal/consent"
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/ggonzalez94/mfi-cli/internal/journal"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/ggonzalez94/mfi-cli/internal/processor"
	"github.com/ggonzalez94/mfi-cli/internal/profile"
	"github.com/ggonzalez94/mfi-cli/internal/schema"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type chainExec func(ctx context.Context, proc processor.Processor, p profile.Profile, cfg config.Config) (any, error)

// runChainCommand resolves the profile, asks for consent when cmd needs it,
// then hands off to the processor. State-changing commands are journaled
// whatever their outcome.
func (s *runtimeState) runChainCommand(cmd command.ChainCommand, exec chainExec) error {
	p, cfg, err := profile.Resolve(s.profiles.Loader(s.settings.Profile), s.overrides)
	if err != nil {
		return err
	}
	s.lastProfile, s.lastCluster = p.Name, string(cfg.Cluster)
	s.logger.Debug("resolved profile",
		zap.String("profile", p.Name),
		zap.String("cluster", string(cfg.Cluster)),
		zap.String("rpc_url", cfg.RPCURL),
		zap.Stringer("program_id", cfg.ProgramID),
		zap.Stringer("payer", cfg.Payer()),
	)

	mutating := command.RequiresConsent(cmd)
	s.logger.Debug("classified command", zap.String("command", cmd.Path()), zap.Bool("requires_consent", mutating))
	if mutating {
		gate := consent.NewGate(s.runner.stdin, s.runner.stderr, s.logger)
		if err := gate.Confirm(cmd, p); err != nil {
			s.record(cmd, p, cfg, nil, err)
			return err
		}
	}

	ctx, cancel := s.commandContext()
	defer cancel()
	data, err := exec(ctx, s.getProcessor(), p, cfg)
	if mutating {
		s.record(cmd, p, cfg, data, err)
	}
	if err != nil {
		return err
	}
	return s.emitSuccess(cmd.Path(), data)
}

func (s *runtimeState) record(cmd command.ChainCommand, p profile.Profile, cfg config.Config, data any, runErr error) {
	if !s.settings.JournalEnabled {
		return
	}
	entry := model.JournalEntry{
		Command: cmd.Path(),
		Profile: p.Name,
		Cluster: string(cfg.Cluster),
		Status:  string(journal.StatusSubmitted),
	}
	if tx, ok := data.(model.TxResult); ok {
		entry.Signature = tx.Signature
	}
	if runErr != nil {
		entry.Status = string(journal.StatusFailed)
		if clierr.Is(runErr, clierr.CodeAborted) {
			entry.Status = string(journal.StatusAborted)
		}
		entry.Error = runErr.Error()
	}
	j, err := s.openJournal()
	if err == nil {
		_, err = j.Record(entry)
	}
	if err != nil {
		s.logger.Warn("journal write failed", zap.String("command", cmd.Path()), zap.Error(err))
		s.warn("journal write failed: " + err.Error())
	}
}

func consentAnnotation(cmd command.ChainCommand) map[string]string {
	return map[string]string{schema.ConsentAnnotation: strconv.FormatBool(command.RequiresConsent(cmd))}
}

func (s *runtimeState) newGroupCommand() *cobra.Command {
	root := &cobra.Command{Use: "group", Short: "marginfi group commands"}
	s.overrides.BindFlags(root.PersistentFlags())

	getCmd := &cobra.Command{
		Use:         "get [marginfi_group]",
		Short:       "Show a group (defaults to the profile group)",
		Args:        cobra.MaximumNArgs(1),
		Annotations: consentAnnotation(command.GroupGet{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := optionalPubkeyArg(args, 0, "marginfi_group")
			if err != nil {
				return err
			}
			c := command.GroupGet{MarginfiGroup: group}
			return s.runChainCommand(c, func(ctx context.Context, proc processor.Processor, p profile.Profile, cfg config.Config) (any, error) {
				target := c.MarginfiGroup
				if target == nil {
					target = p.MarginfiGroup
				}
				if target == nil {
					return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("no group given and profile %q has none", p.Name))
				}
				return proc.GroupGet(ctx, cfg, *target)
			})
		},
	}

	getAllCmd := &cobra.Command{
		Use:         "get-all",
		Short:       "List every group of the program",
		Args:        cobra.NoArgs,
		Annotations: consentAnnotation(command.GroupGetAll{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runChainCommand(command.GroupGetAll{}, func(ctx context.Context, proc processor.Processor, _ profile.Profile, cfg config.Config) (any, error) {
				return proc.GroupGetAll(ctx, cfg)
			})
		},
	}

	var override bool
	createCmd := &cobra.Command{
		Use:         "create [admin]",
		Short:       "Create a group and record it in the profile",
		Args:        cobra.MaximumNArgs(1),
		Annotations: consentAnnotation(command.GroupCreate{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := optionalPubkeyArg(args, 0, "admin")
			if err != nil {
				return err
			}
			c := command.GroupCreate{Admin: admin, Override: override}
			return s.runChainCommand(c, func(ctx context.Context, proc processor.Processor, p profile.Profile, cfg config.Config) (any, error) {
				return proc.GroupCreate(ctx, cfg, p, c.Admin, c.Override)
			})
		},
	}
	createCmd.Flags().BoolVarP(&override, "override", "f", false, "Replace the group already recorded in the profile")

	updateCmd := &cobra.Command{
		Use:         "update [admin]",
		Short:       "Update the profile group's admin",
		Args:        cobra.MaximumNArgs(1),
		Annotations: consentAnnotation(command.GroupUpdate{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := optionalPubkeyArg(args, 0, "admin")
			if err != nil {
				return err
			}
			c := command.GroupUpdate{Admin: admin}
			return s.runChainCommand(c, func(ctx context.Context, proc processor.Processor, p profile.Profile, cfg config.Config) (any, error) {
				return proc.GroupConfigure(ctx, cfg, p, c.Admin)
			})
		},
	}

	addBankCmd := &cobra.Command{
		Use: "add-bank <bank_mint> <deposit_weight_init> <deposit_weight_maint> <liability_weight_init> <liability_weight_maint> " +
			"<max_capacity> <pyth_oracle> <optimal_utilization_rate> <plateau_interest_rate> <max_interest_rate> " +
			"<insurance_fee_fixed_apr> <insurance_ir_fee> <protocol_fixed_fee_apr> <protocol_ir_fee>",
		Short:       "Add a bank to the profile group",
		Args:        cobra.ExactArgs(14),
		Annotations: consentAnnotation(command.GroupAddBank{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseAddBankArgs(args)
			if err != nil {
				return err
			}
			bankCfg, err := c.BankConfig()
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "convert bank config", err)
			}
			return s.runChainCommand(c, func(ctx context.Context, proc processor.Processor, p profile.Profile, cfg config.Config) (any, error) {
				return proc.GroupAddBank(ctx, cfg, p, c.BankMint, bankCfg)
			})
		},
	}

	root.AddCommand(getCmd, getAllCmd, createCmd, updateCmd, addBankCmd)
	return root
}

func (s *runtimeState) newBankCommand() *cobra.Command {
	root := &cobra.Command{Use: "bank", Short: "marginfi bank commands"}
	s.overrides.BindFlags(root.PersistentFlags())

	getCmd := &cobra.Command{
		Use:         "get [bank]",
		Short:       "Show a bank",
		Args:        cobra.MaximumNArgs(1),
		Annotations: consentAnnotation(command.BankGet{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := optionalPubkeyArg(args, 0, "bank")
			if err != nil {
				return err
			}
			c := command.BankGet{Bank: bank}
			return s.runChainCommand(c, func(ctx context.Context, proc processor.Processor, _ profile.Profile, cfg config.Config) (any, error) {
				if c.Bank == nil {
					return nil, clierr.New(clierr.CodeUsage, "bank address required")
				}
				return proc.BankGet(ctx, cfg, *c.Bank)
			})
		},
	}

	getAllCmd := &cobra.Command{
		Use:         "get-all [marginfi_group]",
		Short:       "List banks, optionally of one group",
		Args:        cobra.MaximumNArgs(1),
		Annotations: consentAnnotation(command.BankGetAll{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := optionalPubkeyArg(args, 0, "marginfi_group")
			if err != nil {
				return err
			}
			c := command.BankGetAll{MarginfiGroup: group}
			return s.runChainCommand(c, func(ctx context.Context, proc processor.Processor, _ profile.Profile, cfg config.Config) (any, error) {
				return proc.BankGetAll(ctx, cfg, c.MarginfiGroup)
			})
		},
	}

	var (
		depositInit, depositMaint     float32
		liabilityInit, liabilityMaint float32
		maxCapacity                   uint64
		state                         command.OperationalStateArg
	)
	updateCmd := &cobra.Command{
		Use:         "update <bank_pk>",
		Short:       "Update bank weights, capacity or operational state",
		Args:        cobra.ExactArgs(1),
		Annotations: consentAnnotation(command.BankUpdate{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			bankPK, err := config.ParsePubkey(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "parse bank_pk", err)
			}
			c := command.BankUpdate{BankPK: bankPK}
			flags := cmd.Flags()
			if flags.Changed("deposit-weight-init") {
				c.DepositWeightInit = &depositInit
			}
			if flags.Changed("deposit-weight-maint") {
				c.DepositWeightMaint = &depositMaint
			}
			if flags.Changed("liability-weight-init") {
				c.LiabilityWeightInit = &liabilityInit
			}
			if flags.Changed("liability-weight-maint") {
				c.LiabilityWeightMaint = &liabilityMaint
			}
			if flags.Changed("max-capacity") {
				c.MaxCapacity = &maxCapacity
			}
			if flags.Changed("operational-state") {
				c.OperationalState = &state
			}
			opt, err := c.ConfigOpt()
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "convert bank update", err)
			}
			if opt.IsEmpty() {
				s.logger.Warn("bank update sets no fields", zap.Stringer("bank", c.BankPK))
				s.warn("no bank fields given; the update leaves the bank unchanged")
			}
			return s.runChainCommand(c, func(ctx context.Context, proc processor.Processor, p profile.Profile, cfg config.Config) (any, error) {
				return proc.BankConfigure(ctx, cfg, p, c.BankPK, opt)
			})
		},
	}
	updateCmd.Flags().Float32Var(&depositInit, "deposit-weight-init", 0, "Initial deposit weight")
	updateCmd.Flags().Float32Var(&depositMaint, "deposit-weight-maint", 0, "Maintenance deposit weight")
	updateCmd.Flags().Float32Var(&liabilityInit, "liability-weight-init", 0, "Initial liability weight")
	updateCmd.Flags().Float32Var(&liabilityMaint, "liability-weight-maint", 0, "Maintenance liability weight")
	updateCmd.Flags().Uint64Var(&maxCapacity, "max-capacity", 0, "Maximum deposit capacity in native units")
	updateCmd.Flags().Var(&state, "operational-state", "Operational state (paused|operational|reduce-only)")

	root.AddCommand(getCmd, getAllCmd, updateCmd)
	return root
}

func optionalPubkeyArg(args []string, idx int, name string) (*solana.PublicKey, error) {
	if len(args) <= idx {
		return nil, nil
	}
	pk, err := config.ParsePubkey(args[idx])
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "parse "+name, err)
	}
	return &pk, nil
}

func parseAddBankArgs(args []string) (command.GroupAddBank, error) {
	var c command.GroupAddBank
	var err error
	if c.BankMint, err = config.ParsePubkey(args[0]); err != nil {
		return c, clierr.Wrap(clierr.CodeUsage, "parse bank_mint", err)
	}
	if c.PythOracle, err = config.ParsePubkey(args[6]); err != nil {
		return c, clierr.Wrap(clierr.CodeUsage, "parse pyth_oracle", err)
	}
	if c.MaxCapacity, err = strconv.ParseUint(args[5], 10, 64); err != nil {
		return c, clierr.Wrap(clierr.CodeUsage, "parse max_capacity", err)
	}
	floats := []struct {
		idx  int
		name string
		dst  *float64
	}{
		{1, "deposit_weight_init", &c.DepositWeightInit},
		{2, "deposit_weight_maint", &c.DepositWeightMaint},
		{3, "liability_weight_init", &c.LiabilityWeightInit},
		{4, "liability_weight_maint", &c.LiabilityWeightMaint},
		{7, "optimal_utilization_rate", &c.OptimalUtilizationRate},
		{8, "plateau_interest_rate", &c.PlateauInterestRate},
		{9, "max_interest_rate", &c.MaxInterestRate},
		{10, "insurance_fee_fixed_apr", &c.InsuranceFeeFixedAPR},
		{11, "insurance_ir_fee", &c.InsuranceIRFee},
		{12, "protocol_fixed_fee_apr", &c.ProtocolFixedFeeAPR},
		{13, "protocol_ir_fee", &c.ProtocolIRFee},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(args[f.idx], 64)
		if err != nil {
			return c, clierr.Wrap(clierr.CodeUsage, "parse "+f.name, err)
		}
		*f.dst = v
	}
	return c, nil
}
