package marginfi

import (
	"github.com/gagliardetto/solana-go"
)

const (
	ixGroupInitialize  = "marginfi_group_initialize"
	ixGroupConfigure   = "marginfi_group_configure"
	ixAddBank          = "lending_pool_add_bank"
	ixConfigureBank    = "lending_pool_configure_bank"
	seedLiquidityAuth  = "liquidity_vault_auth"
	seedLiquidityVault = "liquidity_vault"
	seedInsuranceAuth  = "insurance_vault_auth"
	seedInsuranceVault = "insurance_vault"
	seedFeeAuth        = "fee_vault_auth"
	seedFeeVault       = "fee_vault"
)

// VaultAddresses are the program-derived vaults and authorities of a bank.
type VaultAddresses struct {
	LiquidityVaultAuthority solana.PublicKey
	LiquidityVault          solana.PublicKey
	InsuranceVaultAuthority solana.PublicKey
	InsuranceVault          solana.PublicKey
	FeeVaultAuthority       solana.PublicKey
	FeeVault                solana.PublicKey
}

// FindVaultAddresses derives the six PDAs lending_pool_add_bank expects.
func FindVaultAddresses(programID, bank solana.PublicKey) (VaultAddresses, error) {
	var out VaultAddresses
	targets := []struct {
		seed string
		dst  *solana.PublicKey
	}{
		{seedLiquidityAuth, &out.LiquidityVaultAuthority},
		{seedLiquidityVault, &out.LiquidityVault},
		{seedInsuranceAuth, &out.InsuranceVaultAuthority},
		{seedInsuranceVault, &out.InsuranceVault},
		{seedFeeAuth, &out.FeeVaultAuthority},
		{seedFeeVault, &out.FeeVault},
	}
	for _, t := range targets {
		addr, _, err := solana.FindProgramAddress([][]byte{[]byte(t.seed), bank.Bytes()}, programID)
		if err != nil {
			return VaultAddresses{}, err
		}
		*t.dst = addr
	}
	return out, nil
}

// NewGroupInitializeInstruction creates a group account owned by the program
// with admin as its administrator. Both group and admin sign.
func NewGroupInitializeInstruction(programID, group, admin solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeInstruction(ixGroupInitialize, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(group, true, true),
		solana.NewAccountMeta(admin, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

func NewGroupConfigureInstruction(programID, group, admin solana.PublicKey, cfg GroupConfig) (solana.Instruction, error) {
	data, err := encodeInstruction(ixGroupConfigure, cfg.MarshalWithEncoder)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(group, true, false),
		solana.NewAccountMeta(admin, false, true),
	}, data), nil
}

// AddBankAccounts names the non-derived accounts of lending_pool_add_bank.
type AddBankAccounts struct {
	Group    solana.PublicKey
	Admin    solana.PublicKey
	BankMint solana.PublicKey
	Bank     solana.PublicKey
}

func NewAddBankInstruction(programID solana.PublicKey, accts AddBankAccounts, cfg BankConfig) (solana.Instruction, error) {
	vaults, err := FindVaultAddresses(programID, accts.Bank)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(ixAddBank, cfg.MarshalWithEncoder)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(accts.Group, true, false),
		solana.NewAccountMeta(accts.Admin, true, true),
		solana.NewAccountMeta(accts.BankMint, false, false),
		solana.NewAccountMeta(accts.Bank, true, true),
		solana.NewAccountMeta(vaults.LiquidityVaultAuthority, false, false),
		solana.NewAccountMeta(vaults.LiquidityVault, true, false),
		solana.NewAccountMeta(vaults.InsuranceVaultAuthority, false, false),
		solana.NewAccountMeta(vaults.InsuranceVault, true, false),
		solana.NewAccountMeta(vaults.FeeVaultAuthority, false, false),
		solana.NewAccountMeta(vaults.FeeVault, true, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(cfg.PythOracle, false, false),
	}, data), nil
}

// NewConfigureBankInstruction applies a partial bank update. A new oracle is
// passed as a trailing read-only account so the program can validate it.
func NewConfigureBankInstruction(programID, group, admin, bank solana.PublicKey, opt BankConfigOpt) (solana.Instruction, error) {
	data, err := encodeInstruction(ixConfigureBank, opt.MarshalWithEncoder)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(group, false, false),
		solana.NewAccountMeta(admin, false, true),
		solana.NewAccountMeta(bank, true, false),
	}
	if opt.Oracle != nil {
		metas = append(metas, solana.NewAccountMeta(*opt.Oracle, false, false))
	}
	return solana.NewInstruction(programID, metas, data), nil
}
