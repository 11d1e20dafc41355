package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/ggonzalez94/mfi-cli/internal/marginfi"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/ggonzalez94/mfi-cli/internal/profile"
	"go.uber.org/zap"
)

// Client is the subset of *rpc.Client the processor uses.
type Client interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, publicKey solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

type RPC struct {
	dial   func(endpoint string) Client
	groups GroupRecorder
	logger *zap.Logger
}

type Option func(*RPC)

// WithDialer replaces how an RPC client is created for an endpoint.
func WithDialer(dial func(endpoint string) Client) Option {
	return func(r *RPC) { r.dial = dial }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *RPC) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRPC(groups GroupRecorder, opts ...Option) *RPC {
	r := &RPC{
		dial:   func(endpoint string) Client { return rpc.New(endpoint) },
		groups: groups,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RPC) GroupGet(ctx context.Context, cfg config.Config, group solana.PublicKey) (model.Group, error) {
	acct, err := r.fetchAccount(ctx, cfg, group)
	if err != nil {
		return model.Group{}, err
	}
	decoded, err := marginfi.DecodeGroup(acct.Data.GetBinary())
	if err != nil {
		return model.Group{}, clierr.Wrap(clierr.CodeRemote, fmt.Sprintf("decode group %s", group), err)
	}
	return groupView(group, acct, decoded), nil
}

func (r *RPC) GroupGetAll(ctx context.Context, cfg config.Config) ([]model.Group, error) {
	keyed, err := r.programAccounts(ctx, cfg, marginfi.GroupDiscriminator, nil)
	if err != nil {
		return nil, err
	}
	groups := make([]model.Group, 0, len(keyed))
	for _, ka := range keyed {
		decoded, err := marginfi.DecodeGroup(ka.Account.Data.GetBinary())
		if err != nil {
			r.logger.Debug("skipping undecodable group", zap.Stringer("address", ka.Pubkey), zap.Error(err))
			continue
		}
		groups = append(groups, groupView(ka.Pubkey, ka.Account, decoded))
	}
	return groups, nil
}

// GroupCreate initializes a fresh group account administered by the payer
// and records it in the profile. A different admin is handed over in the
// same transaction.
func (r *RPC) GroupCreate(ctx context.Context, cfg config.Config, p profile.Profile, admin *solana.PublicKey, override bool) (model.TxResult, error) {
	if p.MarginfiGroup != nil && !override {
		return model.TxResult{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("profile %q already uses group %s; pass --override to replace it", p.Name, p.MarginfiGroup))
	}
	groupKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return model.TxResult{}, clierr.Wrap(clierr.CodeInternal, "generate group keypair", err)
	}
	group := groupKey.PublicKey()
	payer := cfg.Payer()

	ix, err := marginfi.NewGroupInitializeInstruction(cfg.ProgramID, group, payer)
	if err != nil {
		return model.TxResult{}, clierr.Wrap(clierr.CodeInternal, "build group initialize instruction", err)
	}
	instructions := []solana.Instruction{ix}
	if admin != nil && !admin.Equals(payer) {
		handover, err := marginfi.NewGroupConfigureInstruction(cfg.ProgramID, group, payer, marginfi.GroupConfig{Admin: admin})
		if err != nil {
			return model.TxResult{}, clierr.Wrap(clierr.CodeInternal, "build group configure instruction", err)
		}
		instructions = append(instructions, handover)
	}

	sig, err := r.send(ctx, cfg, instructions, groupKey)
	if err != nil {
		return model.TxResult{}, err
	}
	if err := r.groups.SetGroup(p.Name, group); err != nil {
		return model.TxResult{}, clierr.Wrap(clierr.CodeConfig, fmt.Sprintf("group %s created but not recorded in profile %q", group, p.Name), err)
	}
	return txResult(cfg, sig, map[string]string{"marginfi_group": group.String()}), nil
}

func (r *RPC) GroupConfigure(ctx context.Context, cfg config.Config, p profile.Profile, admin *solana.PublicKey) (model.TxResult, error) {
	group, err := profileGroup(p)
	if err != nil {
		return model.TxResult{}, err
	}
	ix, err := marginfi.NewGroupConfigureInstruction(cfg.ProgramID, group, cfg.Payer(), marginfi.GroupConfig{Admin: admin})
	if err != nil {
		return model.TxResult{}, clierr.Wrap(clierr.CodeInternal, "build group configure instruction", err)
	}
	sig, err := r.send(ctx, cfg, []solana.Instruction{ix})
	if err != nil {
		return model.TxResult{}, err
	}
	return txResult(cfg, sig, map[string]string{"marginfi_group": group.String()}), nil
}

func (r *RPC) GroupAddBank(ctx context.Context, cfg config.Config, p profile.Profile, mint solana.PublicKey, bankCfg marginfi.BankConfig) (model.TxResult, error) {
	group, err := profileGroup(p)
	if err != nil {
		return model.TxResult{}, err
	}
	bankKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return model.TxResult{}, clierr.Wrap(clierr.CodeInternal, "generate bank keypair", err)
	}
	bank := bankKey.PublicKey()
	ix, err := marginfi.NewAddBankInstruction(cfg.ProgramID, marginfi.AddBankAccounts{
		Group:    group,
		Admin:    cfg.Payer(),
		BankMint: mint,
		Bank:     bank,
	}, bankCfg)
	if err != nil {
		return model.TxResult{}, clierr.Wrap(clierr.CodeInternal, "build add bank instruction", err)
	}
	sig, err := r.send(ctx, cfg, []solana.Instruction{ix}, bankKey)
	if err != nil {
		return model.TxResult{}, err
	}
	return txResult(cfg, sig, map[string]string{
		"marginfi_group": group.String(),
		"bank":           bank.String(),
		"bank_mint":      mint.String(),
	}), nil
}

func (r *RPC) BankGet(ctx context.Context, cfg config.Config, bank solana.PublicKey) (model.Bank, error) {
	acct, err := r.fetchAccount(ctx, cfg, bank)
	if err != nil {
		return model.Bank{}, err
	}
	decoded, err := marginfi.DecodeBank(acct.Data.GetBinary())
	if err != nil {
		return model.Bank{}, clierr.Wrap(clierr.CodeRemote, fmt.Sprintf("decode bank %s", bank), err)
	}
	return bankView(bank, acct, decoded), nil
}

// BankGetAll lists the banks of group, or every bank of the program when
// group is nil.
func (r *RPC) BankGetAll(ctx context.Context, cfg config.Config, group *solana.PublicKey) ([]model.Bank, error) {
	var extra []rpc.RPCFilter
	if group != nil {
		extra = append(extra, rpc.RPCFilter{Memcmp: &rpc.RPCFilterMemcmp{
			Offset: marginfi.BankGroupOffset,
			Bytes:  solana.Base58(group.Bytes()),
		}})
	}
	keyed, err := r.programAccounts(ctx, cfg, marginfi.BankDiscriminator, extra)
	if err != nil {
		return nil, err
	}
	banks := make([]model.Bank, 0, len(keyed))
	for _, ka := range keyed {
		decoded, err := marginfi.DecodeBank(ka.Account.Data.GetBinary())
		if err != nil {
			r.logger.Debug("skipping undecodable bank", zap.Stringer("address", ka.Pubkey), zap.Error(err))
			continue
		}
		banks = append(banks, bankView(ka.Pubkey, ka.Account, decoded))
	}
	return banks, nil
}

// BankConfigure applies a partial update. The group comes from the profile,
// or from the bank account itself when the profile has none.
func (r *RPC) BankConfigure(ctx context.Context, cfg config.Config, p profile.Profile, bank solana.PublicKey, opt marginfi.BankConfigOpt) (model.TxResult, error) {
	var group solana.PublicKey
	if p.MarginfiGroup != nil {
		group = *p.MarginfiGroup
	} else {
		acct, err := r.fetchAccount(ctx, cfg, bank)
		if err != nil {
			return model.TxResult{}, err
		}
		decoded, err := marginfi.DecodeBank(acct.Data.GetBinary())
		if err != nil {
			return model.TxResult{}, clierr.Wrap(clierr.CodeRemote, fmt.Sprintf("decode bank %s", bank), err)
		}
		group = decoded.Group
	}
	ix, err := marginfi.NewConfigureBankInstruction(cfg.ProgramID, group, cfg.Payer(), bank, opt)
	if err != nil {
		return model.TxResult{}, clierr.Wrap(clierr.CodeInternal, "build configure bank instruction", err)
	}
	sig, err := r.send(ctx, cfg, []solana.Instruction{ix})
	if err != nil {
		return model.TxResult{}, err
	}
	return txResult(cfg, sig, map[string]string{
		"marginfi_group": group.String(),
		"bank":           bank.String(),
	}), nil
}

func (r *RPC) fetchAccount(ctx context.Context, cfg config.Config, address solana.PublicKey) (*rpc.Account, error) {
	r.logger.Debug("getAccountInfo", zap.Stringer("address", address), zap.String("rpc_url", cfg.RPCURL))
	res, err := r.dial(cfg.RPCURL).GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: cfg.Commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, clierr.New(clierr.CodeRemote, fmt.Sprintf("account %s not found", address))
		}
		return nil, wrapRPCError("get account "+address.String(), err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, clierr.New(clierr.CodeRemote, fmt.Sprintf("account %s not found", address))
	}
	if !res.Value.Owner.Equals(cfg.ProgramID) {
		return nil, clierr.New(clierr.CodeRemote, fmt.Sprintf("account %s is owned by %s, not program %s", address, res.Value.Owner, cfg.ProgramID))
	}
	return res.Value, nil
}

func (r *RPC) programAccounts(ctx context.Context, cfg config.Config, disc [8]byte, extra []rpc.RPCFilter) (rpc.GetProgramAccountsResult, error) {
	filters := append([]rpc.RPCFilter{{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(disc[:])}}}, extra...)
	r.logger.Debug("getProgramAccounts", zap.Stringer("program", cfg.ProgramID), zap.Int("filters", len(filters)))
	res, err := r.dial(cfg.RPCURL).GetProgramAccountsWithOpts(ctx, cfg.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: cfg.Commitment,
		Encoding:   solana.EncodingBase64,
		Filters:    filters,
	})
	if err != nil {
		return nil, wrapRPCError("get program accounts", err)
	}
	out := make(rpc.GetProgramAccountsResult, 0, len(res))
	for _, ka := range res {
		if ka == nil || ka.Account == nil || ka.Account.Data == nil {
			continue
		}
		out = append(out, ka)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pubkey.String() < out[j].Pubkey.String() })
	return out, nil
}

// send signs instructions with the config signer plus any extra keypairs
// and submits them with preflight at the config commitment.
func (r *RPC) send(ctx context.Context, cfg config.Config, instructions []solana.Instruction, extra ...solana.PrivateKey) (solana.Signature, error) {
	client := r.dial(cfg.RPCURL)
	latest, err := client.GetLatestBlockhash(ctx, cfg.Commitment)
	if err != nil {
		return solana.Signature{}, wrapRPCError("get latest blockhash", err)
	}
	if latest == nil || latest.Value == nil {
		return solana.Signature{}, clierr.New(clierr.CodeRemote, "get latest blockhash: empty response")
	}
	tx, err := solana.NewTransaction(instructions, latest.Value.Blockhash, solana.TransactionPayer(cfg.Payer()))
	if err != nil {
		return solana.Signature{}, clierr.Wrap(clierr.CodeInternal, "build transaction", err)
	}

	keys := map[solana.PublicKey]solana.PrivateKey{cfg.Payer(): cfg.Signer}
	for _, k := range extra {
		keys[k.PublicKey()] = k
	}
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if k, ok := keys[pub]; ok {
			return &k
		}
		return nil
	}); err != nil {
		return solana.Signature{}, clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}

	r.logger.Debug("sendTransaction", zap.Int("instructions", len(instructions)), zap.String("commitment", string(cfg.Commitment)))
	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, wrapRPCError("send transaction", err)
	}
	return sig, nil
}

// wrapRPCError separates node-side rejections from transport failures.
func wrapRPCError(op string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return clierr.Wrap(clierr.CodeRemote, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return clierr.Wrap(clierr.CodeUnavailable, op+": timed out", err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, op, err)
}

func profileGroup(p profile.Profile) (solana.PublicKey, error) {
	if p.MarginfiGroup == nil {
		return solana.PublicKey{}, clierr.New(clierr.CodeConfig, fmt.Sprintf("profile %q has no marginfi group; run `group create` or `profile update --group`", p.Name))
	}
	return *p.MarginfiGroup, nil
}

func txResult(cfg config.Config, sig solana.Signature, accounts map[string]string) model.TxResult {
	return model.TxResult{Signature: sig.String(), Cluster: string(cfg.Cluster), Accounts: accounts}
}

func groupView(address solana.PublicKey, acct *rpc.Account, g marginfi.GroupAccount) model.Group {
	return model.Group{
		Address:   address.String(),
		Admin:     g.Admin.String(),
		Owner:     acct.Owner.String(),
		Lamports:  acct.Lamports,
		DataBytes: len(acct.Data.GetBinary()),
	}
}

func bankView(address solana.PublicKey, acct *rpc.Account, b marginfi.BankAccount) model.Bank {
	return model.Bank{
		Address:      address.String(),
		Group:        b.Group.String(),
		Mint:         b.Mint.String(),
		MintDecimals: b.MintDecimals,
		Owner:        acct.Owner.String(),
		Lamports:     acct.Lamports,
		DataBytes:    len(acct.Data.GetBinary()),
	}
}
