package processor

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/ggonzalez94/mfi-cli/internal/marginfi"
	"github.com/ggonzalez94/mfi-cli/internal/profile"
)

type fakeClient struct {
	accounts    map[solana.PublicKey]*rpc.Account
	program     rpc.GetProgramAccountsResult
	lastFilters []rpc.RPCFilter
	sent        []*solana.Transaction
	sendErr     error
}

func (f *fakeClient) GetAccountInfoWithOpts(_ context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	acct, ok := f.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acct}, nil
}

func (f *fakeClient) GetProgramAccountsWithOpts(_ context.Context, _ solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	f.lastFilters = opts.Filters
	return f.program, nil
}

func (f *fakeClient) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{7}, LastValidBlockHeight: 10}}, nil
}

func (f *fakeClient) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

type fakeRecorder struct {
	name  string
	group solana.PublicKey
	calls int
}

func (r *fakeRecorder) SetGroup(name string, group solana.PublicKey) error {
	r.name, r.group = name, group
	r.calls++
	return nil
}

var programID = solana.MustPublicKeyFromBase58("MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA")

func newTestRPC(t *testing.T) (*RPC, *fakeClient, *fakeRecorder, config.Config) {
	t.Helper()
	signer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	client := &fakeClient{accounts: map[solana.PublicKey]*rpc.Account{}}
	recorder := &fakeRecorder{}
	r := NewRPC(recorder, WithDialer(func(string) Client { return client }))
	cfg := config.Config{
		Cluster:    config.ClusterDevnet,
		RPCURL:     "http://fake",
		ProgramID:  programID,
		Commitment: rpc.CommitmentConfirmed,
		Signer:     signer,
	}
	return r, client, recorder, cfg
}

func bankData(mint, group solana.PublicKey) []byte {
	data := append([]byte{}, marginfi.BankDiscriminator[:]...)
	data = append(data, mint.Bytes()...)
	data = append(data, 9)
	data = append(data, group.Bytes()...)
	return append(data, make([]byte, 64)...)
}

func programAccount(data []byte) *rpc.Account {
	return &rpc.Account{Owner: programID, Lamports: 1000, Data: rpc.DataBytesOrJSONFromBytes(data)}
}

func TestGroupGetDecodesAdmin(t *testing.T) {
	r, client, _, cfg := newTestRPC(t)
	group, admin := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	data := append(append([]byte{}, marginfi.GroupDiscriminator[:]...), admin.Bytes()...)
	client.accounts[group] = programAccount(data)

	got, err := r.GroupGet(context.Background(), cfg, group)
	if err != nil {
		t.Fatalf("GroupGet failed: %v", err)
	}
	if got.Admin != admin.String() || got.Address != group.String() || got.DataBytes != len(data) {
		t.Fatalf("unexpected group %+v", got)
	}
}

func TestGroupGetMissingAccountIsRemoteError(t *testing.T) {
	r, _, _, cfg := newTestRPC(t)
	_, err := r.GroupGet(context.Background(), cfg, solana.NewWallet().PublicKey())
	if !clierr.Is(err, clierr.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestGroupGetRejectsForeignOwner(t *testing.T) {
	r, client, _, cfg := newTestRPC(t)
	group := solana.NewWallet().PublicKey()
	acct := programAccount(append(marginfi.GroupDiscriminator[:], make([]byte, 32)...))
	acct.Owner = solana.SystemProgramID
	client.accounts[group] = acct
	if _, err := r.GroupGet(context.Background(), cfg, group); !clierr.Is(err, clierr.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestBankGetAllFiltersByGroup(t *testing.T) {
	r, client, _, cfg := newTestRPC(t)
	group, mint := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	client.program = rpc.GetProgramAccountsResult{
		{Pubkey: solana.NewWallet().PublicKey(), Account: programAccount(bankData(mint, group))},
		{Pubkey: solana.NewWallet().PublicKey(), Account: programAccount([]byte{1, 2, 3})},
	}

	banks, err := r.BankGetAll(context.Background(), cfg, &group)
	if err != nil {
		t.Fatalf("BankGetAll failed: %v", err)
	}
	if len(banks) != 1 || banks[0].Group != group.String() || banks[0].MintDecimals != 9 {
		t.Fatalf("unexpected banks %+v", banks)
	}
	if len(client.lastFilters) != 2 {
		t.Fatalf("expected discriminator and group filters, got %d", len(client.lastFilters))
	}
	f := client.lastFilters[1].Memcmp
	if f.Offset != marginfi.BankGroupOffset || !bytes.Equal(f.Bytes, group.Bytes()) {
		t.Fatalf("unexpected group filter %+v", f)
	}

	if _, err := r.BankGetAll(context.Background(), cfg, nil); err != nil {
		t.Fatalf("BankGetAll without group failed: %v", err)
	}
	if len(client.lastFilters) != 1 {
		t.Fatalf("expected only discriminator filter, got %d", len(client.lastFilters))
	}
}

func TestGroupCreateRefusesExistingGroupWithoutOverride(t *testing.T) {
	r, client, recorder, cfg := newTestRPC(t)
	existing := solana.NewWallet().PublicKey()
	p := profile.Profile{Name: "alice", MarginfiGroup: &existing}

	if _, err := r.GroupCreate(context.Background(), cfg, p, nil, false); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if len(client.sent) != 0 || recorder.calls != 0 {
		t.Fatalf("nothing should be sent or recorded")
	}

	res, err := r.GroupCreate(context.Background(), cfg, p, nil, true)
	if err != nil {
		t.Fatalf("GroupCreate with override failed: %v", err)
	}
	if recorder.calls != 1 || recorder.name != "alice" || recorder.group.String() != res.Accounts["marginfi_group"] {
		t.Fatalf("group not recorded: %+v %+v", recorder, res)
	}
	tx := client.sent[0]
	if len(tx.Signatures) != 2 || len(tx.Message.Instructions) != 1 {
		t.Fatalf("expected payer and group signatures on one instruction, got %d sigs %d ixs", len(tx.Signatures), len(tx.Message.Instructions))
	}
	if !tx.Message.AccountKeys[0].Equals(cfg.Payer()) {
		t.Fatalf("payer must be first account")
	}
}

func TestGroupCreateHandsOverAdmin(t *testing.T) {
	r, client, _, cfg := newTestRPC(t)
	admin := solana.NewWallet().PublicKey()
	if _, err := r.GroupCreate(context.Background(), cfg, profile.Profile{Name: "alice"}, &admin, false); err != nil {
		t.Fatalf("GroupCreate failed: %v", err)
	}
	if n := len(client.sent[0].Message.Instructions); n != 2 {
		t.Fatalf("expected initialize plus configure, got %d instructions", n)
	}
}

func TestGroupConfigureRequiresProfileGroup(t *testing.T) {
	r, _, _, cfg := newTestRPC(t)
	if _, err := r.GroupConfigure(context.Background(), cfg, profile.Profile{Name: "alice"}, nil); !clierr.Is(err, clierr.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestGroupAddBankSignsWithFreshBank(t *testing.T) {
	r, client, _, cfg := newTestRPC(t)
	group := solana.NewWallet().PublicKey()
	res, err := r.GroupAddBank(context.Background(), cfg, profile.Profile{Name: "alice", MarginfiGroup: &group},
		solana.NewWallet().PublicKey(), marginfi.BankConfig{PythOracle: solana.NewWallet().PublicKey()})
	if err != nil {
		t.Fatalf("GroupAddBank failed: %v", err)
	}
	if res.Accounts["bank"] == "" || len(client.sent[0].Signatures) != 2 {
		t.Fatalf("expected bank keypair signature, got %+v", res)
	}
}

func TestBankConfigureReadsGroupFromBank(t *testing.T) {
	r, client, _, cfg := newTestRPC(t)
	bank, group := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	client.accounts[bank] = programAccount(bankData(solana.NewWallet().PublicKey(), group))
	capacity := uint64(1000)
	opt := marginfi.BankConfigOpt{MaxCapacity: &capacity}

	res, err := r.BankConfigure(context.Background(), cfg, profile.Profile{Name: "alice"}, bank, opt)
	if err != nil {
		t.Fatalf("BankConfigure failed: %v", err)
	}
	if res.Accounts["marginfi_group"] != group.String() {
		t.Fatalf("expected group from bank account, got %+v", res.Accounts)
	}

	want, err := marginfi.NewConfigureBankInstruction(programID, group, cfg.Payer(), bank, opt)
	if err != nil {
		t.Fatalf("build expected instruction: %v", err)
	}
	wantData, _ := want.Data()
	got := client.sent[0].Message.Instructions[0].Data
	if !bytes.Equal(got, wantData) {
		t.Fatalf("instruction data mismatch\n got %x\nwant %x", []byte(got), wantData)
	}
}

func TestSendMapsRemoteRejection(t *testing.T) {
	r, client, _, cfg := newTestRPC(t)
	group := solana.NewWallet().PublicKey()
	client.sendErr = &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed"}
	_, err := r.GroupConfigure(context.Background(), cfg, profile.Profile{Name: "alice", MarginfiGroup: &group}, nil)
	if !clierr.Is(err, clierr.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}

	client.sendErr = errors.New("dial tcp: connection refused")
	_, err = r.GroupConfigure(context.Background(), cfg, profile.Profile{Name: "alice", MarginfiGroup: &group}, nil)
	if !clierr.Is(err, clierr.CodeUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
