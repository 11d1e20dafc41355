package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	"github.com/ggonzalez94/mfi-cli/internal/marginfi"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/ggonzalez94/mfi-cli/internal/processor"
	"github.com/ggonzalez94/mfi-cli/internal/profile"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	calls   []string
	cfg     config.Config
	group   solana.PublicKey
	bankOpt marginfi.BankConfigOpt
	bankCfg marginfi.BankConfig
	err     error
}

func (f *fakeProcessor) called(name string, cfg config.Config) {
	f.calls = append(f.calls, name)
	f.cfg = cfg
}

func (f *fakeProcessor) GroupGet(_ context.Context, cfg config.Config, group solana.PublicKey) (model.Group, error) {
	f.called("GroupGet", cfg)
	f.group = group
	return model.Group{Address: group.String()}, f.err
}

func (f *fakeProcessor) GroupGetAll(_ context.Context, cfg config.Config) ([]model.Group, error) {
	f.called("GroupGetAll", cfg)
	return []model.Group{}, f.err
}

func (f *fakeProcessor) GroupCreate(_ context.Context, cfg config.Config, _ profile.Profile, _ *solana.PublicKey, _ bool) (model.TxResult, error) {
	f.called("GroupCreate", cfg)
	return model.TxResult{Signature: "sig-create"}, f.err
}

func (f *fakeProcessor) GroupConfigure(_ context.Context, cfg config.Config, _ profile.Profile, _ *solana.PublicKey) (model.TxResult, error) {
	f.called("GroupConfigure", cfg)
	return model.TxResult{Signature: "sig-configure"}, f.err
}

func (f *fakeProcessor) GroupAddBank(_ context.Context, cfg config.Config, _ profile.Profile, _ solana.PublicKey, bank marginfi.BankConfig) (model.TxResult, error) {
	f.called("GroupAddBank", cfg)
	f.bankCfg = bank
	return model.TxResult{Signature: "sig-add-bank"}, f.err
}

func (f *fakeProcessor) BankGet(_ context.Context, cfg config.Config, bank solana.PublicKey) (model.Bank, error) {
	f.called("BankGet", cfg)
	return model.Bank{Address: bank.String()}, f.err
}

func (f *fakeProcessor) BankGetAll(_ context.Context, cfg config.Config, _ *solana.PublicKey) ([]model.Bank, error) {
	f.called("BankGetAll", cfg)
	return []model.Bank{}, f.err
}

func (f *fakeProcessor) BankConfigure(_ context.Context, cfg config.Config, _ profile.Profile, _ solana.PublicKey, opt marginfi.BankConfigOpt) (model.TxResult, error) {
	f.called("BankConfigure", cfg)
	f.bankOpt = opt
	return model.TxResult{Signature: "sig-bank"}, f.err
}

// countingReader records whether the runner touched stdin.
type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

type harness struct {
	t      *testing.T
	proc   *fakeProcessor
	dir    string
	stdin  *countingReader
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	for _, k := range []string{"MFI_OUTPUT", "MFI_TIMEOUT", "MFI_PROFILE", "MFI_LOG_LEVEL", "MFI_PROFILES_DIR", "MFI_JOURNAL_PATH", "MFI_JOURNAL_LOCK_PATH", "MFI_NO_JOURNAL"} {
		t.Setenv(k, "")
	}
	return &harness{t: t, proc: &fakeProcessor{}, dir: dir}
}

func (h *harness) run(stdin string, args ...string) int {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	h.stdin = &countingReader{r: strings.NewReader(stdin)}
	r := NewRunnerWithIO(h.stdin, &h.stdout, &h.stderr)
	r.newProcessor = func(processor.GroupRecorder, *zap.Logger) processor.Processor { return h.proc }
	return r.Run(args)
}

func (h *harness) writeKeypair() string {
	h.t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		h.t.Fatalf("generate key: %v", err)
	}
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	buf, _ := json.Marshal(ints)
	path := filepath.Join(h.dir, "id.json")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		h.t.Fatalf("write key: %v", err)
	}
	return path
}

func (h *harness) createProfile(extra ...string) {
	h.t.Helper()
	args := append([]string{
		"profile", "create",
		"--name", "alice",
		"--cluster", "devnet",
		"--keypair-path", h.writeKeypair(),
		"--rpc-url", "http://profile.rpc",
		"--program-id", "MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA",
	}, extra...)
	if code := h.run("", args...); code != 0 {
		h.t.Fatalf("profile create exit %d stderr=%s", code, h.stderr.String())
	}
}

func decodeEnvelope(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v output=%s", err, buf.String())
	}
	return env
}

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("mfi bank update"); got != "bank update" {
		t.Fatalf("unexpected trim result: %s", got)
	}
}

func TestProfileLifecycle(t *testing.T) {
	h := newHarness(t)
	h.createProfile()

	if code := h.run("", "profile", "show", "--json", "--results-only"); code != 0 {
		t.Fatalf("profile show exit %d stderr=%s", code, h.stderr.String())
	}
	var shown model.Profile
	if err := json.Unmarshal(h.stdout.Bytes(), &shown); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if shown.Name != "alice" || !shown.Active || shown.Cluster != "devnet" {
		t.Fatalf("unexpected profile: %+v", shown)
	}

	group := solana.NewWallet().PublicKey()
	if code := h.run("", "profile", "update", "--name", "alice", "--group", group.String(), "--json", "--results-only"); code != 0 {
		t.Fatalf("profile update exit %d stderr=%s", code, h.stderr.String())
	}
	var updated model.Profile
	if err := json.Unmarshal(h.stdout.Bytes(), &updated); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if updated.MarginfiGroup != group.String() || updated.RPCURL != "http://profile.rpc" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if h.stdin.reads != 0 || len(h.proc.calls) != 0 {
		t.Fatalf("profile commands must not prompt or dispatch")
	}
}

func TestReadCommandsNeverReadStdin(t *testing.T) {
	h := newHarness(t)
	group := solana.NewWallet().PublicKey()
	h.createProfile("--group", group.String())

	if code := h.run("", "group", "get"); code != 0 {
		t.Fatalf("group get exit %d stderr=%s", code, h.stderr.String())
	}
	if h.stdin.reads != 0 {
		t.Fatalf("group get read stdin")
	}
	if !h.proc.group.Equals(group) {
		t.Fatalf("expected profile group default, got %s", h.proc.group)
	}

	if code := h.run("", "group", "get-all"); code != 0 {
		t.Fatalf("group get-all exit %d stderr=%s", code, h.stderr.String())
	}
	if h.stdin.reads != 0 {
		t.Fatalf("group get-all read stdin")
	}

	if code := h.run("", "bank", "get-all"); code != 0 || h.stdin.reads != 0 {
		t.Fatalf("bank get-all exit %d reads %d", code, h.stdin.reads)
	}
}

func TestGroupGetWithoutAnyGroupIsUsageError(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	if code := h.run("", "group", "get"); code != 2 {
		t.Fatalf("expected exit 2, got %d stderr=%s", code, h.stderr.String())
	}
}

func TestBankUpdateSendsOnlyGivenFields(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	bank := solana.NewWallet().PublicKey()

	code := h.run("alice\n", "bank", "update", bank.String(), "--max-capacity", "1000", "--json")
	if code != 0 {
		t.Fatalf("bank update exit %d stderr=%s", code, h.stderr.String())
	}
	opt := h.proc.bankOpt
	if opt.MaxCapacity == nil || *opt.MaxCapacity != 1000 {
		t.Fatalf("expected max capacity 1000, got %+v", opt)
	}
	if opt.DepositWeightInit != nil || opt.DepositWeightMaint != nil || opt.LiabilityWeightInit != nil ||
		opt.LiabilityWeightMaint != nil || opt.OperationalState != nil || opt.Oracle != nil {
		t.Fatalf("unexpected fields set: %+v", opt)
	}
	if !strings.Contains(h.stderr.String(), "Type the name of the profile [alice] to continue.") {
		t.Fatalf("expected consent prompt, got %s", h.stderr.String())
	}
	env := decodeEnvelope(t, &h.stdout)
	if env["success"] != true {
		t.Fatalf("expected success envelope: %v", env)
	}
}

func TestBankUpdateConvertsWeightsExactly(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	bank := solana.NewWallet().PublicKey()
	code := h.run("alice\n", "bank", "update", bank.String(), "--deposit-weight-init", "1.5", "--operational-state", "reduce-only")
	if code != 0 {
		t.Fatalf("bank update exit %d stderr=%s", code, h.stderr.String())
	}
	opt := h.proc.bankOpt
	if opt.DepositWeightInit == nil || opt.DepositWeightInit.String() != "1.5" {
		t.Fatalf("expected 1.5, got %v", opt.DepositWeightInit)
	}
	if opt.OperationalState == nil || *opt.OperationalState != marginfi.BankReduceOnly {
		t.Fatalf("unexpected state %v", opt.OperationalState)
	}
}

func TestEmptyBankUpdateWarns(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	bank := solana.NewWallet().PublicKey()
	if code := h.run("alice\n", "bank", "update", bank.String(), "--json"); code != 0 {
		t.Fatalf("bank update exit %d stderr=%s", code, h.stderr.String())
	}
	if !h.proc.bankOpt.IsEmpty() {
		t.Fatalf("expected empty update, got %+v", h.proc.bankOpt)
	}
	env := decodeEnvelope(t, &h.stdout)
	warnings, _ := env["warnings"].([]any)
	if len(warnings) != 1 || !strings.Contains(warnings[0].(string), "no bank fields given") {
		t.Fatalf("expected empty-update warning, got %v", env["warnings"])
	}

	if code := h.run("alice\n", "bank", "update", bank.String(), "--max-capacity", "10", "--json"); code != 0 {
		t.Fatalf("bank update exit %d", code)
	}
	env = decodeEnvelope(t, &h.stdout)
	if _, ok := env["warnings"]; ok {
		t.Fatalf("unexpected warnings: %v", env["warnings"])
	}
}

func TestOperationalStateIsCaseSensitive(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	bank := solana.NewWallet().PublicKey()
	for _, state := range []string{"PAUSED", "Reduce-Only"} {
		if code := h.run("alice\n", "bank", "update", bank.String(), "--operational-state", state); code != 2 {
			t.Fatalf("state %q: expected exit 2, got %d", state, code)
		}
		if h.stdin.reads != 0 || len(h.proc.calls) != 0 {
			t.Fatalf("state %q: rejected flag must not prompt or dispatch", state)
		}
	}
}

func TestTamperedProfileNameFailsBeforeConsent(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	path := filepath.Join(h.dir, "config", "mfi", "profiles", "alice.yaml")
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	tampered := strings.Replace(string(buf), "name: alice", `name: ""`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if code := h.run("\n", "group", "create"); code != 3 {
		t.Fatalf("expected exit 3, got %d stderr=%s", code, h.stderr.String())
	}
	if h.stdin.reads != 0 || len(h.proc.calls) != 0 {
		t.Fatalf("malformed profile must not prompt or dispatch")
	}
}

func TestConsentMismatchAbortsWithoutDispatch(t *testing.T) {
	for _, input := range []string{"bob\n", "Alice\n", ""} {
		h := newHarness(t)
		h.createProfile()
		code := h.run(input, "group", "create")
		if code != 4 {
			t.Fatalf("input %q: expected exit 4, got %d stderr=%s", input, code, h.stderr.String())
		}
		if len(h.proc.calls) != 0 {
			t.Fatalf("input %q: processor must not be called, got %v", input, h.proc.calls)
		}
		if !strings.Contains(h.stderr.String(), "Aborting") {
			t.Fatalf("input %q: expected abort notice", input)
		}
	}
}

func TestJournalRecordsOutcomes(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	group := solana.NewWallet().PublicKey()

	if code := h.run("nope\n", "group", "update", group.String()); code != 4 {
		t.Fatalf("expected abort, got %d", code)
	}
	if code := h.run("alice\n", "group", "create"); code != 0 {
		t.Fatalf("group create exit %d stderr=%s", code, h.stderr.String())
	}
	if code := h.run("", "group", "get-all"); code != 0 {
		t.Fatalf("group get-all exit %d", code)
	}

	if code := h.run("", "journal", "list", "--json", "--results-only"); code != 0 {
		t.Fatalf("journal list exit %d stderr=%s", code, h.stderr.String())
	}
	var entries []model.JournalEntry
	if err := json.Unmarshal(h.stdout.Bytes(), &entries); err != nil {
		t.Fatalf("decode journal: %v output=%s", err, h.stdout.String())
	}
	if len(entries) != 2 {
		t.Fatalf("expected two journaled commands, got %+v", entries)
	}
	statuses := map[string]string{}
	for _, e := range entries {
		statuses[e.Command] = e.Status
	}
	if statuses["group update"] != "aborted" || statuses["group create"] != "submitted" {
		t.Fatalf("unexpected journal statuses: %v", statuses)
	}

	if code := h.run("", "journal", "list", "--status", "aborted", "--json", "--results-only"); code != 0 {
		t.Fatalf("journal list exit %d", code)
	}
	entries = nil
	if err := json.Unmarshal(h.stdout.Bytes(), &entries); err != nil {
		t.Fatalf("decode journal: %v", err)
	}
	if len(entries) != 1 || entries[0].Command != "group update" {
		t.Fatalf("unexpected filtered entries: %+v", entries)
	}
}

func TestNoJournalSkipsRecording(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	if code := h.run("alice\n", "group", "create", "--no-journal"); code != 0 {
		t.Fatalf("group create exit %d stderr=%s", code, h.stderr.String())
	}
	if code := h.run("", "journal", "list", "--json", "--results-only"); code != 0 {
		t.Fatalf("journal list exit %d", code)
	}
	if strings.TrimSpace(h.stdout.String()) != "[]" {
		t.Fatalf("expected empty journal, got %s", h.stdout.String())
	}
}

func TestOverridesReachProcessor(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	if code := h.run("", "group", "get-all", "--rpc-url", "http://override.rpc", "--commitment", "finalized"); code != 0 {
		t.Fatalf("group get-all exit %d stderr=%s", code, h.stderr.String())
	}
	if h.proc.cfg.RPCURL != "http://override.rpc" || h.proc.cfg.Commitment != "finalized" {
		t.Fatalf("override not applied: %+v", h.proc.cfg)
	}
	if h.proc.cfg.Cluster != config.ClusterDevnet {
		t.Fatalf("absent override should keep profile cluster, got %s", h.proc.cfg.Cluster)
	}
}

func TestChainCommandWithoutProfileFailsClosed(t *testing.T) {
	h := newHarness(t)
	if code := h.run("", "group", "get-all"); code != 3 {
		t.Fatalf("expected exit 3, got %d stderr=%s", code, h.stderr.String())
	}
	if len(h.proc.calls) != 0 {
		t.Fatalf("processor must not be called")
	}
}

func TestAddBankArgumentHandling(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	if code := h.run("", "group", "add-bank", solana.NewWallet().PublicKey().String(), "1"); code != 2 {
		t.Fatalf("expected usage exit for missing args, got %d", code)
	}

	mint, oracle := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	args := []string{"group", "add-bank", mint.String(), "1", "1", "1.5", "1.25", "5000", oracle.String(), "0.8", "0.1", "3", "0", "0", "0.01", "0.1"}
	if code := h.run("alice\n", args...); code != 0 {
		t.Fatalf("add-bank exit %d stderr=%s", code, h.stderr.String())
	}
	cfg := h.proc.bankCfg
	if cfg.LiabilityWeightInit.String() != "1.5" || cfg.MaxCapacity != 5000 || !cfg.PythOracle.Equals(oracle) {
		t.Fatalf("unexpected bank config: %+v", cfg)
	}
}

func TestEnableCommandsBlocks(t *testing.T) {
	h := newHarness(t)
	h.createProfile()
	code := h.run("alice\n", "group", "create", "--enable-commands", "group get", "--json")
	if code != 16 {
		t.Fatalf("expected exit 16, got %d stderr=%s", code, h.stderr.String())
	}
	env := decodeEnvelope(t, &h.stderr)
	if env["success"] != false || h.stdin.reads != 0 {
		t.Fatalf("blocked command must fail before prompting: %v", env)
	}
}

func TestSchemaMarksConsentCommands(t *testing.T) {
	h := newHarness(t)
	if code := h.run("", "schema", "bank", "update", "--json", "--results-only"); code != 0 {
		t.Fatalf("schema exit %d stderr=%s", code, h.stderr.String())
	}
	var s map[string]any
	if err := json.Unmarshal(h.stdout.Bytes(), &s); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if s["requires_consent"] != true {
		t.Fatalf("expected bank update to require consent: %v", s)
	}

	if code := h.run("", "schema", "bank", "get", "--json", "--results-only"); code != 0 {
		t.Fatalf("schema exit %d", code)
	}
	s = nil
	if err := json.Unmarshal(h.stdout.Bytes(), &s); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if _, ok := s["requires_consent"]; ok {
		t.Fatalf("bank get must not require consent: %v", s)
	}
}
