// Package processor performs group and bank operations against the
// marginfi program over Solana JSON-RPC.
package processor

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	"github.com/ggonzalez94/mfi-cli/internal/marginfi"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/ggonzalez94/mfi-cli/internal/profile"
)

// Processor is what the dispatcher calls once a command is resolved and,
// when required, confirmed. Each call is atomic from the caller's view.
type Processor interface {
	GroupGet(ctx context.Context, cfg config.Config, group solana.PublicKey) (model.Group, error)
	GroupGetAll(ctx context.Context, cfg config.Config) ([]model.Group, error)
	GroupCreate(ctx context.Context, cfg config.Config, p profile.Profile, admin *solana.PublicKey, override bool) (model.TxResult, error)
	GroupConfigure(ctx context.Context, cfg config.Config, p profile.Profile, admin *solana.PublicKey) (model.TxResult, error)
	GroupAddBank(ctx context.Context, cfg config.Config, p profile.Profile, mint solana.PublicKey, bank marginfi.BankConfig) (model.TxResult, error)
	BankGet(ctx context.Context, cfg config.Config, bank solana.PublicKey) (model.Bank, error)
	BankGetAll(ctx context.Context, cfg config.Config, group *solana.PublicKey) ([]model.Bank, error)
	BankConfigure(ctx context.Context, cfg config.Config, p profile.Profile, bank solana.PublicKey, opt marginfi.BankConfigOpt) (model.TxResult, error)
}

// GroupRecorder stores the group a profile operates on.
type GroupRecorder interface {
	SetGroup(profileName string, group solana.PublicKey) error
}
