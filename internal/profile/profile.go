// Package profile persists named connection profiles and resolves them,
// together with per-invocation overrides, into an effective config.Config.
package profile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/ggonzalez94/mfi-cli/internal/model"
)

// Profile is a named, persisted connection record. Its Name is the token
// an operator types to confirm a mutating command.
type Profile struct {
	Name          string
	Cluster       config.Cluster
	KeypairPath   string
	RPCURL        string
	ProgramID     *solana.PublicKey
	Commitment    *rpc.CommitmentType
	MarginfiGroup *solana.PublicKey
}

// Config merges the profile with overrides. Every field is resolved on its
// own: a non-nil override wins, otherwise the profile value is used.
func (p Profile) Config(overrides config.GlobalOptions) (config.Config, error) {
	cluster := p.Cluster
	if overrides.Cluster != nil {
		cluster = *overrides.Cluster
	}
	if cluster == "" {
		return config.Config{}, clierr.New(clierr.CodeConfig, "profile "+p.Name+" has no cluster")
	}

	rpcURL := p.RPCURL
	if overrides.RPCURL != nil {
		rpcURL = *overrides.RPCURL
	}
	if strings.TrimSpace(rpcURL) == "" {
		return config.Config{}, clierr.New(clierr.CodeConfig, "profile "+p.Name+" has no rpc url")
	}

	var programID solana.PublicKey
	switch {
	case overrides.ProgramID != nil:
		programID = *overrides.ProgramID
	case p.ProgramID != nil:
		programID = *p.ProgramID
	default:
		id, ok := cluster.DefaultProgramID()
		if !ok {
			return config.Config{}, clierr.New(clierr.CodeConfig, "no program id for cluster "+string(cluster)+"; set one on the profile or pass --program-id")
		}
		programID = id
	}

	commitment := config.DefaultCommitment
	switch {
	case overrides.Commitment != nil:
		commitment = *overrides.Commitment
	case p.Commitment != nil:
		commitment = *p.Commitment
	}

	keypairPath := p.KeypairPath
	if overrides.KeypairPath != nil {
		keypairPath = *overrides.KeypairPath
	}
	if strings.TrimSpace(keypairPath) == "" {
		return config.Config{}, clierr.New(clierr.CodeConfig, "profile "+p.Name+" has no keypair path")
	}
	keypairPath, err := expandHome(keypairPath)
	if err != nil {
		return config.Config{}, clierr.Wrap(clierr.CodeConfig, "expand keypair path", err)
	}
	signer, err := solana.PrivateKeyFromSolanaKeygenFile(keypairPath)
	if err != nil {
		return config.Config{}, clierr.Wrap(clierr.CodeSigner, "load keypair "+keypairPath, err)
	}

	return config.Config{
		Cluster:     cluster,
		RPCURL:      rpcURL,
		ProgramID:   programID,
		Commitment:  commitment,
		KeypairPath: keypairPath,
		Signer:      signer,
	}, nil
}

// Fields renders the full record for the consent screen.
func (p Profile) Fields() []model.Field {
	return []model.Field{
		{Name: "name", Value: p.Name},
		{Name: "cluster", Value: string(p.Cluster)},
		{Name: "rpc_url", Value: p.RPCURL},
		{Name: "keypair_path", Value: p.KeypairPath},
		{Name: "program_id", Value: optionalKey(p.ProgramID)},
		{Name: "commitment", Value: optionalCommitment(p.Commitment)},
		{Name: "marginfi_group", Value: optionalKey(p.MarginfiGroup)},
	}
}

func (p Profile) View(active bool) model.Profile {
	return model.Profile{
		Name:          p.Name,
		Active:        active,
		Cluster:       string(p.Cluster),
		KeypairPath:   p.KeypairPath,
		RPCURL:        p.RPCURL,
		ProgramID:     optionalKey(p.ProgramID),
		Commitment:    optionalCommitment(p.Commitment),
		MarginfiGroup: optionalKey(p.MarginfiGroup),
	}
}

func optionalKey(pk *solana.PublicKey) string {
	if pk == nil {
		return ""
	}
	return pk.String()
}

func optionalCommitment(c *rpc.CommitmentType) string {
	if c == nil {
		return ""
	}
	return string(*c)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
