package config

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/pflag"
)

// Cluster names a Solana cluster. Custom clusters carry their URL as the
// value.
type Cluster string

const (
	ClusterMainnet  Cluster = "mainnet"
	ClusterDevnet   Cluster = "devnet"
	ClusterTestnet  Cluster = "testnet"
	ClusterLocalnet Cluster = "localnet"
)

const DefaultCommitment = rpc.CommitmentConfirmed

var defaultProgramByCluster = map[Cluster]solana.PublicKey{
	ClusterMainnet: solana.MustPublicKeyFromBase58("MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA"),
}

func ParseCluster(input string) (Cluster, error) {
	norm := strings.ToLower(strings.TrimSpace(input))
	switch norm {
	case "mainnet", "mainnet-beta", "m":
		return ClusterMainnet, nil
	case "devnet", "d":
		return ClusterDevnet, nil
	case "testnet", "t":
		return ClusterTestnet, nil
	case "localnet", "localhost", "l":
		return ClusterLocalnet, nil
	}
	if strings.HasPrefix(norm, "http://") || strings.HasPrefix(norm, "https://") {
		return Cluster(strings.TrimSpace(input)), nil
	}
	return "", fmt.Errorf("unsupported cluster %q (expected mainnet|devnet|testnet|localnet or an http(s) url)", input)
}

func (c Cluster) DefaultProgramID() (solana.PublicKey, bool) {
	v, ok := defaultProgramByCluster[c]
	return v, ok
}

func ParseCommitment(input string) (rpc.CommitmentType, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("unsupported commitment %q (expected processed|confirmed|finalized)", input)
	}
}

// GlobalOptions are the per-invocation connection overrides. A nil field
// means the profile value is used.
type GlobalOptions struct {
	Cluster     *Cluster
	RPCURL      *string
	ProgramID   *solana.PublicKey
	Commitment  *rpc.CommitmentType
	KeypairPath *string
}

func (o *GlobalOptions) BindFlags(fs *pflag.FlagSet) {
	fs.Var(NewClusterValue(&o.Cluster), "cluster", "Cluster override (mainnet|devnet|testnet|localnet|url)")
	fs.Var(NewStringValue(&o.RPCURL), "rpc-url", "RPC URL override")
	fs.Var(NewPubkeyValue(&o.ProgramID), "program-id", "marginfi program id override")
	fs.Var(NewCommitmentValue(&o.Commitment), "commitment", "Commitment override (processed|confirmed|finalized)")
	fs.Var(NewStringValue(&o.KeypairPath), "keypair-path", "Signer keypair file override")
}

// Config is the effective connection configuration of one command
// execution. It is never persisted.
type Config struct {
	Cluster     Cluster
	RPCURL      string
	ProgramID   solana.PublicKey
	Commitment  rpc.CommitmentType
	KeypairPath string
	Signer      solana.PrivateKey
}

func (c Config) Payer() solana.PublicKey {
	return c.Signer.PublicKey()
}
