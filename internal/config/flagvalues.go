package config

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/pflag"
)

// Optional flag values: the target pointer stays nil until the flag is set,
// which keeps "not given" distinct from a zero value.

type stringValue struct{ target **string }

func NewStringValue(target **string) pflag.Value { return &stringValue{target: target} }

func (v *stringValue) Set(s string) error {
	s = strings.TrimSpace(s)
	*v.target = &s
	return nil
}

func (v *stringValue) String() string {
	if v.target == nil || *v.target == nil {
		return ""
	}
	return **v.target
}

func (v *stringValue) Type() string { return "string" }

type pubkeyValue struct{ target **solana.PublicKey }

func NewPubkeyValue(target **solana.PublicKey) pflag.Value { return &pubkeyValue{target: target} }

func (v *pubkeyValue) Set(s string) error {
	pk, err := ParsePubkey(s)
	if err != nil {
		return err
	}
	*v.target = &pk
	return nil
}

func (v *pubkeyValue) String() string {
	if v.target == nil || *v.target == nil {
		return ""
	}
	return (*v.target).String()
}

func (v *pubkeyValue) Type() string { return "pubkey" }

type clusterValue struct{ target **Cluster }

func NewClusterValue(target **Cluster) pflag.Value { return &clusterValue{target: target} }

func (v *clusterValue) Set(s string) error {
	c, err := ParseCluster(s)
	if err != nil {
		return err
	}
	*v.target = &c
	return nil
}

func (v *clusterValue) String() string {
	if v.target == nil || *v.target == nil {
		return ""
	}
	return string(**v.target)
}

func (v *clusterValue) Type() string { return "cluster" }

type commitmentValue struct{ target **rpc.CommitmentType }

func NewCommitmentValue(target **rpc.CommitmentType) pflag.Value {
	return &commitmentValue{target: target}
}

func (v *commitmentValue) Set(s string) error {
	c, err := ParseCommitment(s)
	if err != nil {
		return err
	}
	*v.target = &c
	return nil
}

func (v *commitmentValue) String() string {
	if v.target == nil || *v.target == nil {
		return ""
	}
	return string(**v.target)
}

func (v *commitmentValue) Type() string { return "commitment" }

// ParsePubkey parses a base58 account address.
func ParsePubkey(input string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(input))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid public key %q: %w", input, err)
	}
	return pk, nil
}
