package command

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/ggonzalez94/mfi-cli/internal/profile"
)

// Profile commands only touch the local profile store. They never
// implement ChainCommand, so they never reach the consent gate.

type ProfileCreate struct {
	Name        string
	Cluster     config.Cluster
	KeypairPath string
	RPCURL      string
	ProgramID   *solana.PublicKey
	Commitment  *rpc.CommitmentType
	Group       *solana.PublicKey
}

type ProfileShow struct{}

type ProfileList struct{}

type ProfileSet struct {
	Name string
}

type ProfileUpdate struct {
	Name        string
	Cluster     *config.Cluster
	KeypairPath *string
	RPCURL      *string
	ProgramID   *solana.PublicKey
	Commitment  *rpc.CommitmentType
	Group       *solana.PublicKey
}

func (ProfileCreate) Path() string { return "profile create" }
func (ProfileShow) Path() string   { return "profile show" }
func (ProfileList) Path() string   { return "profile list" }
func (ProfileSet) Path() string    { return "profile set" }
func (ProfileUpdate) Path() string { return "profile update" }

func (c ProfileCreate) Args() []model.Field { return c.Profile().Fields() }
func (ProfileShow) Args() []model.Field     { return []model.Field{} }
func (ProfileList) Args() []model.Field     { return []model.Field{} }

func (c ProfileSet) Args() []model.Field {
	return []model.Field{{Name: "name", Value: c.Name}}
}

func (c ProfileUpdate) Args() []model.Field {
	fields := []model.Field{{Name: "name", Value: c.Name}}
	if c.Cluster != nil {
		fields = append(fields, model.Field{Name: "cluster", Value: string(*c.Cluster)})
	}
	if c.KeypairPath != nil {
		fields = append(fields, model.Field{Name: "keypair_path", Value: *c.KeypairPath})
	}
	if c.RPCURL != nil {
		fields = append(fields, model.Field{Name: "rpc_url", Value: *c.RPCURL})
	}
	if c.ProgramID != nil {
		fields = append(fields, model.Field{Name: "program_id", Value: c.ProgramID.String()})
	}
	if c.Commitment != nil {
		fields = append(fields, model.Field{Name: "commitment", Value: string(*c.Commitment)})
	}
	if c.Group != nil {
		fields = append(fields, model.Field{Name: "marginfi_group", Value: c.Group.String()})
	}
	return fields
}

// Profile builds the record to persist.
func (c ProfileCreate) Profile() profile.Profile {
	return profile.Profile{
		Name:          c.Name,
		Cluster:       c.Cluster,
		KeypairPath:   c.KeypairPath,
		RPCURL:        c.RPCURL,
		ProgramID:     c.ProgramID,
		Commitment:    c.Commitment,
		MarginfiGroup: c.Group,
	}
}

func (c ProfileUpdate) Patch() profile.Patch {
	return profile.Patch{
		Cluster:       c.Cluster,
		KeypairPath:   c.KeypairPath,
		RPCURL:        c.RPCURL,
		ProgramID:     c.ProgramID,
		Commitment:    c.Commitment,
		MarginfiGroup: c.Group,
	}
}
