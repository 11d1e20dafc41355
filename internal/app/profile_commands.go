package app

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/ggonzalez94/mfi-cli/internal/command"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/spf13/cobra"
)

// Profile commands only touch the local store: no Config is built and no
// consent is asked.
func (s *runtimeState) newProfileCommand() *cobra.Command {
	root := &cobra.Command{Use: "profile", Short: "Manage connection profiles"}
	root.AddCommand(
		s.newProfileCreateCommand(),
		s.newProfileShowCommand(),
		s.newProfileListCommand(),
		s.newProfileSetCommand(),
		s.newProfileUpdateCommand(),
	)
	return root
}

func (s *runtimeState) newProfileCreateCommand() *cobra.Command {
	var (
		name, clusterArg, keypairPath, rpcURL string
		programID, group                      *solana.PublicKey
		commitment                            *rpc.CommitmentType
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a profile (the first one becomes active)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := config.ParseCluster(clusterArg)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "parse --cluster", err)
			}
			c := command.ProfileCreate{
				Name:        name,
				Cluster:     cluster,
				KeypairPath: keypairPath,
				RPCURL:      rpcURL,
				ProgramID:   programID,
				Commitment:  commitment,
				Group:       group,
			}
			if err := s.profiles.Create(c.Profile()); err != nil {
				return err
			}
			return s.emitProfile(c.Path(), c.Name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Profile name")
	cmd.Flags().StringVar(&clusterArg, "cluster", "", "Cluster (mainnet|devnet|testnet|localnet|url)")
	cmd.Flags().StringVar(&keypairPath, "keypair-path", "", "Signer keypair file")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "RPC URL")
	cmd.Flags().Var(config.NewPubkeyValue(&programID), "program-id", "marginfi program id")
	cmd.Flags().Var(config.NewCommitmentValue(&commitment), "commitment", "Commitment (processed|confirmed|finalized)")
	cmd.Flags().Var(config.NewPubkeyValue(&group), "group", "marginfi group")
	for _, f := range []string{"name", "cluster", "keypair-path", "rpc-url"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (s *runtimeState) newProfileShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.profiles.Loader(s.settings.Profile).Load()
			if err != nil {
				return err
			}
			return s.emitProfile(command.ProfileShow{}.Path(), p.Name)
		},
	}
}

func (s *runtimeState) newProfileListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := s.profiles.List()
			if err != nil {
				return err
			}
			active, err := s.profiles.Active()
			if err != nil {
				return err
			}
			views := make([]model.Profile, 0, len(profiles))
			for _, p := range profiles {
				views = append(views, p.View(p.Name == active))
			}
			return s.emitSuccess(command.ProfileList{}.Path(), views)
		},
	}
}

func (s *runtimeState) newProfileSetCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Make a profile active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := command.ProfileSet{Name: name}
			if err := s.profiles.SetActive(c.Name); err != nil {
				return err
			}
			return s.emitProfile(c.Path(), c.Name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Profile name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (s *runtimeState) newProfileUpdateCommand() *cobra.Command {
	var (
		name                string
		cluster             *config.Cluster
		keypairPath, rpcURL *string
		programID, group    *solana.PublicKey
		commitment          *rpc.CommitmentType
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change fields of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := command.ProfileUpdate{
				Name:        name,
				Cluster:     cluster,
				KeypairPath: keypairPath,
				RPCURL:      rpcURL,
				ProgramID:   programID,
				Commitment:  commitment,
				Group:       group,
			}
			if _, err := s.profiles.Update(c.Name, c.Patch()); err != nil {
				return err
			}
			return s.emitProfile(c.Path(), c.Name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Profile name")
	cmd.Flags().Var(config.NewClusterValue(&cluster), "cluster", "Cluster (mainnet|devnet|testnet|localnet|url)")
	cmd.Flags().Var(config.NewStringValue(&keypairPath), "keypair-path", "Signer keypair file")
	cmd.Flags().Var(config.NewStringValue(&rpcURL), "rpc-url", "RPC URL")
	cmd.Flags().Var(config.NewPubkeyValue(&programID), "program-id", "marginfi program id")
	cmd.Flags().Var(config.NewCommitmentValue(&commitment), "commitment", "Commitment (processed|confirmed|finalized)")
	cmd.Flags().Var(config.NewPubkeyValue(&group), "group", "marginfi group")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (s *runtimeState) emitProfile(path, name string) error {
	p, err := s.profiles.Get(name)
	if err != nil {
		return err
	}
	active, err := s.profiles.Active()
	if err != nil {
		return err
	}
	s.lastProfile, s.lastCluster = p.Name, string(p.Cluster)
	return s.emitSuccess(path, p.View(p.Name == active))
}
