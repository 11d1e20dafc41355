package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ggonzalez94/mfi-cli/internal/config"
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/ggonzalez94/mfi-cli/internal/journal"
	"github.com/ggonzalez94/mfi-cli/internal/logging"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/ggonzalez94/mfi-cli/internal/out"
	"github.com/ggonzalez94/mfi-cli/internal/policy"
	"github.com/ggonzalez94/mfi-cli/internal/processor"
	"github.com/ggonzalez94/mfi-cli/internal/profile"
	"github.com/ggonzalez94/mfi-cli/internal/schema"
	"github.com/ggonzalez94/mfi-cli/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type processorFactory func(groups processor.GroupRecorder, logger *zap.Logger) processor.Processor

type Runner struct {
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	now          func() time.Time
	newProcessor processorFactory
}

func NewRunner() *Runner {
	return NewRunnerWithIO(os.Stdin, os.Stdout, os.Stderr)
}

func NewRunnerWithIO(stdin io.Reader, stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		newProcessor: func(groups processor.GroupRecorder, logger *zap.Logger) processor.Processor {
			return processor.NewRPC(groups, processor.WithLogger(logger))
		},
	}
}

type runtimeState struct {
	runner    *Runner
	flags     config.GlobalFlags
	overrides config.GlobalOptions
	settings  config.Settings
	logger    *zap.Logger
	profiles  *profile.Store
	journal   *journal.Store
	processor processor.Processor
	root      *cobra.Command

	lastCommand  string
	lastProfile  string
	lastCluster  string
	lastWarnings []string
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, logger: zap.NewNop()}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if err != nil {
		state.renderError("", err)
	}
	state.close()
	return clierr.ExitCode(err)
}

func (s *runtimeState) close() {
	if s.journal != nil {
		_ = s.journal.Close()
	}
	_ = s.logger.Sync()
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "marginfi administrative CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			logger, err := logging.New(s.runner.stderr, settings.LogLevel)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "init logger", err)
			}
			s.logger = logger

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			s.profiles = profile.OpenStore(settings.ProfilesDir, settings.ProfilesLockPath)
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.flags.SettingsPath, "settings", "", "Path to settings file")
	cmd.PersistentFlags().StringVar(&s.flags.Profile, "profile", "", "Run against this profile instead of the active one")
	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text (default)")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "RPC timeout per command")
	cmd.PersistentFlags().BoolVarP(&s.flags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&s.flags.NoJournal, "no-journal", false, "Do not record state-changing commands in the journal")

	cmd.AddCommand(s.newGroupCommand())
	cmd.AddCommand(s.newBankCommand())
	cmd.AddCommand(s.newProfileCommand())
	cmd.AddCommand(s.newJournalCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
}

func (s *runtimeState) getProcessor() processor.Processor {
	if s.processor == nil {
		s.processor = s.runner.newProcessor(s.profiles, s.logger)
	}
	return s.processor
}

func (s *runtimeState) openJournal() (*journal.Store, error) {
	if s.journal != nil {
		return s.journal, nil
	}
	j, err := journal.Open(s.settings.JournalPath, s.settings.JournalLockPath)
	if err != nil {
		return nil, err
	}
	s.journal = j
	return j, nil
}

func (s *runtimeState) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.settings.Timeout)
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: s.lastWarnings,
		Meta:     s.meta(commandPath),
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		switch cErr.Code {
		case clierr.CodeUsage:
			typ = "usage_error"
		case clierr.CodeConfig:
			typ = "config_error"
		case clierr.CodeAborted:
			typ = "aborted"
		case clierr.CodeUnavailable:
			typ = "rpc_unavailable"
		case clierr.CodeBlocked:
			typ = "command_blocked"
		case clierr.CodeSigner:
			typ = "signer_error"
		case clierr.CodeRemote:
			typ = "remote_error"
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "plain"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: s.lastWarnings,
		Meta:     s.meta(commandPath),
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) meta(commandPath string) model.EnvelopeMeta {
	return model.EnvelopeMeta{
		RequestID: newRequestID(),
		Timestamp: s.runner.now().UTC(),
		Command:   commandPath,
		Profile:   s.lastProfile,
		Cluster:   s.lastCluster,
	}
}

func (s *runtimeState) warn(msg string) {
	s.lastWarnings = append(s.lastWarnings, msg)
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
