// Package consent asks the operator to confirm a state-changing command by
// typing the active profile name.
package consent

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/ggonzalez94/mfi-cli/internal/command"
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/ggonzalez94/mfi-cli/internal/profile"
	"github.com/rodaine/table"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	warnHeader = color.New(color.FgYellow, color.Bold).SprintFunc()
	bold       = color.New(color.Bold).SprintFunc()
	red        = color.New(color.FgRed).SprintFunc()
)

type Gate struct {
	src    io.Reader
	in     *bufio.Reader
	out    io.Writer
	logger *zap.Logger
}

func NewGate(in io.Reader, out io.Writer, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{src: in, in: bufio.NewReader(in), out: out, logger: logger}
}

// Confirm shows cmd and the full profile, then reads one line. The command
// may proceed only when the trimmed line equals the profile name exactly.
func (g *Gate) Confirm(cmd command.Command, p profile.Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return clierr.New(clierr.CodeConfig, "profile has no name to confirm with")
	}
	if !IsTerminal(g.src) {
		g.logger.Warn("confirmation input is not a terminal", zap.String("command", cmd.Path()))
	}

	fmt.Fprintln(g.out, warnHeader("This command modifies on-chain state."))
	fmt.Fprintf(g.out, "%s %s\n", bold("Command:"), cmd.Path())
	printFields(g.out, cmd.Args())
	fmt.Fprintln(g.out, bold("Profile:"))
	printFields(g.out, p.Fields())
	fmt.Fprintf(g.out, "Type the name of the profile [%s] to continue.\n", p.Name)

	line, err := g.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return clierr.Wrap(clierr.CodeInternal, "read confirmation", err)
	}
	if strings.TrimSpace(line) != p.Name {
		fmt.Fprintln(g.out, red("Aborting"))
		g.logger.Debug("consent refused", zap.String("command", cmd.Path()), zap.String("profile", p.Name))
		return clierr.New(clierr.CodeAborted, "aborted: confirmation did not match profile name")
	}
	g.logger.Debug("consent given", zap.String("command", cmd.Path()), zap.String("profile", p.Name))
	return nil
}

func printFields(w io.Writer, fields []model.Field) {
	if len(fields) == 0 {
		fmt.Fprintln(w, "  (no arguments)")
		return
	}
	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Field", "Value").WithWriter(w).WithHeaderFormatter(headerFmt)
	for _, f := range fields {
		tbl.AddRow(f.Name, f.Value)
	}
	tbl.Print()
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
