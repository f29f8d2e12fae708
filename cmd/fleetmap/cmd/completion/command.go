// Package completion provides the shell completion command.
package completion

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/fleetmap/pkg/errors"
)

// Supported shells.
const (
	ShellBash       = "bash"
	ShellZsh        = "zsh"
	ShellFish       = "fish"
	ShellPowerShell = "powershell"
)

// Shells lists the shells completion scripts can be generated for.
var Shells = []string{ShellBash, ShellZsh, ShellFish, ShellPowerShell}

// NewCommand creates the completion command. It replaces cobra's default
// so the generated scripts carry fleetmap's own help text.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate the autocompletion script for bash, zsh, fish or powershell.

To load completions in your current shell session:

  source <(fleetmap completion bash)

To load completions for every new session, write the script to your
shell's completion directory, for example:

  fleetmap completion zsh > "${fpath[1]}/_fleetmap"
  fleetmap completion fish > ~/.config/fish/completions/fleetmap.fish`,
		ValidArgs:             Shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Generate(cmd.Root(), cmd, args[0])
		},
	}
}

// Generate writes the completion script for shell to cmd's output.
func Generate(root, cmd *cobra.Command, shell string) error {
	w := cmd.OutOrStdout()
	switch shell {
	case ShellBash:
		return root.GenBashCompletionV2(w, true)
	case ShellZsh:
		return root.GenZshCompletion(w)
	case ShellFish:
		return root.GenFishCompletion(w, true)
	case ShellPowerShell:
		return root.GenPowerShellCompletionWithDesc(w)
	default:
		return errors.NewValidationError("shell", shell, "must be one of: bash, zsh, fish, powershell")
	}
}
