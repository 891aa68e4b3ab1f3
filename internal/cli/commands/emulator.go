package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdash/internal/workspace"
)

// EmulatorOptions holds options for the emulator command.
type EmulatorOptions struct {
	Addr  string
	Token string
}

// NewEmulatorCommand creates the emulator command.
func NewEmulatorCommand() *cobra.Command {
	opts := &EmulatorOptions{}

	cmd := &cobra.Command{
		Use:   "emulator",
		Short: "Run an in-memory workspace",
		Long: `Emulator serves the dashboard endpoints of the workspace API from memory.
Point --host at it to try deploys, pulls and diffs without a real workspace.
Nothing is persisted.`,
		Example: `  # Start on the default address
  leapdash emulator

  # In another shell
  leapdash deploy sales --host http://localhost:8089`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEmulator(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "localhost:8089", "Address to listen on")
	cmd.Flags().StringVar(&opts.Token, "require-token", "", "Only accept requests with this bearer token")
	return cmd
}

func runEmulator(cmd *cobra.Command, opts *EmulatorOptions) error {
	cmdCtx := NewCommandContext(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := workspace.NewServer(
		workspace.NewMemory(),
		workspace.WithToken(opts.Token),
		workspace.WithServerLogger(cmdCtx.Logger),
	)
	cmdCtx.Renderer.Success("Workspace emulator on http://" + opts.Addr)
	return workspace.Serve(ctx, opts.Addr, handler, cmdCtx.Logger)
}
