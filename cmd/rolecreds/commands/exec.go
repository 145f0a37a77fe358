package commands

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/rolecreds/internal/config"
	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/execenv"
)

func NewExecCommand(cfg *config.Config) *cobra.Command {
	var (
		flags         sourceFlags
		printVars     bool
		allowOverride bool
		workingDir    string
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exec -- <command> [args...]",
		Short: "Execute a command with resolved credentials",
		Long: `Resolve credentials and run a command with them exported as
AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and, when present, AWS_SESSION_TOKEN
and AWS_CREDENTIAL_EXPIRATION. Credentials are never written to disk.

The command must be separated from rolecreds arguments with '--'.

Examples:
  rolecreds exec -- aws sts get-caller-identity
  rolecreds exec --print -- terraform plan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return dserrors.UserError{
					Message:    "No command specified",
					Suggestion: "Use: rolecreds exec -- <command> [args...]",
				}
			}

			resolver, err := newResolver(cmd.Context(), cfg, flags, nil, nil)
			if err != nil {
				return err
			}
			sel, err := resolver.Select(cmd.Context())
			if err != nil {
				return noSourceError(err)
			}
			defer func() {
				sel.Provider.Stop()
				sel.Provider.Wait()
			}()

			cfg.Logger.Debug("Using %s credentials", sel.Source)

			executor := execenv.New(cfg.Logger).WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			return executor.Exec(cmd.Context(), execenv.ExecOptions{
				Command:       args,
				Credentials:   sel.Provider.Credentials(),
				AllowOverride: allowOverride,
				PrintVars:     printVars,
				WorkingDir:    workingDir,
				Timeout:       timeout,
			})
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&printVars, "print", false, "Print exported variables (values masked)")
	cmd.Flags().BoolVar(&allowOverride, "allow-override", false, "Keep credentials already set in the environment")
	cmd.Flags().StringVar(&workingDir, "working-dir", "", "Working directory for the command")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Command timeout (0 for no timeout)")

	return cmd
}
