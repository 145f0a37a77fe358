package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/rolecreds/internal/config"
	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/execenv"
	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/internal/resolve"
	"github.com/systmms/rolecreds/pkg/credentials"
)

// Output formats for resolve.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatEnv  = "env"
)

func NewResolveCommand(cfg *config.Config) *cobra.Command {
	var (
		flags  sourceFlags
		plan   bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Select a credentials source and print its credentials",
		Long: `Select a credentials source the way a long-running process would and
print the resulting credentials.

Sources are tried in order: the container credentials endpoint
(AWS_CONTAINER_CREDENTIALS_RELATIVE_URI), static keys (AWS_ACCESS_KEY_ID and
AWS_SECRET_ACCESS_KEY), then the dev role (ROLECREDS_DEV_ROLE_ARN) in builds
that include it.

Examples:
  rolecreds resolve
  rolecreds resolve --plan
  rolecreds resolve --format json     # credential_process output
  eval "$(rolecreds resolve --format env)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver(cmd.Context(), cfg, flags, nil, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if plan {
				printPlan(out, resolver.Plan())
				return nil
			}

			if err := validateFormat(format); err != nil {
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

			return printCredentials(out, sel.Source, sel.Provider.Credentials(), format)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&plan, "plan", false, "Show which sources are configured without contacting any")
	cmd.Flags().StringVar(&format, "format", FormatText, "Output format: text, json or env")

	return cmd
}

func printPlan(out io.Writer, plan []resolve.PlannedSource) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "PRIORITY\tSOURCE\tKEYS\tSTATUS\n")
	_, _ = fmt.Fprintf(w, "--------\t------\t----\t------\n")
	selected := false
	for i, s := range plan {
		status := "not configured"
		switch {
		case !s.Enabled:
			status = "disabled in this build"
		case s.Applies && !selected:
			status = "would be tried first"
			selected = true
		case s.Applies:
			status = "configured (fallback)"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, s.Name, strings.Join(s.Keys, ", "), status)
	}
	_ = w.Flush()
}

// processCredentials is the credential_process output document.
type processCredentials struct {
	Version         int    `json:"Version"`
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	SessionToken    string `json:"SessionToken,omitempty"`
	Expiration      string `json:"Expiration,omitempty"`
}

func printCredentials(out io.Writer, source string, snapshot credentials.Snapshot, format string) error {
	switch format {
	case FormatText:
		expires := "never"
		if snapshot.CanExpire() {
			expires = snapshot.Expiration.UTC().Format(time.RFC3339)
		}
		token := "no"
		if snapshot.HasSessionToken() {
			token = "yes"
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "SOURCE\tACCESS KEY\tSESSION TOKEN\tEXPIRES\n")
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", source, logging.KeyID(snapshot.AccessKeyID), token, expires)
		return w.Flush()

	case FormatJSON:
		doc := processCredentials{
			Version:         1,
			AccessKeyID:     snapshot.AccessKeyID,
			SecretAccessKey: snapshot.SecretAccessKey,
			SessionToken:    snapshot.SessionToken,
		}
		if snapshot.CanExpire() {
			doc.Expiration = snapshot.Expiration.UTC().Format(time.RFC3339)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)

	case FormatEnv:
		env := execenv.Environment(snapshot)
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := fmt.Fprintf(out, "export %s=%s\n", k, shellQuote(env[k])); err != nil {
				return err
			}
		}
		return nil

	default:
		return validateFormat(format)
	}
}

func validateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatEnv:
		return nil
	}
	return dserrors.UserError{
		Message:    fmt.Sprintf("Unknown output format: %s", format),
		Suggestion: "Use one of: text, json, env",
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
