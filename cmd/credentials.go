package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/notetaker/config"
	"github.com/otherjamesbrown/notetaker/credentials"
)

// CredentialsCommandDeps holds the dependencies for the credentials commands.
type CredentialsCommandDeps struct {
	LoadConfig  func() (*config.Config, error)
	NewResolver func() *credentials.Resolver
	// ReadSecret prompts for a secret value on cmd's streams.
	ReadSecret func(cmd *cobra.Command, prompt string) (string, error)
}

// DefaultCredentialsDeps returns the default dependencies for production use.
func DefaultCredentialsDeps(g *Globals) *CredentialsCommandDeps {
	return &CredentialsCommandDeps{
		LoadConfig:  g.LoadConfig,
		NewResolver: credentials.NewResolver,
		ReadSecret:  readSecret,
	}
}

// readSecret reads without echo from a terminal, or a single line otherwise.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// CredentialStatus describes one secret for `credentials list`.
type CredentialStatus struct {
	Name   string             `json:"name" yaml:"name"`
	Source credentials.Source `json:"source" yaml:"source"`
	Masked string             `json:"masked,omitempty" yaml:"masked,omitempty"`
	EnvVar string             `json:"env_var" yaml:"env_var"`
	Error  string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewCredentialsCommand creates the credentials command group.
func NewCredentialsCommand(deps *CredentialsCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage secrets in the system keyring",
		Long: `Manage the secrets notetaker needs: the OpenAI API key, the Brevo API key,
the postgres password, and the redis password.

Environment variables take precedence over the keyring. Secrets are never
written to the configuration file.`,
	}
	cmd.AddCommand(newCredentialsSetCommand(deps))
	cmd.AddCommand(newCredentialsDeleteCommand(deps))
	cmd.AddCommand(newCredentialsListCommand(deps))
	return cmd
}

func secretNameArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if !credentials.Known(args[0]) {
		return fmt.Errorf("unknown secret %q (known: %s)", args[0], strings.Join(credentials.Names(), ", "))
	}
	return nil
}

func newCredentialsSetCommand(deps *CredentialsCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret in the keyring",
		Long: fmt.Sprintf(`Store a secret in the system keyring. The value is read from the terminal
without echo, or from stdin when piped.

Names: %s`, strings.Join(credentials.Names(), ", ")),
		Example: `  notetaker credentials set openai-api-key
  echo "$BREVO_KEY" | notetaker credentials set brevo-api-key`,
		Args: secretNameArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			value, err := deps.ReadSecret(cmd, fmt.Sprintf("Enter %s: ", name))
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("no value provided")
			}
			r := deps.NewResolver()
			if err := r.Store(name, value); err != nil {
				return fmt.Errorf("storing %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in %s\n", name, r.Description())
			return nil
		},
	}
}

func newCredentialsDeleteCommand(deps *CredentialsCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Short:   "Remove a secret from the keyring",
		Example: `  notetaker credentials delete openai-api-key`,
		Args:    secretNameArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			r := deps.NewResolver()
			if err := r.Remove(name); err != nil {
				return fmt.Errorf("removing %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", name, r.Description())
			return nil
		},
	}
}

func newCredentialsListCommand(deps *CredentialsCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show where each secret is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			r := deps.NewResolver()

			var list []CredentialStatus
			for _, name := range credentials.Names() {
				st := CredentialStatus{Name: name, EnvVar: credentials.EnvVars(name)[0]}
				value, source, err := r.Lookup(name)
				st.Source = source
				switch {
				case err == nil:
					st.Masked = credentials.MaskCredential(value)
				case !errors.Is(err, credentials.ErrNotFound):
					st.Error = err.Error()
				}
				list = append(list, st)
			}

			return printOutput(cmd.OutOrStdout(), cfg.OutputFormat, list, func(w io.Writer) error {
				fmt.Fprintf(w, "Backend: %s\n\n", r.Description())
				fmt.Fprintf(w, "%-16s %-8s %-28s %s\n", "NAME", "SOURCE", "ENV", "VALUE")
				for _, st := range list {
					value := st.Masked
					if st.Error != "" {
						value = "error: " + truncate(st.Error, 40)
					}
					fmt.Fprintf(w, "%-16s %-8s %-28s %s\n", st.Name, st.Source, st.EnvVar, valueOrDefault(value, "-"))
				}
				return nil
			})
		},
	}
}
