// Package main provides the notetaker entry point.
// notetaker joins scheduled online meetings, records them, and emails the
// owner structured notes.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/notetaker/cmd"
	"github.com/otherjamesbrown/notetaker/config"
	"github.com/otherjamesbrown/notetaker/pkg/buildinfo"
)

// globals holds the persistent flags shared by every subcommand.
var globals = &cmd.Globals{}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "notetaker",
	Short: "Notetaker - attends online meetings and writes the notes",
	Long: `notetaker attends scheduled online meetings on your behalf.

At each meeting's start it opens the join URL in a headless browser, records
the audio until the scheduled end, transcribes and translates the recording,
writes structured notes (summary, key points, action items), and emails the
meeting owner a link. A reminder email goes out shortly before each meeting.

COMMON WORKFLOWS:
  Run the service:     notetaker serve
  Plan a meeting:      notetaker user add --email ...  →  notetaker schedule --user <id> ...
  Check on a meeting:  notetaker status <id>
  Try the pipeline:    notetaker transcribe audio.mp3  |  notetaker notes transcript.txt
  First-time setup:    notetaker credentials set openai-api-key  →  notetaker db migrate

Configuration is read from ~/.notetaker/config.yaml and NOTETAKER_* environment
variables. Secrets come from the environment or the system keyring.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Version command flags.
var (
	versionServer string
)

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of notetaker.

Use --server to query a running "notetaker serve" instead.`,
	Example: `  notetaker version
  notetaker version -o json
  notetaker version --server http://localhost:9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get(buildinfo.ServiceName)
		if versionServer != "" {
			remote, err := fetchVersion(versionServer)
			if err != nil {
				return err
			}
			info = *remote
		}

		format := config.OutputFormat(globals.Output)
		if format != "" && !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", globals.Output)
		}
		return writeVersion(cmd.OutOrStdout(), format, info)
	},
}

func writeVersion(out io.Writer, format config.OutputFormat, info buildinfo.Info) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(info)
	}
	fmt.Fprintf(out, "%s version %s\n", info.ServiceName, info.Version)
	fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
	fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
	fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
	if info.Uptime != "" {
		fmt.Fprintf(out, "  uptime:     %s\n", info.Uptime)
	}
	return nil
}

// fetchVersion reads /version from a running server.
func fetchVersion(server string) (*buildinfo.Info, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Get(strings.TrimSuffix(server, "/") + "/version")
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", server, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("querying %s: HTTP %d", server, resp.StatusCode)
	}
	var info buildinfo.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding version response: %w", err)
	}
	return &info, nil
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "config file (default is ~/.notetaker/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globals.Output, "output", "o", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&globals.Debug, "debug", false, "enable debug logging")

	// Version command flags.
	versionCmd.Flags().StringVar(&versionServer, "server", "", "query a running server's /version (host:port or URL)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cmd.NewServeCommand(cmd.DefaultServeDeps(globals)))

	attendDeps := cmd.DefaultAttendDeps(globals)
	rootCmd.AddCommand(cmd.NewAttendCommand(attendDeps))
	rootCmd.AddCommand(cmd.NewStatusCommand(attendDeps))
	rootCmd.AddCommand(cmd.NewSweepCommand(cmd.DefaultSweepDeps(globals)))

	scheduleDeps := cmd.DefaultScheduleDeps(globals)
	rootCmd.AddCommand(cmd.NewScheduleCommand(scheduleDeps))
	rootCmd.AddCommand(cmd.NewUserCommand(scheduleDeps))

	pipelineDeps := cmd.DefaultPipelineDeps(globals)
	rootCmd.AddCommand(cmd.NewTranscribeCommand(pipelineDeps))
	rootCmd.AddCommand(cmd.NewNotesCommand(pipelineDeps))

	rootCmd.AddCommand(cmd.NewDBCommand(cmd.DefaultDBDeps(globals)))
	rootCmd.AddCommand(cmd.NewCredentialsCommand(cmd.DefaultCredentialsDeps(globals)))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
