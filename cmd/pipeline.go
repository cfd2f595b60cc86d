package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetaker/config"
	"github.com/otherjamesbrown/notetaker/credentials"
	"github.com/otherjamesbrown/notetaker/pkg/attendance"
	"github.com/otherjamesbrown/notetaker/pkg/logging"
	"github.com/otherjamesbrown/notetaker/pkg/meetings"
	"github.com/otherjamesbrown/notetaker/pkg/notes"
)

// PipelineCommandDeps holds the dependencies for the transcribe and notes commands.
type PipelineCommandDeps struct {
	LoadConfig     func() (*config.Config, error)
	ResolveSecrets func(*config.Config, logging.Logger)
	NewTranscriber func(*config.Config, logging.Logger) attendance.Transcriber
	NewSynthesizer func(*config.Config, logging.Logger) notes.Synthesizer
}

// DefaultPipelineDeps returns the default dependencies for production use.
func DefaultPipelineDeps(g *Globals) *PipelineCommandDeps {
	return &PipelineCommandDeps{
		LoadConfig: g.LoadConfig,
		ResolveSecrets: func(cfg *config.Config, logger logging.Logger) {
			ResolveSecrets(cfg, credentials.NewResolver(), logger)
		},
		NewTranscriber: NewTranscriber,
		NewSynthesizer: func(cfg *config.Config, logger logging.Logger) notes.Synthesizer {
			return NewSynthesizer(cfg, logger, nil)
		},
	}
}

// TranscribeOutput is the transcribe command's result.
type TranscribeOutput struct {
	Text            string  `json:"text" yaml:"text"`
	OriginalText    string  `json:"original_text,omitempty" yaml:"original_text,omitempty"`
	Language        string  `json:"language" yaml:"language"`
	LanguageName    string  `json:"language_name" yaml:"language_name"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	Translated      bool    `json:"translated" yaml:"translated"`
	Placeholder     bool    `json:"placeholder" yaml:"placeholder"`
	FallbackReason  string  `json:"fallback_reason,omitempty" yaml:"fallback_reason,omitempty"`
}

// NewTranscribeCommand creates the transcribe command.
func NewTranscribeCommand(deps *PipelineCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Long: `Run an audio file through the transcription gateway: speech recognition,
language detection, and translation into transcription.target_language.

When the speech service is not configured or fails, the placeholder
transcript is printed and the reason is reported.`,
		Example: `  notetaker transcribe ~/recordings/lecture.mp3
  notetaker transcribe lecture.mp3 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("audio file: %w", err)
			}

			logger := NewLogger(cfg)
			deps.ResolveSecrets(cfg, logger)
			res := deps.NewTranscriber(cfg, logger).Transcribe(cmd.Context(), path)

			out := TranscribeOutput{
				Text:            res.Text,
				Language:        res.Language.String(),
				LanguageName:    res.LanguageName(),
				DurationSeconds: res.DurationSeconds,
				Translated:      res.Translated,
				Placeholder:     res.Placeholder,
			}
			if res.Translated {
				out.OriginalText = res.OriginalText
			}
			if res.FallbackReason != nil {
				out.FallbackReason = res.FallbackReason.Error()
			}
			return printOutput(cmd.OutOrStdout(), cfg.OutputFormat, out, func(w io.Writer) error {
				fmt.Fprintf(w, "Language: %s (%s)", out.LanguageName, out.Language)
				if out.Translated {
					fmt.Fprint(w, ", translated")
				}
				fmt.Fprintf(w, "\nDuration: %.0fs\n", out.DurationSeconds)
				if out.Placeholder {
					fmt.Fprintf(w, "Placeholder transcript: %s\n", valueOrDefault(out.FallbackReason, "speech service unavailable"))
				}
				fmt.Fprintf(w, "\n%s\n", out.Text)
				return nil
			})
		},
	}
}

// NotesOutput is the notes command's result.
type NotesOutput struct {
	Title       string               `json:"title" yaml:"title"`
	Summary     string               `json:"summary" yaml:"summary"`
	KeyPoints   []string             `json:"key_points" yaml:"key_points"`
	ActionItems []string             `json:"action_items" yaml:"action_items"`
	Tier        meetings.QualityTier `json:"quality_tier" yaml:"quality_tier"`
}

// NewNotesCommand creates the notes command.
func NewNotesCommand(deps *PipelineCommandDeps) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "notes <transcript-file>",
		Short: "Generate notes from a transcript",
		Long: `Synthesize structured notes (summary, key points, action items) from a
transcript text file. Use "-" to read the transcript from stdin.

With an AI key the model writes the notes and the keyword heuristic is used
when it fails; without one the heuristic is used directly.`,
		Example: `  notetaker notes transcript.txt --title "Linear Algebra"
  cat transcript.txt | notetaker notes - -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			transcript, err := readTranscript(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if title == "" && args[0] != "-" {
				base := filepath.Base(args[0])
				title = strings.TrimSuffix(base, filepath.Ext(base))
			}

			logger := NewLogger(cfg)
			deps.ResolveSecrets(cfg, logger)
			res, err := deps.NewSynthesizer(cfg, logger).Synthesize(cmd.Context(), transcript, title)
			if err != nil {
				return fmt.Errorf("generating notes: %w", err)
			}

			out := NotesOutput{
				Title:       res.Title,
				Summary:     res.Summary,
				KeyPoints:   nonNilStrings(res.KeyPoints),
				ActionItems: nonNilStrings(res.ActionItems),
				Tier:        res.Tier,
			}
			return printOutput(cmd.OutOrStdout(), cfg.OutputFormat, out, func(w io.Writer) error {
				fmt.Fprintf(w, "# %s\n\n%s\n", out.Title, out.Summary)
				printList(w, "Key points", out.KeyPoints)
				printList(w, "Action items", out.ActionItems)
				fmt.Fprintf(w, "\n(%s)\n", out.Tier)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Meeting title (default: file name)")
	return cmd
}

func readTranscript(stdin io.Reader, arg string) (string, error) {
	var (
		data []byte
		err  error
	)
	if arg == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		var path string
		if path, err = config.ExpandPath(arg); err == nil {
			data, err = os.ReadFile(path)
		}
	}
	if err != nil {
		return "", fmt.Errorf("reading transcript: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("transcript is empty")
	}
	return text, nil
}

func printList(w io.Writer, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n## %s\n", heading)
	for _, item := range items {
		fmt.Fprintf(w, "- %s\n", item)
	}
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
