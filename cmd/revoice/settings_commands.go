package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/ipc"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change runtime settings",
	}

	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	settingsCmd.AddCommand(newSettingsVoicesCommand(ctx))

	return settingsCmd
}

func newSettingsVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List voices available for speech generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Voices()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, voice := range resp.Voices {
					fmt.Fprintln(out, voice)
				}
				fmt.Fprintf(out, "\nApply one with `revoice settings set --voice <name>`\n")
				return nil
			})
		},
	}
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current runtime settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SettingsGet()
				if err != nil {
					return err
				}
				printSettings(cmd, resp)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var reviewMode string
	var preserveEdits string
	var voice string
	var speed float64
	var prompt string
	var promptFile string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change runtime settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				current, err := client.SettingsGet()
				if err != nil {
					return err
				}
				next := current.Settings

				if reviewMode != "" {
					enabled, err := parseBoolFlag("review-mode", reviewMode)
					if err != nil {
						return err
					}
					next.BatchReviewMode = enabled
				}
				if preserveEdits != "" {
					enabled, err := parseBoolFlag("preserve-edits", preserveEdits)
					if err != nil {
						return err
					}
					next.PreserveEdits = enabled
				}
				if voice != "" {
					next.Voice = voice
				}
				if cmd.Flags().Changed("speed") {
					next.Speed = speed
				}
				if prompt != "" && promptFile != "" {
					return fmt.Errorf("specify only one of --prompt or --prompt-file")
				}
				if prompt != "" {
					next.RewritePrompt = prompt
				}
				if promptFile != "" {
					data, err := os.ReadFile(promptFile)
					if err != nil {
						return fmt.Errorf("read prompt file: %w", err)
					}
					next.RewritePrompt = strings.TrimSpace(string(data))
				}

				resp, err := client.SettingsSet(ipc.SettingsSetRequest{Settings: next})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings updated")
				printSettings(cmd, resp)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reviewMode, "review-mode", "", "Enable or disable batch review mode (on/off)")
	cmd.Flags().StringVar(&preserveEdits, "preserve-edits", "", "Keep operator-edited text across reruns (on/off)")
	cmd.Flags().StringVar(&voice, "voice", "", "Speech generation voice")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Speech generation speed")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Rewrite prompt text")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "Read the rewrite prompt from a file")
	return cmd
}

func printSettings(cmd *cobra.Command, resp *ipc.SettingsResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	s := resp.Settings
	printStatusLine(out, "Review mode", statusInfo, yesNo(s.BatchReviewMode), colorize)
	printStatusLine(out, "Preserve edits", statusInfo, yesNo(s.PreserveEdits), colorize)
	printStatusLine(out, "Voice", statusInfo, s.Voice, colorize)
	printStatusLine(out, "Speed", statusInfo, fmt.Sprintf("%.2fx", s.Speed), colorize)
	printStatusLine(out, "Prompt", statusInfo, previewText(s.RewritePrompt, 70), colorize)
}

func parseBoolFlag(name, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid value %q for --%s (use on or off)", value, name)
	}
}
