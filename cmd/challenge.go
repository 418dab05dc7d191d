package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/spf13/cobra"
)

func newChallengeCmd(app *app) *cobra.Command {
	var (
		platformID string
		wait       bool
		timeout    time.Duration
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Issue a QR login challenge",
		Long:  "Opens the platform login page, captures the QR code and, with --wait, blocks until the code is scanned or the timeout passes. Without --wait the challenge is abandoned when the command exits and the session stays pending.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer app.release()

			return runChallenge(cmd, app, resolvePlatform(app, platformID), wait, timeout, outPath)
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "Platform ID (default: first configured platform)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the QR code to be scanned")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to wait for the scan (default: challenge.timeout)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the QR image to this file instead of printing it as base64")

	return cmd
}

func runChallenge(cmd *cobra.Command, app *app, platform domain.PlatformID, wait bool, timeout time.Duration, outPath string) error {
	command := application.IssueChallengeCommand{
		Platform:          platform,
		WaitForCompletion: wait,
		Timeout:           timeout,
	}

	var printed chan struct{}
	if wait {
		progress := make(chan application.WatchProgress, 8)
		printed = make(chan struct{})
		command.Progress = progress
		go func() {
			defer close(printed)
			for update := range progress {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] url_changed=%t cookies=%d %s\n",
					update.Tick, update.MaxTicks, update.LocationChanged, update.TokenCount, update.Location)
			}
		}()
		defer func() {
			close(progress)
			<-printed
		}()
	}

	command.Issued = func(result application.ChallengeResult) error {
		return deliverChallenge(cmd, result, outPath)
	}

	result, err := app.challenges.IssueChallenge(cmd.Context(), command)
	if err != nil {
		return fmt.Errorf("issue challenge: %w", err)
	}

	if !wait {
		return nil
	}

	outcome := result.Outcome
	switch outcome.State {
	case application.WatchResolvedLoggedIn:
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s, %d cookies saved\n", outcome.Platform, len(outcome.Record.Tokens))
		return err
	case application.WatchTimedOut:
		return fmt.Errorf("challenge for %s: %w", outcome.Platform, application.ErrWatcherTimeout)
	default:
		if outcome.Err != nil {
			return fmt.Errorf("challenge for %s ended %s: %w", outcome.Platform, outcome.State, outcome.Err)
		}
		return fmt.Errorf("challenge for %s ended %s", outcome.Platform, outcome.State)
	}
}

// deliverChallenge shows the image before any progress line is printed.
func deliverChallenge(cmd *cobra.Command, result application.ChallengeResult, outPath string) error {
	if outPath == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(result.Image))
		return err
	}

	if err := os.WriteFile(outPath, result.Image, 0o600); err != nil {
		return fmt.Errorf("write qr image: %w", err)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "QR code for %s written to %s (challenge %s)\n", result.Platform, outPath, result.ChallengeID)
	return err
}
