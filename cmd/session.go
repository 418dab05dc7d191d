package cmd

import (
	"errors"
	"fmt"

	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/spf13/cobra"
)

func newValidateCmd(app *app) *cobra.Command {
	var (
		platformID string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the stored cookies against a protected page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer app.release()

			result, err := app.validator.Validate(cmd.Context(), resolvePlatform(app, platformID))
			var validationErr *application.ValidationError
			if err != nil && !errors.As(err, &validationErr) {
				return err
			}

			if asJSON {
				if writeErr := writeJSON(cmd.OutOrStdout(), result); writeErr != nil {
					return writeErr
				}
			} else {
				verdict := "invalid"
				if result.Valid {
					verdict = "valid"
				}
				if _, writeErr := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s) %s\n", result.Platform, verdict, result.Status, result.Message); writeErr != nil {
					return writeErr
				}
			}

			return err
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "Platform ID (default: first configured platform)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the result as JSON")

	return cmd
}

func newCookiesCmd(app *app) *cobra.Command {
	var platformID string

	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Print the stored cookies as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := app.service.GetCookies(cmd.Context(), resolvePlatform(app, platformID))
			if errors.Is(err, domain.ErrNoTokens) {
				return fmt.Errorf("no cookies found, run qk challenge first: %w", err)
			}
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), tokens)
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "Platform ID (default: first configured platform)")

	return cmd
}
