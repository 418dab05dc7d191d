package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "qk",
		Short:         "QR keeper (qk): keep QR-login browser sessions alive",
		Long:          "qk (QR keeper) issues QR-code login challenges for content-platform accounts, detects when the code was scanned, stores the session cookies, and keeps the session validated, monitored and warm.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(app),
		newChallengeCmd(app),
		newStatusCmd(app),
		newValidateCmd(app),
		newCookiesCmd(app),
		newMonitorCmd(app),
		newRefreshCmd(app),
		newProbeCmd(app),
	)

	return rootCmd
}
