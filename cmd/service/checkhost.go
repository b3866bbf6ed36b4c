package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/go-request-context/internal/app"
)

func newCheckHostCmd(profile *string) *cobra.Command {
	var scheme string

	cmd := &cobra.Command{
		Use:   "check-host <host[:port]>",
		Short: "Check whether a request for host would be accepted",
		Long: "Builds a request for host without serving it and validates it against " +
			"the configured server name. Exits non-zero on a mismatch.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*profile)
			if err != nil {
				return err
			}

			a := buildApp(cfg, slog.New(slog.DiscardHandler))

			return checkHost(cmd, a, args[0], scheme)
		},
	}

	cmd.Flags().StringVar(&scheme, "scheme", "http", "request scheme, http or https")

	return cmd
}

func checkHost(cmd *cobra.Command, a *app.App, host, scheme string) error {
	rc := a.TestRequestContext("/", app.WithHost(host), app.WithScheme(scheme))
	if err := rc.Validate(); err != nil {
		return err
	}

	if a.ServerName() == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %s accepted, no server name configured\n", host)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok: %s matches %s\n", host, a.ServerName())

	return nil
}
