package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/go-request-context/internal/app"
)

func newRoutesCmd(profile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the registered views and their URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*profile)
			if err != nil {
				return err
			}

			a := buildApp(cfg, slog.New(slog.DiscardHandler))

			return printRoutes(cmd, a)
		},
	}
}

// printRoutes writes one line per route. The URL column is what URLFor
// builds outside a request, so routes with parameters show a placeholder.
func printRoutes(cmd *cobra.Command, a *app.App) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "METHOD\tPATH\tENDPOINT\tURL")

	for _, r := range a.Routes() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Method, r.Path, r.Endpoint, routeURL(cmd, a, r))
	}

	return tw.Flush()
}

func routeURL(cmd *cobra.Command, a *app.App, r app.Route) string {
	opts := []app.URLOption{}
	if a.ServerName() != "" {
		opts = append(opts, app.External())
	}

	u, err := a.URLFor(cmd.Context(), r.Endpoint, opts...)
	if err != nil {
		return "-"
	}

	return u
}

