package cli

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soyeahso/enso/internal/app"
	"github.com/soyeahso/enso/internal/gateway"
	"github.com/soyeahso/enso/internal/settings"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List, detect and choose agent CLIs",
	}

	cmd.AddCommand(newAgentsListCmd())
	cmd.AddCommand(newAgentsDetectCmd())
	cmd.AddCommand(newAgentsDefaultCmd())
	return cmd
}

func newAgentsListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				entries := gateway.ListAgents(a.Store.Snapshot())
				if asJSON {
					return printJSON(cmd, entries)
				}
				return printAgents(cmd, entries)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printAgents(cmd *cobra.Command, entries []gateway.AgentEntry) error {
	tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENABLED\tDEFAULT\tINSTALLED\tVERSION")
	for _, e := range entries {
		installed, ver := "?", ""
		if e.Detection != nil {
			installed = yesNo(e.Detection.Installed)
			ver = e.Detection.Version
			if e.Detection.IsWSL {
				ver += " (wsl)"
			}
		}
		def := ""
		if e.IsDefault {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, yesNo(e.Enabled), def, installed, ver)
	}
	return tw.Flush()
}

func newAgentsDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Probe agent CLIs and store the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				results := a.DetectAgents(ctx)
				if err := a.Store.Flush(ctx); err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tINSTALLED\tVERSION\tPATH")
				for _, id := range sortedIDs(results) {
					r := results[id]
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, yesNo(r.Installed), r.Version, r.Path)
				}
				return tw.Flush()
			})
		},
	}
}

func newAgentsDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <id>",
		Short: "Make an enabled agent the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.SetDefaultAgent(args[0]); err != nil {
					return err
				}
				if err := a.Store.Flush(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Default agent: %s\n", args[0])
				return nil
			})
		},
	}
}

func sortedIDs(m map[string]settings.AgentDetectionInfo) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
