package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/enso/internal/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of enso",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return printJSON(cmd, version.Fields())
			}
			fmt.Fprintln(out(cmd), version.Info())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build info as JSON")
	return cmd
}
