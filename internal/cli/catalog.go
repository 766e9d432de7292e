package cli

import (
	"fmt"
	"text/tabwriter"

	"UrbanPull/internal/domain/models"

	"github.com/spf13/cobra"
)

func newCatalogCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List documented indicators and administrative levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, map[string]interface{}{
					"indicators":   models.Catalog(),
					"admin_levels": models.AdminLevels(),
				})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tUNIT\tDESCRIPTION")
			for _, info := range models.Catalog() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Code, info.Unit, info.Description)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "LEVEL\tNAME\t")
			for _, l := range models.AdminLevels() {
				fmt.Fprintf(tw, "%d\t%s\t\n", l.Code, l.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
