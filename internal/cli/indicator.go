package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"UrbanPull/internal/domain/models"

	"github.com/spf13/cobra"
)

type indicatorFlags struct {
	indicator  string
	adminLevel int
	taxonomy   string
	category   string
	period     string
	dryRun     bool
}

// dryRunReport is printed by --dry-run.
type dryRunReport struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
	Query   string   `json:"query"`
}

func newIndicatorCommand(configPath *string, open SourceFactory) *cobra.Command {
	f := &indicatorFlags{}
	cmd := &cobra.Command{
		Use:   "indicator",
		Short: "Fetch one indicator",
		Long: `Fetch one indicator and print the raw JSON payload.

--indicator and --admin-level are required; --admin-level 0 (country) is valid.
--category is accepted as an alias of --taxonomy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ind, err := f.descriptor(cmd)
			if err != nil {
				return err
			}
			if f.dryRun {
				return printDryRun(cmd.OutOrStdout(), ind)
			}
			// Reject incomplete descriptors before touching config or network.
			if err := ind.Validate(); err != nil {
				return err
			}

			src, err := open(*configPath)
			if err != nil {
				return fmt.Errorf("open uda client: %w", err)
			}
			snap, err := src.Fetch(cmd.Context(), ind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap.Payload)
		},
	}

	cmd.Flags().StringVar(&f.indicator, "indicator", "", "indicator code, e.g. s_p")
	cmd.Flags().IntVar(&f.adminLevel, "admin-level", 0, "administrative level 0 (country) to 5 (neighborhood)")
	cmd.Flags().StringVar(&f.taxonomy, "taxonomy", "", "taxonomy/category code")
	cmd.Flags().StringVar(&f.category, "category", "", "alias of --taxonomy")
	cmd.Flags().StringVar(&f.period, "period", "", "period code, e.g. 2017Q2; latest when empty")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print validity and encoded parameters without calling the API")
	return cmd
}

// descriptor builds the descriptor from flags. The admin level is only set
// when the flag was given, so an omitted level is reported as missing.
func (f *indicatorFlags) descriptor(cmd *cobra.Command) (*models.Indicator, error) {
	taxonomy, err := models.ResolveTaxonomy(f.taxonomy, f.category)
	if err != nil {
		return nil, fmt.Errorf("--taxonomy %q and --category %q: %w", f.taxonomy, f.category, err)
	}
	ind := &models.Indicator{Indicator: f.indicator, Taxonomy: taxonomy, Period: f.period}
	if cmd.Flags().Changed("admin-level") {
		ind.SetAdminLevel(models.AdminLevel(f.adminLevel))
	}
	return ind, nil
}

func printDryRun(w io.Writer, ind *models.Indicator) error {
	report := dryRunReport{
		Valid:   ind.Valid(),
		Missing: models.MissingFields(ind),
		Query:   ind.Params().Encode(),
	}
	if err := printJSON(w, report); err != nil {
		return err
	}
	return ind.Validate()
}

func printJSON(w io.Writer, v interface{}) error {
	if raw, ok := v.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := w.Write(buf.Bytes())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
