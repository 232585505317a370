package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geotable/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the dataset catalog",
	Long:  "Commands for listing datasets the pipeline has processed and the operations applied to them.",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("geotable: catalog is disabled (catalog.driver=off)")
		}
		defer st.Close()

		format, _ := cmd.Flags().GetString("format")
		limit, _ := cmd.Flags().GetInt("limit")

		datasets, err := st.ListDatasets(ctx, catalog.DatasetFilter{Format: format, Limit: limit})
		if err != nil {
			return err
		}
		if len(datasets) == 0 {
			fmt.Fprintln(os.Stderr, "No datasets recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPATH\tFORMAT\tEPSG\tRECORDS\tCREATED")
		for _, d := range datasets {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				d.ID, d.Path, d.Format, d.EPSG, d.Records,
				d.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var catalogOpsCmd = &cobra.Command{
	Use:   "ops <dataset-id>",
	Short: "List operations recorded against a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("geotable: catalog is disabled (catalog.driver=off)")
		}
		defer st.Close()

		ops, err := st.ListOperations(ctx, args[0])
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Fprintln(os.Stderr, "No operations recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tSTATUS\tTOOK\tERROR")
		for _, op := range ops {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				op.Kind, op.Status,
				op.FinishedAt.Sub(op.StartedAt).Round(time.Millisecond),
				op.Error)
		}
		return tw.Flush()
	},
}

func init() {
	catalogListCmd.Flags().String("format", "", "filter by format")
	catalogListCmd.Flags().Int("limit", 50, "max datasets to list")
	catalogCmd.AddCommand(catalogListCmd, catalogOpsCmd)
	rootCmd.AddCommand(catalogCmd)
}
