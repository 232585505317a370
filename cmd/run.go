package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/geotable/internal/pipeline"
)

var runPreview bool

var runCmd = &cobra.Command{
	Use:   "run <pipeline.yaml>",
	Short: "Run a declarative pipeline",
	Long:  "Executes a YAML pipeline definition: load, then optional clean, transform, query, and store stages, in that order.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		spec, err := pipeline.ParseFile(args[0])
		if err != nil {
			return err
		}

		st, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		result, err := pipeline.NewRunner(st).Run(ctx, spec)
		if err != nil {
			return err
		}

		fmt.Printf("pipeline %q finished with %d records\n", spec.Name, result.Len())
		if runPreview {
			return printInfo(os.Stdout, result, displayOptions{})
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runPreview, "preview", false, "print a summary of the resulting table")
	rootCmd.AddCommand(runCmd)
}
