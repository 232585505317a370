package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geotable/internal/pipeline"
)

var (
	batchConcurrency int
	batchFormat      string
	batchTargetEPSG  int
)

var batchCmd = &cobra.Command{
	Use:   "batch <indir> <outdir>",
	Short: "Convert every supported dataset in a directory",
	Long:  "Converts each .shp/.geojson/.json file in the input directory to the chosen output format, running conversions concurrently.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		inDir, outDir := args[0], args[1]
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrapf(err, "geotable: create %s", outDir)
		}

		entries, err := os.ReadDir(inDir)
		if err != nil {
			return eris.Wrapf(err, "geotable: read %s", inDir)
		}

		var inputs []string
		for _, e := range entries {
			if e.IsDir() || pipeline.Format(e.Name()) == "" {
				continue
			}
			inputs = append(inputs, filepath.Join(inDir, e.Name()))
		}
		if len(inputs) == 0 {
			fmt.Fprintln(os.Stderr, "No supported datasets found.")
			return nil
		}

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.MaxConcurrentFiles
		}
		zap.L().Info("batch convert",
			zap.Int("files", len(inputs)),
			zap.Int("concurrency", concurrency),
		)

		st, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		var succeeded, failed atomic.Int64
		for _, in := range inputs {
			g.Go(func() error {
				log := zap.L().With(zap.String("file", in))

				out := filepath.Join(outDir, outputName(in, batchFormat))
				t, datasetID, err := loadTable(gctx, st, in, pipeline.LoadOptions{
					TargetEPSG: batchTargetEPSG,
				})
				if err == nil {
					err = storeTable(gctx, st, datasetID, t, out)
				}
				if err != nil {
					failed.Add(1)
					log.Error("convert failed", zap.Error(err))
					return nil // don't abort the batch on individual failure
				}

				succeeded.Add(1)
				log.Info("converted", zap.String("out", out), zap.Int("records", t.Len()))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("batch done: %d converted, %d failed\n", succeeded.Load(), failed.Load())
		if failed.Load() > 0 {
			return eris.Errorf("geotable: %d of %d conversions failed", failed.Load(), len(inputs))
		}
		return nil
	},
}

// outputName swaps the extension for the target format's.
func outputName(in, format string) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	switch format {
	case "shapefile":
		return base + ".shp"
	case "xlsx":
		return base + ".xlsx"
	default:
		return base + ".geojson"
	}
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent conversions (default from config)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "geojson", "output format: geojson, shapefile, xlsx")
	batchCmd.Flags().IntVar(&batchTargetEPSG, "target-epsg", 0, "reproject each dataset")
	rootCmd.AddCommand(batchCmd)
}
