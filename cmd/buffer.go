package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/geotable/internal/catalog"
	"github.com/sells-group/geotable/internal/geomops"
	"github.com/sells-group/geotable/internal/pipeline"
)

var (
	bufferDistance   float64
	bufferQuadSegs   int
	bufferTargetEPSG int
)

var bufferCmd = &cobra.Command{
	Use:   "buffer <in> <out>",
	Short: "Buffer every geometry by a distance",
	Long:  "Expands each geometry by the given distance in coordinate system units. The table must be in a projected (linear-unit) coordinate system; use --target-epsg to reproject first.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		t, datasetID, err := loadTable(ctx, st, args[0], pipeline.LoadOptions{
			TargetEPSG: bufferTargetEPSG,
		})
		if err != nil {
			return err
		}

		quadSegs := bufferQuadSegs
		if quadSegs == 0 {
			quadSegs = cfg.Buffer.QuadSegs
		}

		started := time.Now().UTC()
		buffered, err := geomops.BufferTable(t, bufferDistance, quadSegs)
		recordOp(ctx, st, datasetID, catalog.Operation{
			Kind: catalog.OpTransform,
			Detail: map[string]any{
				"buffer_distance": bufferDistance,
				"quad_segs":       quadSegs,
			},
			StartedAt: started,
		}, err)
		if err != nil {
			return err
		}

		if err := storeTable(ctx, st, datasetID, buffered, args[1]); err != nil {
			return err
		}
		fmt.Printf("buffered %d records by %g %s\n",
			buffered.Len(), bufferDistance, buffered.CoordSystem().Unit)
		return nil
	},
}

func init() {
	bufferCmd.Flags().Float64Var(&bufferDistance, "distance", 0, "buffer distance in CRS units (required)")
	bufferCmd.Flags().IntVar(&bufferQuadSegs, "quad-segs", 0, "segments per quarter circle (default from config)")
	bufferCmd.Flags().IntVar(&bufferTargetEPSG, "target-epsg", 0, "reproject before buffering")
	_ = bufferCmd.MarkFlagRequired("distance")
	rootCmd.AddCommand(bufferCmd)
}
