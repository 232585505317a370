package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/geotable/internal/catalog"
	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geomops"
	"github.com/sells-group/geotable/internal/geotable"
	"github.com/sells-group/geotable/internal/pipeline"
)

var (
	queryPredicate string
	queryRefFile   string
	queryRefWKT    string
	queryRefEPSG   int
)

var queryCmd = &cobra.Command{
	Use:   "query <in> <out>",
	Short: "Filter rows by spatial relationship to a reference geometry",
	Long:  "Keeps rows whose geometry satisfies the predicate (intersects, disjoint, within, contains) against a reference geometry: the first feature of --ref-file, or --ref-wkt with --ref-epsg. The reference must be in the table's coordinate system.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pred, err := geomops.ParsePredicate(queryPredicate)
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

		t, datasetID, err := loadTable(ctx, st, args[0], pipeline.LoadOptions{})
		if err != nil {
			return err
		}

		ref, refCS, err := queryReference(cmd)
		if err != nil {
			return err
		}

		started := time.Now().UTC()
		filtered, err := geomops.FilterSpatial(t, ref, refCS, pred)
		recordOp(ctx, st, datasetID, catalog.Operation{
			Kind:      catalog.OpQuery,
			Detail:    map[string]any{"predicate": queryPredicate},
			StartedAt: started,
		}, err)
		if err != nil {
			return err
		}

		if err := storeTable(ctx, st, datasetID, filtered, args[1]); err != nil {
			return err
		}
		fmt.Printf("%d of %d records %s the reference geometry\n",
			filtered.Len(), t.Len(), queryPredicate)
		return nil
	},
}

// queryReference resolves the reference geometry from the flags.
func queryReference(cmd *cobra.Command) (geom.T, crs.CoordSystem, error) {
	switch {
	case queryRefFile != "" && queryRefWKT != "":
		return nil, crs.CoordSystem{}, eris.New("geotable: --ref-file and --ref-wkt are mutually exclusive")

	case queryRefWKT != "":
		if queryRefEPSG == 0 {
			return nil, crs.CoordSystem{}, eris.New("geotable: --ref-epsg is required with --ref-wkt")
		}
		g, err := wkt.Unmarshal(queryRefWKT)
		if err != nil {
			return nil, crs.CoordSystem{}, eris.Wrap(err, "geotable: parse --ref-wkt")
		}
		cs, err := crs.Lookup(queryRefEPSG)
		if err != nil {
			return nil, crs.CoordSystem{}, err
		}
		return g, cs, nil

	case queryRefFile != "":
		ref, err := pipeline.LoadTable(cmd.Context(), queryRefFile, pipeline.LoadOptions{
			SourceEPSG: queryRefEPSG,
		})
		if err != nil {
			return nil, crs.CoordSystem{}, err
		}
		if !ref.HasGeometry() || ref.Len() == 0 {
			return nil, crs.CoordSystem{}, eris.Wrapf(geotable.ErrInvalidGeometry,
				"geotable: reference %s has no geometry", queryRefFile)
		}
		return ref.Record(0).Geom, ref.CoordSystem(), nil
	}
	return nil, crs.CoordSystem{}, eris.New("geotable: one of --ref-file or --ref-wkt is required")
}

func init() {
	queryCmd.Flags().StringVar(&queryPredicate, "predicate", "intersects", "spatial predicate: intersects, disjoint, within, contains")
	queryCmd.Flags().StringVar(&queryRefFile, "ref-file", "", "reference dataset; its first feature is the reference geometry")
	queryCmd.Flags().StringVar(&queryRefWKT, "ref-wkt", "", "reference geometry as WKT")
	queryCmd.Flags().IntVar(&queryRefEPSG, "ref-epsg", 0, "coordinate system of the reference geometry")
	rootCmd.AddCommand(queryCmd)
}
