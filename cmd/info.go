package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/geotable"
	"github.com/sells-group/geotable/internal/pipeline"
)

var infoRows int

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Summarize a dataset",
	Long:  "Prints row and column counts, coordinate system, geometry types, bounding box, and a preview of the first rows.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := pipeline.LoadTable(cmd.Context(), args[0], pipeline.LoadOptions{
			DefaultEPSG: cfg.Convert.DefaultEPSG,
		})
		if err != nil {
			return err
		}
		return printInfo(os.Stdout, t, displayOptions{MaxRows: infoRows})
	},
}

// displayOptions controls table rendering. Callers pass it explicitly; there
// is no process-wide display state.
type displayOptions struct {
	MaxRows  int
	MaxWidth int
}

func printInfo(w io.Writer, t *geotable.GeoTable, opts displayOptions) error {
	fmt.Fprintf(w, "records:  %d\n", t.Len())
	fmt.Fprintf(w, "columns:  %s\n", strings.Join(t.Columns(), ", "))
	if t.HasGeometry() {
		fmt.Fprintf(w, "crs:      %s (%s)\n", t.CoordSystem(), t.CoordSystem().Name)
		fmt.Fprintf(w, "geometry: %s\n", strings.Join(geometryTypes(t), ", "))
		if minX, minY, maxX, maxY, ok := tableBounds(t); ok {
			fmt.Fprintf(w, "bbox:     [%g, %g, %g, %g]\n", minX, minY, maxX, maxY)
		}
	} else {
		fmt.Fprintln(w, "geometry: none")
	}
	fmt.Fprintln(w)
	return printRecords(w, t, opts)
}

func printRecords(w io.Writer, t *geotable.GeoTable, opts displayOptions) error {
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = 10
	}
	maxWidth := opts.MaxWidth
	if maxWidth <= 0 {
		maxWidth = 32
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	cols := t.Columns()
	fmt.Fprintln(tw, strings.Join(cols, "\t"))

	n := t.Len()
	if n > maxRows {
		n = maxRows
	}
	for i := 0; i < n; i++ {
		rec := t.Record(i)
		cells := make([]string, 0, len(cols))
		for _, col := range cols {
			v := rec.Value(col)
			if col == geotable.GeometryColumn {
				v = rec.Geom
			}
			cells = append(cells, renderValue(v, maxWidth))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if t.Len() > maxRows {
		fmt.Fprintf(tw, "… %d more rows\n", t.Len()-maxRows)
	}
	return tw.Flush()
}

func renderValue(v any, maxWidth int) string {
	var s string
	switch x := v.(type) {
	case nil:
		s = ""
	case geom.T:
		s = geometryTypeName(x)
	default:
		s = fmt.Sprint(x)
	}
	if r := []rune(s); len(r) > maxWidth {
		s = string(r[:maxWidth-1]) + "…"
	}
	return s
}

func geometryTypes(t *geotable.GeoTable) []string {
	seen := map[string]struct{}{}
	for _, g := range t.Geometries() {
		if g == nil {
			continue
		}
		seen[geometryTypeName(g)] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func geometryTypeName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	}
	return fmt.Sprintf("%T", g)
}

func tableBounds(t *geotable.GeoTable) (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, g := range t.Geometries() {
		if g == nil {
			continue
		}
		b := g.Bounds()
		minX = math.Min(minX, b.Min(0))
		minY = math.Min(minY, b.Min(1))
		maxX = math.Max(maxX, b.Max(0))
		maxY = math.Max(maxY, b.Max(1))
		ok = true
	}
	return minX, minY, maxX, maxY, ok
}

func init() {
	infoCmd.Flags().IntVar(&infoRows, "rows", 10, "preview row count")
	rootCmd.AddCommand(infoCmd)
}
