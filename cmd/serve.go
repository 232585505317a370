package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
	"github.com/sells-group/geotable/internal/pipeline"
	"github.com/sells-group/geotable/internal/reproject"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Serve a read-only HTTP preview of a dataset",
	Long:  "Loads a dataset and serves it for inspection: /health, /collection (GeoJSON FeatureCollection in EPSG:4326), /records (attribute rows).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		t, err := pipeline.LoadTable(ctx, args[0], pipeline.LoadOptions{
			DefaultEPSG: cfg.Convert.DefaultEPSG,
		})
		if err != nil {
			return err
		}

		// GeoJSON responses are WGS84 by definition.
		preview := t
		if t.HasGeometry() && t.CoordSystem().EPSG != 4326 {
			preview, err = reproject.Table(ctx, t, crs.MustLookup(4326))
			if err != nil {
				return err
			}
		}

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{
				"status":  "ok",
				"records": t.Len(),
				"crs":     t.CoordSystem().String(),
			})
		})

		mux.HandleFunc("GET /collection", func(w http.ResponseWriter, r *http.Request) {
			if !preview.HasGeometry() {
				http.Error(w, `{"error":"dataset has no geometry"}`, http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/geo+json")
			if err := json.NewEncoder(w).Encode(featureCollection(preview)); err != nil {
				zap.L().Error("encode collection", zap.Error(err))
			}
		})

		mux.HandleFunc("GET /records", func(w http.ResponseWriter, r *http.Request) {
			rows := make([]map[string]any, 0, t.Len())
			for _, rec := range t.Records() {
				row := make(map[string]any, len(rec.Attrs))
				for _, col := range t.AttributeColumns() {
					row[col] = rec.Attrs[col]
				}
				rows = append(rows, row)
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(rows); err != nil {
				zap.L().Error("encode records", zap.Error(err))
			}
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting preview server",
			zap.Int("port", port),
			zap.String("dataset", args[0]),
			zap.Int("records", t.Len()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "geotable: server listen")
		}

		return nil
	},
}

func featureCollection(t *geotable.GeoTable) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, t.Len())}
	for _, rec := range t.Records() {
		props := make(map[string]any, len(rec.Attrs))
		for k, v := range rec.Attrs {
			props[k] = v
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   rec.Geom,
			Properties: props,
		})
	}
	return fc
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
