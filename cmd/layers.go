package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/layers"
	"github.com/trailworks/trailnet/internal/model"
)

var layersManifest string

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Manage the administrative polygon layers",
}

var layersLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import the polygon layers listed in the manifest",
	Long: `Reads layers.yaml, fetches each layer's shapefile (local path, zip archive,
or http/ftp URL), and upserts the polygons into the cities, districts, and
restricted_areas tables. Existing segments are not relinked; rerun
"segment update" to refresh boundary events against reloaded layers.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		manifestPath := layersManifest
		if manifestPath == "" {
			manifestPath = cfg.Layers.Manifest
		}
		m, err := layers.LoadManifest(manifestPath)
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		im := layers.NewImporter(st, cfg.Layers.CacheDir)
		results, err := im.Load(cmd.Context(), m)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("%s: %d areas\n", r.Layer, r.Areas)
		}
		return nil
	},
}

var layersFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and extract the layer archives without loading them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		manifestPath := layersManifest
		if manifestPath == "" {
			manifestPath = cfg.Layers.Manifest
		}
		m, err := layers.LoadManifest(manifestPath)
		if err != nil {
			return err
		}
		fetcher := layers.NewFetcher(cfg.Layers.CacheDir)
		for _, src := range m.Layers {
			shpPath, err := fetcher.Resolve(cmd.Context(), src.Source)
			if err != nil {
				return err
			}
			zap.L().Info("layer fetched",
				zap.String("layer", string(src.Layer)),
				zap.String("path", shpPath),
			)
			fmt.Printf("%s: %s\n", src.Layer, shpPath)
		}
		return nil
	},
}

var layersStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored area count per layer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := layers.NewImporter(st, cfg.Layers.CacheDir).Status(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LAYER\tAREAS")
		for _, layer := range model.Layers() {
			fmt.Fprintf(w, "%s\t%d\n", layer, counts[layer])
		}
		return w.Flush()
	},
}

func init() {
	layersCmd.PersistentFlags().StringVar(&layersManifest, "manifest", "", "layer manifest path (default from config)")
	layersCmd.AddCommand(layersLoadCmd, layersFetchCmd, layersStatusCmd)
	rootCmd.AddCommand(layersCmd)
}
