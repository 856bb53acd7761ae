package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

var (
	segmentWKT     string
	segmentGeoJSON string
	segmentName    string
	segmentComment string
	segmentBBox    string
	segmentLimit   int
	segmentOffset  int
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Manage path segments",
}

var segmentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Insert a segment",
	Long: `Validates the geometry (simple, no linear overlap with existing segments),
drapes it over the elevation model, and derives boundary events against the
administrative layers. The whole pipeline runs in one transaction.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		line, err := readLineGeometry(segmentWKT, segmentGeoJSON)
		if err != nil {
			return err
		}
		eng, st, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		seg := &model.PathSegment{Name: segmentName, Comment: segmentComment, Geom: line}
		if err := eng.InsertSegment(cmd.Context(), seg); err != nil {
			return err
		}
		fmt.Printf("segment %d created (uuid %s, length 3D %.1f m)\n", seg.ID, seg.UUID, seg.Length3D)
		return nil
	},
}

var segmentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a segment's geometry",
	Long: `Replaces the geometry and reruns the derivation pipeline: validation,
elevation profile, boundary event regeneration, and resynchronization of the
manual events linked to the segment.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		line, err := readLineGeometry(segmentWKT, segmentGeoJSON)
		if err != nil {
			return err
		}
		eng, st, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		seg, err := eng.UpdateSegmentGeometry(cmd.Context(), id, line)
		if err != nil {
			return err
		}
		fmt.Printf("segment %d updated (length 3D %.1f m)\n", seg.ID, seg.Length3D)
		return nil
	},
}

var segmentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a segment and cascade to its events and routes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		eng, st, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := eng.DeleteSegment(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("segment %d deleted\n", id)
		return nil
	},
}

var segmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List segments",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.SegmentFilter{Limit: segmentLimit, Offset: segmentOffset}
		if segmentBBox != "" {
			bbox, err := parseBBoxFlag(segmentBBox)
			if err != nil {
				return err
			}
			filter.BBox = bbox
		}
		segs, err := st.ListSegments(cmd.Context(), filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLENGTH 3D\tELEV MIN\tELEV MAX\tASCENT\tDESCENT")
		for _, s := range segs {
			fmt.Fprintf(w, "%d\t%s\t%.1f\t%d\t%d\t%d\t%d\n",
				s.ID, s.Name, s.Length3D, s.ElevationMin, s.ElevationMax, s.Ascent, s.Descent)
		}
		return w.Flush()
	},
}

var segmentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one segment with its geometry and linked events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return eris.New("segment id required")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		seg, err := st.GetSegment(cmd.Context(), id)
		if err != nil {
			return err
		}
		events, err := st.EventsForSegment(cmd.Context(), id)
		if err != nil {
			return err
		}
		links, err := st.LinksForSegment(cmd.Context(), id)
		if err != nil {
			return err
		}

		geomWKT, err := wkt.Marshal(seg.Geom)
		if err != nil {
			return eris.Wrap(err, "marshal geometry")
		}
		out := map[string]any{
			"segment":  seg,
			"geometry": geomWKT,
			"events":   events,
			"links":    links,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func parseBBoxFlag(raw string) (*[4]float64, error) {
	var bbox [4]float64
	if _, err := fmt.Sscanf(raw, "%f,%f,%f,%f", &bbox[0], &bbox[1], &bbox[2], &bbox[3]); err != nil {
		return nil, eris.New("bbox must be minx,miny,maxx,maxy")
	}
	if bbox[0] > bbox[2] || bbox[1] > bbox[3] {
		return nil, eris.New("bbox min exceeds max")
	}
	return &bbox, nil
}

func init() {
	for _, c := range []*cobra.Command{segmentAddCmd, segmentUpdateCmd} {
		c.Flags().StringVar(&segmentWKT, "wkt", "", "geometry as inline WKT (LINESTRING ...)")
		c.Flags().StringVar(&segmentGeoJSON, "geojson", "", "geometry as a GeoJSON file")
	}
	segmentAddCmd.Flags().StringVar(&segmentName, "name", "", "segment name")
	segmentAddCmd.Flags().StringVar(&segmentComment, "comment", "", "free-form comment")
	segmentListCmd.Flags().StringVar(&segmentBBox, "bbox", "", "filter by bounding box minx,miny,maxx,maxy")
	segmentListCmd.Flags().IntVar(&segmentLimit, "limit", 0, "max rows")
	segmentListCmd.Flags().IntVar(&segmentOffset, "offset", 0, "rows to skip")

	segmentCmd.AddCommand(segmentAddCmd, segmentUpdateCmd, segmentDeleteCmd, segmentListCmd, segmentShowCmd)
	rootCmd.AddCommand(segmentCmd)
}
