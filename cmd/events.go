package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trailworks/trailnet/internal/export"
	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

var (
	eventKind     string
	eventState    string
	eventLimit    int
	eventOut      string
	eventSegment  int64
	eventLabel    string
	eventStartPos float64
	eventEndPos   float64
	eventOffset   float64
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect and export events",
}

var eventsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Attach a manual event to a segment",
	Long: `Positions are fractions of the segment's 2-D arc length in [0,1];
equal start and end make a point event. A nonzero --offset displaces a point
event sideways from the line (positive = left of line direction).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		eng, st, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		ev, err := eng.AddEvent(cmd.Context(), eventSegment, eventLabel, eventStartPos, eventEndPos, eventOffset)
		if err != nil {
			return err
		}
		fmt.Printf("event %d created (uuid %s)\n", ev.ID, ev.UUID)
		return nil
	},
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.EventFilter{
			Kind:  model.EventKind(eventKind),
			State: model.EventState(eventState),
			Limit: eventLimit,
		}
		events, err := st.ListEvents(cmd.Context(), filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSTATE\tLABEL\tLENGTH 3D")
		for _, ev := range events {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\n", ev.ID, ev.Kind, ev.State, ev.Label, ev.Length3D)
		}
		return w.Flush()
	},
}

var eventsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export events to an XLSX report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.EventFilter{
			Kind:  model.EventKind(eventKind),
			State: model.EventState(eventState),
		}
		n, err := export.NewExporter(st).EventsReport(cmd.Context(), eventOut, filter)
		if err != nil {
			return err
		}
		fmt.Printf("%d events written to %s\n", n, eventOut)
		return nil
	},
}

func init() {
	eventsAddCmd.Flags().Int64Var(&eventSegment, "segment", 0, "segment id")
	eventsAddCmd.Flags().StringVar(&eventLabel, "label", "", "event label")
	eventsAddCmd.Flags().Float64Var(&eventStartPos, "start", 0, "start position in [0,1]")
	eventsAddCmd.Flags().Float64Var(&eventEndPos, "end", 0, "end position in [0,1]")
	eventsAddCmd.Flags().Float64Var(&eventOffset, "offset", 0, "lateral offset in meters (point events only)")
	_ = eventsAddCmd.MarkFlagRequired("segment")

	for _, c := range []*cobra.Command{eventsListCmd, eventsExportCmd} {
		c.Flags().StringVar(&eventKind, "kind", "", "filter by kind (manual, city_edge, district_edge, restricted_area_edge)")
		c.Flags().StringVar(&eventState, "state", "", "filter by state (active, orphaned)")
	}
	eventsListCmd.Flags().IntVar(&eventLimit, "limit", 0, "max rows")
	eventsExportCmd.Flags().StringVar(&eventOut, "out", "events.xlsx", "output file")

	eventsCmd.AddCommand(eventsAddCmd, eventsListCmd, eventsExportCmd)
	rootCmd.AddCommand(eventsCmd)
}
