package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

var (
	routeName      string
	routeEvent     int64
	routePublished bool
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Manage published routes",
}

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		var filter store.RouteFilter
		if cmd.Flags().Changed("published") {
			filter.Published = &routePublished
		}
		routes, err := st.ListRoutes(cmd.Context(), filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEVENT\tPUBLISHED")
		for _, rt := range routes {
			fmt.Fprintf(w, "%d\t%s\t%d\t%t\n", rt.ID, rt.Name, rt.EventID, rt.Published)
		}
		return w.Flush()
	},
}

var routesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a route keyed by an event",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := st.GetEvent(cmd.Context(), routeEvent); err != nil {
			return err
		}
		rt := &model.Route{Name: routeName, EventID: routeEvent}
		if err := st.WithTx(cmd.Context(), func(tx store.Tx) error {
			return tx.InsertRoute(cmd.Context(), rt)
		}); err != nil {
			return err
		}
		fmt.Printf("route %d created\n", rt.ID)
		return nil
	},
}

var routesPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish or unpublish a route",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		unpublish, _ := cmd.Flags().GetBool("off")
		if err := st.WithTx(cmd.Context(), func(tx store.Tx) error {
			return tx.SetRoutePublished(cmd.Context(), id, !unpublish)
		}); err != nil {
			return err
		}
		if unpublish {
			fmt.Printf("route %d unpublished\n", id)
		} else {
			fmt.Printf("route %d published\n", id)
		}
		return nil
	},
}

func init() {
	routesListCmd.Flags().BoolVar(&routePublished, "published", false, "filter by published flag")
	routesAddCmd.Flags().StringVar(&routeName, "name", "", "route name")
	routesAddCmd.Flags().Int64Var(&routeEvent, "event", 0, "event id the route is keyed by")
	_ = routesAddCmd.MarkFlagRequired("event")
	routesPublishCmd.Flags().Bool("off", false, "unpublish instead")

	routesCmd.AddCommand(routesListCmd, routesAddCmd, routesPublishCmd)
	rootCmd.AddCommand(routesCmd)
}
