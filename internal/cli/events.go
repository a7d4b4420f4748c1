package cli

import (
	"atelier/internal/store"

	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	var (
		limit    int
		resource string
		recordID int64
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the workspace event log",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if resource != "" {
				res, err := lookupResource(resource)
				if err != nil {
					return writeErr(cmd, err)
				}
				resource = res.Name
			}
			evs, err := s.ListEvents(cmd.Context(), store.EventFilter{Resource: resource, RecordID: recordID, Limit: limit})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": evs})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 200, "Max events to return (0 = all)")
	listCmd.Flags().StringVar(&resource, "resource", "", "Only events for this resource")
	listCmd.Flags().Int64Var(&recordID, "id", 0, "Only events for this record id")

	cmd.AddCommand(listCmd)
	return cmd
}
