package cli

import (
	"atelier/internal/model"
	"atelier/internal/routes"

	"github.com/spf13/cobra"
)

type resourceOut struct {
	model.Resource
	Count  int               `json:"count"`
	Routes map[string]string `json:"routes"`
}

func newResourcesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Inspect the resource catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List resources with record counts and route names",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			counts, err := s.CountRecords(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := []resourceOut{}
			for _, res := range model.Resources() {
				rs := map[string]string{}
				for _, r := range routes.For(res.Name) {
					rs[r.Name] = r.Method + " " + r.Path
				}
				out = append(out, resourceOut{Resource: res, Count: counts[res.Name], Routes: rs})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	})
	return cmd
}
