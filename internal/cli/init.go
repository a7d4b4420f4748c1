package cli

import (
	"path/filepath"

	"atelier/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInitCmd(app *App) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace (optionally with demo content)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			counts, err := s.CountRecords(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}

			seeded := 0
			if seed {
				total := 0
				for _, n := range counts {
					total += n
				}
				// Seeding twice would trip unique slugs; only seed empty workspaces.
				if total == 0 {
					if seeded, err = s.Seed(cmd.Context(), app.actorID()); err != nil {
						return writeErr(cmd, err)
					}
				}
			}

			// Remember the workspace when initialising a named one for the first time.
			if app.Workspace != "" && app.config().CurrentWorkspace == "" {
				cfg := app.config()
				cfg.CurrentWorkspace = app.Workspace
				if err := store.SaveConfig(cfg); err != nil {
					app.log().Warn("save config failed", zap.Error(err))
				}
			}

			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dir":       s.Dir,
					"workspace": app.Workspace,
					"sqlite":    filepath.Join(s.Dir, "atelier.sqlite"),
					"seeded":    seeded,
				},
			})
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Insert demo content into an empty workspace")
	return cmd
}
