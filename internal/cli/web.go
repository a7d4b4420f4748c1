package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"atelier/internal/web"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWebCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Run the web admin",
		Long: strings.TrimSpace(`
Run the server-rendered web admin for the selected workspace.

Pages update live over Server-Sent Events (Datastar); the duplicate workflow and
the JSON endpoints used by "atelier records duplicate --remote" are served here too.
`),
		Example: strings.TrimSpace(`
# Serve the current workspace on localhost
atelier web --addr 127.0.0.1:3335

# Serve a specific workspace
atelier --workspace studio web --addr :3335
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = app.config().Web.Addr
			}
			if listenAddr == "" {
				listenAddr = "127.0.0.1:3335"
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:             listenAddr,
				Dir:              s.Dir,
				Workspace:        app.Workspace,
				ActorID:          app.ActorID,
				DuplicateTimeout: app.config().Duplicate.EffectiveTimeout(),
				Logger:           app.log(),
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      listenAddr,
					"url":       "http://" + listenAddr + "/admin",
					"workspace": app.Workspace,
					"dir":       s.Dir,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "atelier web running at http://%s/admin\n", listenAddr)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Serve(gctx) })
			g.Go(func() error {
				<-gctx.Done()
				if ctx.Err() != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "shutting down")
				}
				return nil
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default: config web.addr or 127.0.0.1:3335)")
	return cmd
}
