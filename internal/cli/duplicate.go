package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"atelier/internal/client"
	"atelier/internal/duplicate"
	"atelier/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRecordsDuplicateCmd(app *App) *cobra.Command {
	var (
		undo   bool
		yes    bool
		remote string
	)
	cmd := &cobra.Command{
		Use:   "duplicate <resource> <id>",
		Short: "Duplicate a record (the copy lands right after the source)",
		Long: strings.TrimSpace(`
Runs the same duplicate workflow as the TUI and web admin: confirm, create the
copy, then optionally undo it by deleting the copy again.

With --remote the workflow talks to a running "atelier web" server instead of
the local workspace.
`),
		Example: strings.TrimSpace(`
  atelier records duplicate tags 7 --yes
  atelier records duplicate posts 3 --yes --undo
  atelier records duplicate tags 7 --yes --remote http://127.0.0.1:3335
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := parseID(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}

			var (
				backend duplicate.Backend
				title   string
			)
			if remote != "" {
				c, err := client.New(remote, app.log().Named("client"))
				if err != nil {
					return writeErr(cmd, err)
				}
				backend = c
			} else {
				s, err := openStore(app)
				if err != nil {
					return writeErr(cmd, err)
				}
				src, err := s.GetRecord(cmd.Context(), res.Name, id)
				if err != nil {
					return writeErr(cmd, err)
				}
				title = src.Title
				backend = duplicate.StoreBackend{Store: s, ActorID: app.actorID()}
			}

			// Callbacks fire before the done channel closes.
			var (
				failed  model.FieldErrors
				undoErr error
			)
			cfg, err := duplicate.NewConfig(res.Name,
				duplicate.WithLogger(app.log()),
				duplicate.WithTimeout(app.config().Duplicate.EffectiveTimeout()),
				duplicate.WithOnError(func(errs model.FieldErrors) { failed = errs }),
				duplicate.WithOnUndoError(func(err error) { undoErr = err }),
			)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctrl := duplicate.New(cfg, backend)

			in := bufio.NewReader(cmd.InOrStdin())
			if err := ctrl.RequestDuplicate(duplicate.Request{ID: id, Title: title, Resource: res.Name}); err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				ok, err := confirmPrompt(cmd, in, fmt.Sprintf("Duplicate %s #%d %s? [y/N] ", res.Singular(), id, title))
				if err != nil || !ok {
					_ = ctrl.CancelDuplicate()
					if err == nil {
						err = errAborted
					}
					return writeErr(cmd, err)
				}
			}

			done, err := ctrl.ConfirmDuplicate(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			<-done

			snap := ctrl.Snapshot()
			if snap.State != duplicate.Success {
				_ = writeOut(cmd, app, map[string]any{"data": nil, "errors": failed})
				return writeErr(cmd, fmt.Errorf("duplicate %s #%d: %w", res.Name, id, failed))
			}
			newID := snap.DuplicatedID
			app.log().Info("record duplicated", zap.String("resource", res.Name), zap.Int64("source", id), zap.Int64("id", newID))

			out := map[string]any{
				"resource": res.Name,
				"sourceId": id,
				"id":       newID,
				"edit":     cfg.EditLocation(newID),
				"undone":   false,
			}
			if !undo {
				_ = ctrl.CloseSuccess()
				return writeOut(cmd, app, map[string]any{"data": out})
			}

			if err := ctrl.SetUndoRequested(true); err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				ok, err := confirmPrompt(cmd, in, fmt.Sprintf("Delete the copy #%d? [y/N] ", newID))
				if err != nil || !ok {
					_ = ctrl.CancelUndo()
					_ = ctrl.CloseSuccess()
					if werr := writeOut(cmd, app, map[string]any{"data": out}); werr != nil || err == nil {
						return werr
					}
					return writeErr(cmd, err)
				}
			}
			done, err = ctrl.ConfirmUndoDelete(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			<-done
			if undoErr != nil {
				_ = writeOut(cmd, app, map[string]any{"data": out})
				return writeErr(cmd, fmt.Errorf("undo failed, copy #%d may still exist: %w", newID, undoErr))
			}
			out["undone"] = true
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Delete the copy again after creating it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompts")
	cmd.Flags().StringVar(&remote, "remote", envOr("ATELIER_REMOTE", ""), "Base URL of a running atelier web server")
	return cmd
}

func confirmPrompt(cmd *cobra.Command, in *bufio.Reader, prompt string) (bool, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
