package cli

import (
	"errors"
	"fmt"
	"strings"

	"atelier/internal/format"
	"atelier/internal/model"
	"atelier/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRecordsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record"},
		Short:   "Create, inspect, reorder and duplicate records",
	}
	cmd.AddCommand(newRecordsListCmd(app))
	cmd.AddCommand(newRecordsShowCmd(app))
	cmd.AddCommand(newRecordsCreateCmd(app))
	cmd.AddCommand(newRecordsUpdateCmd(app))
	cmd.AddCommand(newRecordsDeleteCmd(app))
	cmd.AddCommand(newRecordsMoveCmd(app))
	cmd.AddCommand(newRecordsDuplicateCmd(app))
	return cmd
}

// recordOut adds display-only fields to a record.
type recordOut struct {
	model.Record
	Display map[string]string `json:"display,omitempty"`
}

func toRecordOut(res model.Resource, r model.Record) recordOut {
	out := recordOut{Record: r}
	for _, f := range res.Fields {
		if f.Kind != model.FieldMoney {
			continue
		}
		if cents, err := format.ParseMoney(r.Field(f.Name)); err == nil {
			if out.Display == nil {
				out.Display = map[string]string{}
			}
			out.Display[f.Name] = format.Money(cents, r.Field("currency"))
		}
	}
	return out
}

func lookupResource(name string) (model.Resource, error) {
	res, ok := model.FindResource(name)
	if !ok {
		names := []string{}
		for _, r := range model.Resources() {
			names = append(names, r.Name)
		}
		return model.Resource{}, fmt.Errorf("unknown resource %q (expected one of: %s)", name, strings.Join(names, ", "))
	}
	return res, nil
}

// parseSets turns repeated --set key=value flags into a field map.
func parseSets(res model.Resource, sets []string) (map[string]string, error) {
	out := map[string]string{}
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q (expected field=value)", kv)
		}
		if _, known := res.Field(k); !known {
			return nil, fmt.Errorf("%s has no field %q", res.Name, k)
		}
		out[k] = v
	}
	return out, nil
}

func newRecordsListCmd(app *App) *cobra.Command {
	var (
		query   string
		page    int
		perPage int
	)
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List records in rank order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			p, err := s.ListRecords(cmd.Context(), res.Name, store.ListOptions{Query: query, Page: page, PerPage: perPage})
			if err != nil {
				return writeErr(cmd, err)
			}
			recs := make([]recordOut, 0, len(p.Records))
			for _, r := range p.Records {
				recs = append(recs, toRecordOut(res, r))
			}
			return writeOut(cmd, app, map[string]any{
				"data": recs,
				"meta": map[string]any{
					"total":   p.Total,
					"page":    p.Page,
					"perPage": p.PerPage,
					"hasNext": p.HasNext(),
				},
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Case-insensitive title filter")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", store.DefaultPerPage, "Records per page")
	return cmd
}

func newRecordsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <resource> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := parseID(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			r, err := s.GetRecord(cmd.Context(), res.Name, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			evs, err := s.ListEvents(cmd.Context(), store.EventFilter{Resource: res.Name, RecordID: id, Limit: 20})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": toRecordOut(res, r),
				"meta": map[string]any{"history": evs},
			})
		},
	}
}

func newRecordsCreateCmd(app *App) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:     "create <resource> --set field=value ...",
		Short:   "Create a record",
		Example: `  atelier records create tags --set name=Print --set slug=print`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			fields, err := parseSets(res, sets)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			r, err := s.CreateRecord(cmd.Context(), app.actorID(), res.Name, fields)
			if err != nil {
				return writeFieldErr(cmd, app, err)
			}
			app.log().Info("record created", zap.String("resource", res.Name), zap.Int64("id", r.ID))
			return writeOut(cmd, app, map[string]any{"data": toRecordOut(res, r)})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as field=value (repeatable)")
	return cmd
}

func newRecordsUpdateCmd(app *App) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "update <resource> <id> --set field=value ...",
		Short: "Update fields of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := parseID(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			patch, err := parseSets(res, sets)
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(patch) == 0 {
				return writeErr(cmd, errors.New("nothing to update (pass --set field=value)"))
			}
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			r, err := s.UpdateRecord(cmd.Context(), app.actorID(), res.Name, id, patch)
			if err != nil {
				return writeFieldErr(cmd, app, err)
			}
			return writeOut(cmd, app, map[string]any{"data": toRecordOut(res, r)})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as field=value (repeatable)")
	return cmd
}

func newRecordsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := parseID(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.DeleteRecord(cmd.Context(), app.actorID(), res.Name, id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"resource": res.Name, "id": id, "deleted": true}})
		},
	}
}

func newRecordsMoveCmd(app *App) *cobra.Command {
	var before, after int64
	cmd := &cobra.Command{
		Use:   "move <resource> <id> (--before <id> | --after <id>)",
		Short: "Reorder a record relative to a sibling",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := parseID(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			if (before == 0) == (after == 0) {
				return writeErr(cmd, errors.New("pass exactly one of --before or --after"))
			}
			s, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			r, err := s.MoveRecord(cmd.Context(), app.actorID(), res.Name, id, store.MoveOptions{BeforeID: before, AfterID: after})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": toRecordOut(res, r)})
		},
	}
	cmd.Flags().Int64Var(&before, "before", 0, "Place the record directly before this id")
	cmd.Flags().Int64Var(&after, "after", 0, "Place the record directly after this id")
	return cmd
}

// writeFieldErr prints validation failures as a data envelope on stdout so
// scripts can read them, then fails the command.
func writeFieldErr(cmd *cobra.Command, app *App, err error) error {
	var fe model.FieldErrors
	if errors.As(err, &fe) {
		_ = writeOut(cmd, app, map[string]any{"data": nil, "errors": fe})
	}
	return writeErr(cmd, err)
}
