package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"atelier/internal/model"

	"go.uber.org/zap"
)

const copySuffix = " (Copy)"

// DuplicateRecord clones a record and places the copy directly after its
// source. Title-like fields get " (Copy)", unique fields get a free "-copy"
// variant and ResetOnCopy fields are cleared. The copy is validated like any
// other write; on failure nothing is written and model.FieldErrors is returned.
func (s Store) DuplicateRecord(ctx context.Context, actorID, resource string, id int64) (model.Record, error) {
	res, err := lookupResource(resource)
	if err != nil {
		return model.Record{}, err
	}

	db, err := s.openSQLite(ctx)
	if err != nil {
		return model.Record{}, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return model.Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	all, err := resourceRecords(ctx, tx, res.Name)
	if err != nil {
		return model.Record{}, err
	}
	idx := -1
	for i := range all {
		if all[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Record{}, errRecordNotFound(res.Name, id)
	}
	src := all[idx]

	fields := copyFields(res, src.Fields, all)
	if err := ValidateFields(res, fields); err != nil {
		return model.Record{}, err
	}

	upper := ""
	if idx+1 < len(all) {
		upper = all[idx+1].Rank
	}
	rank, err := RankBetweenUnique(rankSet(all), src.Rank, upper)
	if err != nil {
		return model.Record{}, err
	}

	now := time.Now().UTC()
	dup := model.Record{
		Resource:  res.Name,
		Title:     fields[res.TitleField],
		Rank:      rank,
		Fields:    fields,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if dup.ID, err = insertRecord(ctx, tx, dup); err != nil {
		return model.Record{}, err
	}
	if err := appendEvent(ctx, tx, actorID, "record.duplicate", res.Name, dup.ID, map[string]any{"sourceId": src.ID}); err != nil {
		return model.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Record{}, err
	}
	dup.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	dup.UpdatedAt = dup.CreatedAt
	s.log().Info("record duplicated",
		zap.String("resource", res.Name),
		zap.Int64("sourceId", src.ID),
		zap.Int64("id", dup.ID))
	return dup, nil
}

func copyFields(res model.Resource, src map[string]string, existing []model.Record) map[string]string {
	out := make(map[string]string, len(res.Fields))
	for _, f := range res.Fields {
		v := src[f.Name]
		switch {
		case f.ResetOnCopy:
			v = ""
			if f.Kind == model.FieldBool {
				v = "false"
			}
		case f.Unique && v != "":
			v = freeCopyValue(f.Name, v, existing)
		case f.CopySuffix && v != "":
			v += copySuffix
		}
		out[f.Name] = v
	}
	return out
}

// freeCopyValue returns v-copy, v-copy-2, ... whichever is not used yet.
func freeCopyValue(field, v string, existing []model.Record) string {
	taken := map[string]bool{}
	for _, r := range existing {
		taken[strings.ToLower(r.Field(field))] = true
	}
	base := v + "-copy"
	cand := base
	for n := 2; taken[strings.ToLower(cand)]; n++ {
		cand = fmt.Sprintf("%s-%d", base, n)
	}
	return cand
}
