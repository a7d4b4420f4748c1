package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier/internal/model"

	"go.uber.org/zap"
)

const DefaultPerPage = 20

type ListOptions struct {
	// Query is a case-insensitive substring filter on the record title.
	Query   string
	Page    int
	PerPage int
}

type Page struct {
	Records []model.Record `json:"records"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"perPage"`
}

func (p Page) HasNext() bool { return p.Page*p.PerPage < p.Total }
func (p Page) HasPrev() bool { return p.Page > 1 }

type MoveOptions struct {
	// Exactly one of BeforeID/AfterID must be set.
	BeforeID int64
	AfterID  int64
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func lookupResource(name string) (model.Resource, error) {
	res, ok := model.FindResource(name)
	if !ok {
		return model.Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return res, nil
}

const recordColumns = `id, resource, title, rank, fields_json, created_by, created_at_unixms, updated_at_unixms`

func scanRecord(sc interface{ Scan(...any) error }) (model.Record, error) {
	var (
		r          model.Record
		fieldsJSON string
		createdMs  int64
		updatedMs  int64
	)
	if err := sc.Scan(&r.ID, &r.Resource, &r.Title, &r.Rank, &fieldsJSON, &r.CreatedBy, &createdMs, &updatedMs); err != nil {
		return model.Record{}, err
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
		return model.Record{}, err
	}
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	r.CreatedAt = time.UnixMilli(createdMs).UTC()
	r.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return r, nil
}

func getRecord(ctx context.Context, q queryer, resource string, id int64) (model.Record, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE resource = ? AND id = ?`, resource, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, errRecordNotFound(resource, id)
	}
	return r, err
}

// resourceRecords returns every record of a resource in rank order.
func resourceRecords(ctx context.Context, q queryer, resource string) ([]model.Record, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+recordColumns+` FROM records WHERE resource = ? ORDER BY rank, id`, resource)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func insertRecord(ctx context.Context, x execer, r model.Record) (int64, error) {
	raw, err := json.Marshal(r.Fields)
	if err != nil {
		return 0, err
	}
	res, err := x.ExecContext(ctx, `INSERT INTO records(resource, title, rank, fields_json, created_by, created_at_unixms, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		r.Resource, r.Title, r.Rank, string(raw), r.CreatedBy, r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// checkUnique reports Unique fields whose value is already used by another record.
func checkUnique(res model.Resource, fields map[string]string, others []model.Record, selfID int64) error {
	errs := model.FieldErrors{}
	for _, f := range res.Fields {
		if !f.Unique || fields[f.Name] == "" {
			continue
		}
		for _, o := range others {
			if o.ID != selfID && strings.EqualFold(o.Field(f.Name), fields[f.Name]) {
				errs[f.Name] = f.Label + " is already taken"
				break
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func rankSet(records []model.Record) map[string]bool {
	out := make(map[string]bool, len(records))
	for _, r := range records {
		out[r.Rank] = true
	}
	return out
}

func (s Store) CreateRecord(ctx context.Context, actorID, resource string, fields map[string]string) (model.Record, error) {
	res, err := lookupResource(resource)
	if err != nil {
		return model.Record{}, err
	}
	fields = normalizeFields(res, fields)
	if err := ValidateFields(res, fields); err != nil {
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

	existing, err := resourceRecords(ctx, tx, res.Name)
	if err != nil {
		return model.Record{}, err
	}
	if err := checkUnique(res, fields, existing, 0); err != nil {
		return model.Record{}, err
	}
	last := ""
	if len(existing) > 0 {
		last = existing[len(existing)-1].Rank
	}
	rank, err := RankBetweenUnique(rankSet(existing), last, "")
	if err != nil {
		return model.Record{}, err
	}

	now := time.Now().UTC()
	r := model.Record{
		Resource:  res.Name,
		Title:     fields[res.TitleField],
		Rank:      rank,
		Fields:    fields,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if r.ID, err = insertRecord(ctx, tx, r); err != nil {
		return model.Record{}, err
	}
	if err := appendEvent(ctx, tx, actorID, "record.create", r.Resource, r.ID, r.Fields); err != nil {
		return model.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Record{}, err
	}
	// Round-trip through milliseconds like every later read does.
	r.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	r.UpdatedAt = r.CreatedAt
	s.log().Debug("record created", zap.String("resource", r.Resource), zap.Int64("id", r.ID))
	return r, nil
}

func (s Store) GetRecord(ctx context.Context, resource string, id int64) (model.Record, error) {
	res, err := lookupResource(resource)
	if err != nil {
		return model.Record{}, err
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return model.Record{}, err
	}
	defer db.Close()
	return getRecord(ctx, db, res.Name, id)
}

func (s Store) ListRecords(ctx context.Context, resource string, opts ListOptions) (Page, error) {
	res, err := lookupResource(resource)
	if err != nil {
		return Page{}, err
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}

	db, err := s.openSQLite(ctx)
	if err != nil {
		return Page{}, err
	}
	defer db.Close()

	where := `resource = ?`
	args := []any{res.Name}
	if q := strings.TrimSpace(opts.Query); q != "" {
		where += ` AND title LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(q)+"%")
	}

	out := Page{Page: opts.Page, PerPage: opts.PerPage, Records: []model.Record{}}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE `+where, args...).Scan(&out.Total); err != nil {
		return Page{}, err
	}

	pageArgs := append(append([]any{}, args...), opts.PerPage, (opts.Page-1)*opts.PerPage)
	rows, err := db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records WHERE `+where+` ORDER BY rank, id LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return Page{}, err
		}
		out.Records = append(out.Records, r)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// UpdateRecord applies a partial field update; keys absent from patch keep their value.
func (s Store) UpdateRecord(ctx context.Context, actorID, resource string, id int64, patch map[string]string) (model.Record, error) {
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

	r, err := getRecord(ctx, tx, res.Name, id)
	if err != nil {
		return model.Record{}, err
	}
	merged := make(map[string]string, len(r.Fields)+len(patch))
	for k, v := range r.Fields {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	merged = normalizeFields(res, merged)
	if err := ValidateFields(res, merged); err != nil {
		return model.Record{}, err
	}
	existing, err := resourceRecords(ctx, tx, res.Name)
	if err != nil {
		return model.Record{}, err
	}
	if err := checkUnique(res, merged, existing, r.ID); err != nil {
		return model.Record{}, err
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return model.Record{}, err
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE records SET title = ?, fields_json = ?, updated_at_unixms = ? WHERE id = ?`,
		merged[res.TitleField], string(raw), now.UnixMilli(), r.ID); err != nil {
		return model.Record{}, err
	}
	if err := appendEvent(ctx, tx, actorID, "record.update", res.Name, r.ID, patch); err != nil {
		return model.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Record{}, err
	}
	r.Fields = merged
	r.Title = merged[res.TitleField]
	r.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return r, nil
}

func (s Store) DeleteRecord(ctx context.Context, actorID, resource string, id int64) error {
	res, err := lookupResource(resource)
	if err != nil {
		return err
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getRecord(ctx, tx, res.Name, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, r.ID); err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, actorID, "record.delete", res.Name, r.ID, map[string]any{"title": r.Title}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log().Debug("record deleted", zap.String("resource", res.Name), zap.Int64("id", id))
	return nil
}

// MoveRecord re-ranks one record so it sorts directly before or after another
// record of the same resource.
func (s Store) MoveRecord(ctx context.Context, actorID, resource string, id int64, opts MoveOptions) (model.Record, error) {
	res, err := lookupResource(resource)
	if err != nil {
		return model.Record{}, err
	}
	if (opts.BeforeID == 0) == (opts.AfterID == 0) {
		return model.Record{}, errors.New("move: exactly one of before/after is required")
	}
	anchorID := opts.BeforeID + opts.AfterID
	if anchorID == id {
		return model.Record{}, errors.New("move: cannot move a record relative to itself")
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
	// Siblings without the moved record.
	var (
		moving   *model.Record
		siblings []model.Record
	)
	for i := range all {
		if all[i].ID == id {
			moving = &all[i]
			continue
		}
		siblings = append(siblings, all[i])
	}
	if moving == nil {
		return model.Record{}, errRecordNotFound(res.Name, id)
	}
	idx := -1
	for i := range siblings {
		if siblings[i].ID == anchorID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Record{}, errRecordNotFound(res.Name, anchorID)
	}

	lower, upper := "", ""
	if opts.AfterID != 0 {
		lower = siblings[idx].Rank
		if idx+1 < len(siblings) {
			upper = siblings[idx+1].Rank
		}
	} else {
		upper = siblings[idx].Rank
		if idx > 0 {
			lower = siblings[idx-1].Rank
		}
	}
	rank, err := RankBetweenUnique(rankSet(siblings), lower, upper)
	if err != nil {
		return model.Record{}, err
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE records SET rank = ?, updated_at_unixms = ? WHERE id = ?`, rank, now.UnixMilli(), id); err != nil {
		return model.Record{}, err
	}
	if err := appendEvent(ctx, tx, actorID, "record.reorder", res.Name, id, map[string]any{"rank": rank, "before": opts.BeforeID, "after": opts.AfterID}); err != nil {
		return model.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Record{}, err
	}
	moving.Rank = rank
	moving.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return *moving, nil
}

// CountRecords returns the number of records per resource (every catalog resource is present).
func (s Store) CountRecords(ctx context.Context) (map[string]int, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	out := map[string]int{}
	for _, r := range model.Resources() {
		out[r.Name] = 0
	}
	rows, err := db.QueryContext(ctx, `SELECT resource, COUNT(1) FROM records GROUP BY resource`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}
