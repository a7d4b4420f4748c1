package store

import (
	"context"
	"encoding/json"
	"time"

	"atelier/internal/model"

	"github.com/google/uuid"
)

func appendEvent(ctx context.Context, x execer, actorID, typ, resource string, recordID int64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = x.ExecContext(ctx, `INSERT INTO events(id, actor_id, type, resource, record_id, payload_json, created_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), actorID, typ, resource, recordID, string(raw), time.Now().UTC().UnixMilli())
	return err
}

type EventFilter struct {
	Resource string
	RecordID int64
	Limit    int
}

// ListEvents returns the newest events first.
func (s Store) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := `SELECT id, actor_id, type, resource, record_id, payload_json, created_at_unixms FROM events WHERE 1=1`
	var args []any
	if f.Resource != "" {
		q += ` AND resource = ?`
		args = append(args, f.Resource)
	}
	if f.RecordID != 0 {
		q += ` AND record_id = ?`
		args = append(args, f.RecordID)
	}
	// rowid breaks ties between events written in the same millisecond.
	q += ` ORDER BY created_at_unixms DESC, rowid DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var (
			ev      model.Event
			payload string
			ms      int64
		)
		if err := rows.Scan(&ev.ID, &ev.ActorID, &ev.Type, &ev.Resource, &ev.RecordID, &payload, &ms); err != nil {
			return nil, err
		}
		var p any
		if err := json.Unmarshal([]byte(payload), &p); err == nil {
			ev.Payload = p
		}
		ev.TS = time.UnixMilli(ms).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
