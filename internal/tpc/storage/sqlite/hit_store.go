package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

func parseModule(s string) (hits.Module, error) {
	switch s {
	case "main":
		return hits.ModuleMain, nil
	case "aux":
		return hits.ModuleAux, nil
	}
	return 0, fmt.Errorf("unknown hit module %q", s)
}

// InsertHits stores the hits of an event, creating the event if needed.
// Main and aux hits may be mixed; each keeps its module.
func (s *Store) InsertHits(ctx context.Context, eventID int64, hs []*hits.Hit) error {
	return s.withTx(ctx, "insert hits", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tpc_events (event_id, created_at) VALUES (?, ?)`,
			eventID, time.Now().UnixNano(),
		); err != nil {
			return fmt.Errorf("insert event %d: %w", eventID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tpc_hits (
				event_id, module, hit_id, row_index, layer_index, detector_id,
				x, y, z, charge
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare hit insert: %w", err)
		}
		defer stmt.Close()

		for _, h := range hs {
			if _, err := stmt.ExecContext(ctx,
				eventID, h.Module.String(), h.ID, h.Row, h.Layer, h.DetectorID,
				h.Position.X, h.Position.Y, h.Position.Z, h.Charge,
			); err != nil {
				return fmt.Errorf("insert hit %s: %w", h, err)
			}
		}
		tracef("event %d: inserted %d hits", eventID, len(hs))
		return nil
	})
}

// EventIDs returns every stored event id in ascending order.
func (s *Store) EventIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id FROM tpc_events ORDER BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadEvent returns fresh hits of an event split by module, each in
// insertion order.
func (s *Store) LoadEvent(ctx context.Context, eventID int64) (mainHits, aux []*hits.Hit, err error) {
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tpc_events WHERE event_id = ?`, eventID).Scan(&exists)
	if err != nil {
		return nil, nil, fmt.Errorf("query event %d: %w", eventID, err)
	}
	if exists == 0 {
		return nil, nil, fmt.Errorf("event %d not found", eventID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT module, hit_id, row_index, layer_index, detector_id, x, y, z, charge
		FROM tpc_hits
		WHERE event_id = ?
		ORDER BY rowid`, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("query hits of event %d: %w", eventID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			module                string
			id, row, layer, detID int
			x, y, z, charge       float64
		)
		if err := rows.Scan(&module, &id, &row, &layer, &detID, &x, &y, &z, &charge); err != nil {
			return nil, nil, fmt.Errorf("scan hit: %w", err)
		}
		m, err := parseModule(module)
		if err != nil {
			return nil, nil, err
		}
		pos := r3.Vec{X: x, Y: y, Z: z}
		if m == hits.ModuleAux {
			aux = append(aux, hits.NewAux(id, detID, pos, charge))
			continue
		}
		h := hits.New(id, row, layer, pos, charge)
		h.DetectorID = detID
		mainHits = append(mainHits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return mainHits, aux, nil
}

// DeleteEvent removes an event with its hits.
func (s *Store) DeleteEvent(ctx context.Context, eventID int64) error {
	return retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM tpc_events WHERE event_id = ?`, eventID)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("event %d not found", eventID)
		}
		return nil
	})
}
