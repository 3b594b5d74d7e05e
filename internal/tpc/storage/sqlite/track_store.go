package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/helixtrack/internal/tpc/helix"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

// Run is one reconstruction pass over the stored events.
type Run struct {
	RunID      string `json:"run_id"`
	CreatedAt  int64  `json:"created_at"`
	ConfigJSON string `json:"config_json,omitempty"`
}

// TrackRecord is the persisted summary of a finalized track.
type TrackRecord struct {
	RunID       string  `json:"run_id"`
	EventID     int64   `json:"event_id"`
	TrackID     int     `json:"track_id"`
	Status      string  `json:"status"`
	NumHits     int     `json:"num_hits"`
	HelixRadius float64 `json:"helix_radius"`
	CenterI     float64 `json:"center_i"`
	CenterJ     float64 `json:"center_j"`
	DipSlope    float64 `json:"dip_slope"`
	Helicity    int     `json:"helicity"`
	TrackLength float64 `json:"track_length"`
	RMSW        float64 `json:"rms_w"`
	RMSH        float64 `json:"rms_h"`
	Continuity  float64 `json:"continuity"`
}

// HitRef identifies a stored hit within an event.
type HitRef struct {
	Module hits.Module
	ID     int
}

// CreateRun registers a new run and returns its id. configJSON records the
// tuning the run used and may be empty.
func (s *Store) CreateRun(ctx context.Context, configJSON string) (string, error) {
	run := Run{
		RunID:      uuid.New().String(),
		CreatedAt:  time.Now().UnixNano(),
		ConfigJSON: configJSON,
	}
	var cfg interface{}
	if configJSON != "" {
		cfg = configJSON
	}
	err := retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO tpc_runs (run_id, created_at, config_json) VALUES (?, ?, ?)`,
			run.RunID, run.CreatedAt, cfg,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	diagf("created run %s", run.RunID)
	return run.RunID, nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	var cfg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, created_at, config_json FROM tpc_runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.CreatedAt, &cfg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.ConfigJSON = cfg.String
	return &r, nil
}

// SaveTracks replaces the tracks of an event within a run. Each track is
// stored with its hits in track order.
func (s *Store) SaveTracks(ctx context.Context, runID string, eventID int64, tracks []*helix.Track) error {
	return s.withTx(ctx, "save tracks", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tpc_tracks WHERE run_id = ? AND event_id = ?`, runID, eventID,
		); err != nil {
			return fmt.Errorf("clear tracks of event %d: %w", eventID, err)
		}

		trackStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tpc_tracks (
				run_id, event_id, track_id, status, num_hits, helix_radius,
				center_i, center_j, dip_slope, helicity, track_length,
				rms_w, rms_h, continuity
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare track insert: %w", err)
		}
		defer trackStmt.Close()

		hitStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tpc_track_hits (run_id, event_id, track_id, seq, module, hit_id)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare track hit insert: %w", err)
		}
		defer hitStmt.Close()

		for _, t := range tracks {
			rec := recordOf(runID, eventID, t)
			if _, err := trackStmt.ExecContext(ctx,
				rec.RunID, rec.EventID, rec.TrackID, rec.Status, rec.NumHits, rec.HelixRadius,
				rec.CenterI, rec.CenterJ, rec.DipSlope, rec.Helicity, rec.TrackLength,
				rec.RMSW, rec.RMSH, rec.Continuity,
			); err != nil {
				return fmt.Errorf("insert track %d: %w", t.ID, err)
			}
			for seq, h := range t.Hits() {
				if _, err := hitStmt.ExecContext(ctx,
					runID, eventID, t.ID, seq, h.Module.String(), h.ID,
				); err != nil {
					return fmt.Errorf("insert hit %d of track %d: %w", h.ID, t.ID, err)
				}
			}
		}
		tracef("run %s event %d: saved %d tracks", runID, eventID, len(tracks))
		return nil
	})
}

func recordOf(runID string, eventID int64, t *helix.Track) TrackRecord {
	ci, cj := t.HelixCenter()
	return TrackRecord{
		RunID:       runID,
		EventID:     eventID,
		TrackID:     t.ID,
		Status:      t.Status().String(),
		NumHits:     t.NumHits(),
		HelixRadius: t.HelixRadius(),
		CenterI:     ci,
		CenterJ:     cj,
		DipSlope:    t.DipSlope(),
		Helicity:    t.Helicity(),
		TrackLength: t.TrackLength(),
		RMSW:        t.RMSW(),
		RMSH:        t.RMSH(),
		Continuity:  t.Continuity,
	}
}

// LoadTracks returns the track records of an event within a run, by track id.
func (s *Store) LoadTracks(ctx context.Context, runID string, eventID int64) ([]TrackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, event_id, track_id, status, num_hits, helix_radius,
		       center_i, center_j, dip_slope, helicity, track_length,
		       rms_w, rms_h, continuity
		FROM tpc_tracks
		WHERE run_id = ? AND event_id = ?
		ORDER BY track_id`, runID, eventID)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var out []TrackRecord
	for rows.Next() {
		var r TrackRecord
		if err := rows.Scan(
			&r.RunID, &r.EventID, &r.TrackID, &r.Status, &r.NumHits, &r.HelixRadius,
			&r.CenterI, &r.CenterJ, &r.DipSlope, &r.Helicity, &r.TrackLength,
			&r.RMSW, &r.RMSH, &r.Continuity,
		); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadTrackHits returns the hits of every track of an event within a run,
// keyed by track id and in track order.
func (s *Store) LoadTrackHits(ctx context.Context, runID string, eventID int64) (map[int][]HitRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, module, hit_id
		FROM tpc_track_hits
		WHERE run_id = ? AND event_id = ?
		ORDER BY track_id, seq`, runID, eventID)
	if err != nil {
		return nil, fmt.Errorf("query track hits: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]HitRef)
	for rows.Next() {
		var (
			trackID, hitID int
			module         string
		)
		if err := rows.Scan(&trackID, &module, &hitID); err != nil {
			return nil, fmt.Errorf("scan track hit: %w", err)
		}
		m, err := parseModule(module)
		if err != nil {
			return nil, err
		}
		out[trackID] = append(out[trackID], HitRef{Module: m, ID: hitID})
	}
	return out, rows.Err()
}
