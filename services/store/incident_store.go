// Package store persists shake events and resolved incidents in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Nhashaamn/resq/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS shake_events (
	event_id      TEXT PRIMARY KEY,
	timestamp_ns  INTEGER NOT NULL,
	magnitude     REAL NOT NULL,
	suppressed    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS incidents (
	incident_id   TEXT PRIMARY KEY,
	detected_ns   INTEGER NOT NULL,
	magnitude     REAL NOT NULL,
	countdown_ms  INTEGER NOT NULL,
	action        TEXT NOT NULL,
	resolved_by   TEXT NOT NULL,
	resolved_ns   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_detected ON incidents(detected_ns);
`

// ErrNotFound is returned when an incident id is unknown.
var ErrNotFound = errors.New("incident not found")

// Store is the SQLite-backed incident history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordShake stores a shake event. suppressed marks events that arrived
// while a countdown was already pending.
func (s *Store) RecordShake(ev models.ShakeEvent, suppressed bool) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO shake_events (event_id, timestamp_ns, magnitude, suppressed)
		 VALUES (?, ?, ?, ?)`,
		ev.ID, ev.TimestampNs, ev.Magnitude, boolToInt(suppressed),
	)
	if err != nil {
		return fmt.Errorf("record shake: %w", err)
	}
	return nil
}

// RecordIncident stores a resolved incident.
func (s *Store) RecordIncident(inc models.Incident) error {
	_, err := s.db.Exec(
		`INSERT INTO incidents (incident_id, detected_ns, magnitude, countdown_ms, action, resolved_by, resolved_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.DetectedNs, inc.Magnitude, inc.CountdownMs,
		string(inc.Action), string(inc.ResolvedBy), inc.ResolvedNs,
	)
	if err != nil {
		return fmt.Errorf("record incident: %w", err)
	}
	return nil
}

// GetIncident loads one incident by id.
func (s *Store) GetIncident(id string) (models.Incident, error) {
	row := s.db.QueryRow(
		`SELECT incident_id, detected_ns, magnitude, countdown_ms, action, resolved_by, resolved_ns
		 FROM incidents WHERE incident_id = ?`, id)

	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Incident{}, ErrNotFound
	}
	if err != nil {
		return models.Incident{}, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// ListIncidents returns up to limit incidents, newest first.
func (s *Store) ListIncidents(limit int) ([]models.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT incident_id, detected_ns, magnitude, countdown_ms, action, resolved_by, resolved_ns
		 FROM incidents ORDER BY detected_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	out := []models.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ShakeCounts returns how many shakes were stored in total and how many of
// them were suppressed by a pending countdown.
func (s *Store) ShakeCounts() (total, suppressed int, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(suppressed), 0) FROM shake_events`,
	).Scan(&total, &suppressed)
	if err != nil {
		return 0, 0, fmt.Errorf("count shakes: %w", err)
	}
	return total, suppressed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(sc scanner) (models.Incident, error) {
	var (
		inc            models.Incident
		action, byWhom string
	)
	err := sc.Scan(&inc.ID, &inc.DetectedNs, &inc.Magnitude, &inc.CountdownMs,
		&action, &byWhom, &inc.ResolvedNs)
	inc.Action = models.Action(action)
	inc.ResolvedBy = models.Resolver(byWhom)
	return inc, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
