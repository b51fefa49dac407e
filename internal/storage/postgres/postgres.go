package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	RunID     string                 `json:"run_id"`
	SessionID *string                `json:"session_id,omitempty"`
}

// EpisodeRow is one finished episode.
type EpisodeRow struct {
	ID                string    `json:"id"`
	RunID             string    `json:"run_id"`
	Episode           int       `json:"episode"`
	Steps             int       `json:"steps"`
	Reward            float64   `json:"reward"`
	VehiclesCrossed   []int     `json:"vehicles_crossed"`
	PedestriansServed int       `json:"pedestrians_served"`
	AvgPedWait        float64   `json:"avg_ped_wait"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Options holds connection settings.
type Options struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// OptionsFromEnv reads PG* environment variables. The password is passed
// in so callers can resolve it through the *_FILE convention.
func OptionsFromEnv(password string) Options {
	return Options{
		Host:     getEnv("PGHOST", "127.0.0.1"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "traffic"),
		Database: getEnv("PGDATABASE", "traffic"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
		Password: password,
	}
}

// DSN returns the lib/pq connection string.
func (o Options) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s", o.Host, o.Port, o.User, o.Database, o.SSLMode)
	if o.Password != "" {
		dsn += fmt.Sprintf(" password=%s", o.Password)
	}
	return dsn
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Client manages the Postgres connection for events and episode results.
type Client struct {
	db    *sql.DB
	runID string
}

// New connects, creates the tables if needed and tags every row with runID.
func New(ctx context.Context, opts Options, runID string) (*Client, error) {
	db, err := sql.Open("postgres", opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{db: db, runID: runID}
	if err := client.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func (c *Client) createTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			run_id     TEXT NOT NULL,
			session_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);

		CREATE TABLE IF NOT EXISTS episodes (
			id                 UUID PRIMARY KEY,
			run_id             TEXT NOT NULL,
			episode            INTEGER NOT NULL,
			steps              INTEGER NOT NULL,
			reward             DOUBLE PRECISION NOT NULL,
			vehicles_crossed   JSONB NOT NULL,
			pedestrians_served INTEGER NOT NULL,
			avg_ped_wait       DOUBLE PRECISION NOT NULL,
			finished_at        TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_episodes_finished_at ON episodes(finished_at DESC);
	`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// Append inserts an event. It satisfies events.Sink.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var sessionPtr *string
	if sessionID != "" {
		sessionPtr = &sessionID
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, run_id, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.runID, sessionPtr)
	return err
}

// Query returns the last N events of this run, newest first.
func (c *Client) Query(ctx context.Context, limit int) ([]EventRow, error) {
	limit = clampLimit(limit)

	query := `
		SELECT event_id, ts, level, event, msg, fields, run_id, session_id
		FROM events
		WHERE run_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, query, c.runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, sessionID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.RunID, &sessionID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if sessionID.Valid {
			e.SessionID = &sessionID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// SaveEpisode stores a finished episode under this client's run.
func (c *Client) SaveEpisode(ctx context.Context, ep EpisodeRow) error {
	crossed, err := json.Marshal(ep.VehiclesCrossed)
	if err != nil {
		return fmt.Errorf("failed to marshal vehicles_crossed: %w", err)
	}
	if ep.FinishedAt.IsZero() {
		ep.FinishedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO episodes (id, run_id, episode, steps, reward, vehicles_crossed, pedestrians_served, avg_ped_wait, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = c.db.ExecContext(ctx, query, ep.ID, c.runID, ep.Episode, ep.Steps, ep.Reward, crossed, ep.PedestriansServed, ep.AvgPedWait, ep.FinishedAt)
	return err
}

// RecentEpisodes returns the last N episodes across all runs, newest first.
func (c *Client) RecentEpisodes(ctx context.Context, limit int) ([]EpisodeRow, error) {
	limit = clampLimit(limit)

	query := `
		SELECT id, run_id, episode, steps, reward, vehicles_crossed, pedestrians_served, avg_ped_wait, finished_at
		FROM episodes
		ORDER BY finished_at DESC
		LIMIT $1
	`
	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EpisodeRow
	for rows.Next() {
		var ep EpisodeRow
		var crossed []byte
		if err := rows.Scan(&ep.ID, &ep.RunID, &ep.Episode, &ep.Steps, &ep.Reward, &crossed, &ep.PedestriansServed, &ep.AvgPedWait, &ep.FinishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(crossed, &ep.VehiclesCrossed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vehicles_crossed: %w", err)
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
