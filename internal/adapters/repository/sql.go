package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/meetlink/internal/domain/model"
)

const defaultOperationTimeout = 5 * time.Second

// dialect captures the differences between the SQL backends.
type dialect struct {
	driver    string
	floatType string
	boolType  string
	// placeholder returns the bind marker for the n-th (1-based) argument.
	placeholder func(n int) string
}

// sqlStore implements Store on database/sql. Timestamps are stored as UTC
// unix nanoseconds so ordering and comparisons behave the same everywhere.
type sqlStore struct {
	dsn       string
	d         dialect
	opTimeout time.Duration
	openDB    func(driverName, dsn string) (*sql.DB, error)
	prepare   func(db *sql.DB)

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func newSQLStore(dsn string, d dialect, opts ...Option) *sqlStore {
	s := &sqlStore{
		dsn:       dsn,
		d:         d,
		opTimeout: defaultOperationTimeout,
		openDB:    sql.Open,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sqlStore) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS processing_records (
			meeting_id    TEXT PRIMARY KEY,
			status        TEXT NOT NULL,
			source        TEXT NOT NULL,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error    TEXT NOT NULL DEFAULT '',
			summary       TEXT NOT NULL DEFAULT '',
			reclaims      INTEGER NOT NULL DEFAULT 0,
			created_at    BIGINT NOT NULL,
			updated_at    BIGINT NOT NULL,
			completed_at  BIGINT
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS attributions (
			id               TEXT PRIMARY KEY,
			meeting_id       TEXT NOT NULL,
			meeting_title    TEXT NOT NULL,
			meeting_date     BIGINT NOT NULL,
			project_key      TEXT NOT NULL,
			project_name     TEXT NOT NULL,
			score            %[1]s NOT NULL,
			confidence       %[1]s NOT NULL,
			matching_factors TEXT NOT NULL,
			created_at       BIGINT NOT NULL,
			verified         %[2]s NOT NULL DEFAULT FALSE
		)`, s.d.floatType, s.d.boolType),
		`CREATE INDEX IF NOT EXISTS attributions_meeting_id_idx ON attributions (meeting_id)`,
		`CREATE INDEX IF NOT EXISTS attributions_project_key_idx ON attributions (project_key)`,
	}
}

func (s *sqlStore) ensureReady(ctx context.Context) error {
	s.initOnce.Do(func() {
		db, err := s.openDB(s.d.driver, s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("open %s: %w", s.d.driver, err)
			return
		}
		if s.prepare != nil {
			s.prepare(db)
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
		defer cancel()
		for _, stmt := range s.schema() {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				s.initErr = fmt.Errorf("migrate %s: %w", s.d.driver, err)
				return
			}
		}
		s.db = db
	})
	return s.initErr
}

// begin prepares the store and derives a statement deadline from ctx.
func (s *sqlStore) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	return ctx, cancel, nil
}

// ph renders placeholders first..first+n-1 joined by commas.
func (s *sqlStore) ph(first, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.d.placeholder(first + i)
	}
	return strings.Join(parts, ", ")
}

const recordColumns = `meeting_id, status, source, attempt_count, last_error, summary, reclaims, created_at, updated_at, completed_at`

func (s *sqlStore) Get(ctx context.Context, meetingID string) (model.ProcessingRecord, error) {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return model.ProcessingRecord{}, err
	}
	defer cancel()
	return s.get(ctx, meetingID)
}

func (s *sqlStore) get(ctx context.Context, meetingID string) (model.ProcessingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM processing_records WHERE meeting_id = %s`, recordColumns, s.d.placeholder(1))
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, meetingID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProcessingRecord{}, ErrNotFound
	}
	if err != nil {
		return model.ProcessingRecord{}, fmt.Errorf("get record %s: %w", meetingID, err)
	}
	return rec, nil
}

func (s *sqlStore) Claim(ctx context.Context, meetingID string, source model.Source, now time.Time, staleAfter time.Duration) (model.ProcessingRecord, error) {
	if strings.TrimSpace(meetingID) == "" {
		return model.ProcessingRecord{}, ErrInvalidInput
	}
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return model.ProcessingRecord{}, err
	}
	defer cancel()
	ts := now.UTC().UnixNano()

	insert := fmt.Sprintf(`INSERT INTO processing_records (meeting_id, status, source, created_at, updated_at)
		VALUES (%s) ON CONFLICT (meeting_id) DO NOTHING`, s.ph(1, 5))
	res, err := s.db.ExecContext(ctx, insert, meetingID, string(model.StatusPending), string(source), ts, ts)
	if err != nil {
		return model.ProcessingRecord{}, fmt.Errorf("claim %s: %w", meetingID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return s.get(ctx, meetingID)
	}

	if staleAfter > 0 {
		reclaim := fmt.Sprintf(`UPDATE processing_records
			SET reclaims = reclaims + 1, source = %s, updated_at = %s
			WHERE meeting_id = %s AND status = %s AND reclaims = 0 AND updated_at < %s`,
			s.d.placeholder(1), s.d.placeholder(2), s.d.placeholder(3), s.d.placeholder(4), s.d.placeholder(5))
		res, err := s.db.ExecContext(ctx, reclaim, string(source), ts, meetingID,
			string(model.StatusPending), now.Add(-staleAfter).UTC().UnixNano())
		if err != nil {
			return model.ProcessingRecord{}, fmt.Errorf("reclaim %s: %w", meetingID, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return s.get(ctx, meetingID)
		}
	}

	existing, err := s.get(ctx, meetingID)
	if err != nil {
		return model.ProcessingRecord{}, err
	}
	return existing, ErrAlreadyClaimed
}

func (s *sqlStore) Update(ctx context.Context, rec model.ProcessingRecord) error {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	var completed sql.NullInt64
	if rec.CompletedAt != nil {
		completed = sql.NullInt64{Int64: rec.CompletedAt.UTC().UnixNano(), Valid: true}
	}
	query := fmt.Sprintf(`UPDATE processing_records
		SET status = %s, source = %s, attempt_count = %s, last_error = %s, summary = %s,
			updated_at = %s, completed_at = %s
		WHERE meeting_id = %s AND reclaims = %s`,
		s.d.placeholder(1), s.d.placeholder(2), s.d.placeholder(3), s.d.placeholder(4), s.d.placeholder(5),
		s.d.placeholder(6), s.d.placeholder(7), s.d.placeholder(8), s.d.placeholder(9))
	res, err := s.db.ExecContext(ctx, query,
		string(rec.Status), string(rec.Source), rec.AttemptCount, rec.LastError, rec.Summary,
		rec.UpdatedAt.UTC().UnixNano(), completed, rec.MeetingID, rec.Reclaims)
	if err != nil {
		return fmt.Errorf("update record %s: %w", rec.MeetingID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.get(ctx, rec.MeetingID); err != nil {
		return err
	}
	return ErrAlreadyClaimed
}

func (s *sqlStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM processing_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count records: %w", err)
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}

const attributionColumns = `id, meeting_id, meeting_title, meeting_date, project_key, project_name, score, confidence, matching_factors, created_at, verified`

func (s *sqlStore) Replace(ctx context.Context, meeting model.MeetingEvent, scored []model.ScoredCandidate, now time.Time) ([]model.Attribution, error) {
	if strings.TrimSpace(meeting.ExternalID) == "" {
		return nil, ErrInvalidInput
	}
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows := NewAttributions(meeting, scored, now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("replace %s: begin: %w", meeting.ExternalID, err)
	}
	defer func() { _ = tx.Rollback() }()

	del := fmt.Sprintf(`DELETE FROM attributions WHERE meeting_id = %s`, s.d.placeholder(1))
	if _, err := tx.ExecContext(ctx, del, meeting.ExternalID); err != nil {
		return nil, fmt.Errorf("replace %s: delete: %w", meeting.ExternalID, err)
	}

	insert := fmt.Sprintf(`INSERT INTO attributions (%s) VALUES (%s)`, attributionColumns, s.ph(1, 11))
	for _, a := range rows {
		factors, err := json.Marshal(a.MatchingFactors)
		if err != nil {
			return nil, fmt.Errorf("replace %s: encode factors: %w", meeting.ExternalID, err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			a.ID, a.MeetingID, a.MeetingTitle, a.MeetingDate.UnixNano(), a.ProjectKey, a.ProjectName,
			a.Score, a.Confidence, string(factors), a.CreatedAt.UnixNano(), a.Verified,
		); err != nil {
			return nil, fmt.Errorf("replace %s: insert: %w", meeting.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("replace %s: commit: %w", meeting.ExternalID, err)
	}
	return rows, nil
}

func (s *sqlStore) Read(ctx context.Context, projectKeys []string, since time.Time) ([]model.Attribution, error) {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var (
		args  []any
		where []string
	)
	if !since.IsZero() {
		args = append(args, since.UTC().UnixNano())
		where = append(where, "meeting_date >= "+s.d.placeholder(len(args)))
	}
	if keys := keySet(projectKeys); len(keys) > 0 {
		first := len(args) + 1
		for k := range keys {
			args = append(args, k)
		}
		where = append(where, fmt.Sprintf("project_key IN (%s)", s.ph(first, len(keys))))
	}
	query := fmt.Sprintf(`SELECT %s FROM attributions`, attributionColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY meeting_date DESC, score DESC, project_key ASC`
	return s.queryAttributions(ctx, query, args...)
}

func (s *sqlStore) ForMeeting(ctx context.Context, meetingID string) ([]model.Attribution, error) {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM attributions WHERE meeting_id = %s ORDER BY score DESC, project_key ASC`,
		attributionColumns, s.d.placeholder(1))
	return s.queryAttributions(ctx, query, meetingID)
}

func (s *sqlStore) queryAttributions(ctx context.Context, query string, args ...any) ([]model.Attribution, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read attributions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Attribution, 0)
	for rows.Next() {
		var (
			a                   model.Attribution
			meetingDate, create int64
			factors             string
		)
		if err := rows.Scan(&a.ID, &a.MeetingID, &a.MeetingTitle, &meetingDate, &a.ProjectKey, &a.ProjectName,
			&a.Score, &a.Confidence, &factors, &create, &a.Verified); err != nil {
			return nil, fmt.Errorf("read attributions: %w", err)
		}
		if err := json.Unmarshal([]byte(factors), &a.MatchingFactors); err != nil {
			return nil, fmt.Errorf("read attributions: decode factors: %w", err)
		}
		a.MeetingDate = time.Unix(0, meetingDate).UTC()
		a.CreatedAt = time.Unix(0, create).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close releases the connection pool, if it was opened.
func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.ProcessingRecord, error) {
	var (
		rec              model.ProcessingRecord
		status, source   string
		created, updated int64
		completed        sql.NullInt64
	)
	if err := row.Scan(&rec.MeetingID, &status, &source, &rec.AttemptCount, &rec.LastError, &rec.Summary,
		&rec.Reclaims, &created, &updated, &completed); err != nil {
		return model.ProcessingRecord{}, err
	}
	rec.Status = model.Status(status)
	rec.Source = model.Source(source)
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	if completed.Valid {
		t := time.Unix(0, completed.Int64).UTC()
		rec.CompletedAt = &t
	}
	return rec, nil
}
