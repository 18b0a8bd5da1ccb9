package memo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists memos in a single table with additive audit
// columns, plus an append-only event table. The version column backs the
// optimistic write check.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenSQLite opens (or creates) the database file and returns a migrated
// repository and event recorder sharing one connection pool.
func OpenSQLite(path string) (*SQLiteRepository, *SQLiteEventRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		return nil, nil, err
	}
	events, err := NewSQLiteEventRecorder(db)
	if err != nil {
		return nil, nil, err
	}
	return repo, events, nil
}

func (r *SQLiteRepository) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS memos (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        body TEXT NOT NULL,
        department TEXT,
        category TEXT,
        priority TEXT,
        tags JSON,
        date_of_issue TEXT,
        signature_text TEXT,
        created_by TEXT NOT NULL,
        recipients JSON,
        attachments JSON,
        signatures JSON,
        status TEXT NOT NULL,
        submitted_to_desk_head_at TEXT,
        desk_head_reviewer JSON,
        desk_head_comment TEXT,
        desk_head_reviewed_at TEXT,
        submitted_to_leo_at TEXT,
        leo_reviewer JSON,
        leo_comment TEXT,
        leo_reviewed_at TEXT,
        approved_at TEXT,
        version INTEGER NOT NULL DEFAULT 1,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_memos_status ON memos(status);`
	_, err := r.db.ExecContext(context.Background(), query)
	return err
}

const memoColumns = `id, title, body, department, category, priority, tags, date_of_issue,
        signature_text, created_by, recipients, attachments, signatures, status,
        submitted_to_desk_head_at, desk_head_reviewer, desk_head_comment, desk_head_reviewed_at,
        submitted_to_leo_at, leo_reviewer, leo_comment, leo_reviewed_at, approved_at,
        version, created_at, updated_at`

func (r *SQLiteRepository) Insert(ctx context.Context, m Memo) error {
	query := `INSERT INTO memos (` + memoColumns + `) VALUES
        (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args, err := memoArgs(m)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert memo: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	m, err := scanMemo(row)
	if err == sql.ErrNoRows {
		return Memo{}, ErrNotFound
	}
	return m, err
}

func (r *SQLiteRepository) Update(ctx context.Context, m Memo, expectedVersion int64) (Memo, error) {
	m.Version = expectedVersion + 1
	query := `UPDATE memos SET
        title = ?, body = ?, department = ?, category = ?, priority = ?, tags = ?,
        date_of_issue = ?, signature_text = ?, created_by = ?, recipients = ?,
        attachments = ?, signatures = ?, status = ?,
        submitted_to_desk_head_at = ?, desk_head_reviewer = ?, desk_head_comment = ?, desk_head_reviewed_at = ?,
        submitted_to_leo_at = ?, leo_reviewer = ?, leo_comment = ?, leo_reviewed_at = ?, approved_at = ?,
        version = ?, updated_at = ?
        WHERE id = ? AND version = ?`
	args, err := memoArgs(m)
	if err != nil {
		return Memo{}, err
	}
	// memoArgs yields the insert ordering: id first, created_at before
	// updated_at. Reorder for the UPDATE statement.
	updateArgs := append(append([]any{}, args[1:24]...), args[25], m.ID, expectedVersion)
	res, err := r.db.ExecContext(ctx, query, updateArgs...)
	if err != nil {
		return Memo{}, fmt.Errorf("update memo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Memo{}, err
	}
	if affected == 0 {
		var v int64
		err := r.db.QueryRowContext(ctx, `SELECT version FROM memos WHERE id = ?`, m.ID).Scan(&v)
		if err == sql.ErrNoRows {
			return Memo{}, ErrNotFound
		}
		if err != nil {
			return Memo{}, err
		}
		return Memo{}, ConflictErr{MemoID: m.ID, ExpectedVersion: expectedVersion}
	}
	return m, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, status Status, limit int) ([]Memo, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + memoColumns + ` FROM memos WHERE status = ? ORDER BY created_at ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var memos []Memo
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return memos, nil
}

func memoArgs(m Memo) ([]any, error) {
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return nil, err
	}
	recipients, err := json.Marshal(m.Recipients)
	if err != nil {
		return nil, err
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return nil, err
	}
	signatures, err := json.Marshal(m.Signatures)
	if err != nil {
		return nil, err
	}
	deskHeadReviewer, err := marshalNullable(m.DeskHeadReviewer)
	if err != nil {
		return nil, err
	}
	leoReviewer, err := marshalNullable(m.LEOReviewer)
	if err != nil {
		return nil, err
	}
	return []any{
		m.ID, m.Title, m.Body, m.Department, string(m.Category), string(m.Priority),
		string(tags), timeToNull(m.DateOfIssue), m.SignatureText, m.CreatedBy,
		string(recipients), string(attachments), string(signatures), string(m.Status),
		timeToNull(m.SubmittedToDeskHeadAt), deskHeadReviewer, m.DeskHeadComment, timeToNull(m.DeskHeadReviewedAt),
		timeToNull(m.SubmittedToLEOAt), leoReviewer, m.LEOComment, timeToNull(m.LEOReviewedAt), timeToNull(m.ApprovedAt),
		m.Version, m.CreatedAt.UTC().Format(time.RFC3339Nano), m.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemo(row rowScanner) (Memo, error) {
	var m Memo
	var category, priority, status string
	var tags, recipients, attachments, signatures string
	var deskHeadReviewer, leoReviewer sql.NullString
	var deskHeadComment, leoComment, signatureText, department sql.NullString
	var dateOfIssue, submittedDH, reviewedDH, submittedLEO, reviewedLEO, approvedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&m.ID, &m.Title, &m.Body, &department, &category, &priority,
		&tags, &dateOfIssue, &signatureText, &m.CreatedBy,
		&recipients, &attachments, &signatures, &status,
		&submittedDH, &deskHeadReviewer, &deskHeadComment, &reviewedDH,
		&submittedLEO, &leoReviewer, &leoComment, &reviewedLEO, &approvedAt,
		&m.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return Memo{}, err
	}

	m.Department = department.String
	m.Category = Category(category)
	m.Priority = Priority(priority)
	m.SignatureText = signatureText.String
	m.Status = Status(status)
	m.DeskHeadComment = deskHeadComment.String
	m.LEOComment = leoComment.String

	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return Memo{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(recipients), &m.Recipients); err != nil {
		return Memo{}, fmt.Errorf("decode recipients: %w", err)
	}
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return Memo{}, fmt.Errorf("decode attachments: %w", err)
	}
	if err := json.Unmarshal([]byte(signatures), &m.Signatures); err != nil {
		return Memo{}, fmt.Errorf("decode signatures: %w", err)
	}
	if deskHeadReviewer.Valid {
		var ref ReviewerRef
		if err := json.Unmarshal([]byte(deskHeadReviewer.String), &ref); err != nil {
			return Memo{}, fmt.Errorf("decode desk head reviewer: %w", err)
		}
		m.DeskHeadReviewer = &ref
	}
	if leoReviewer.Valid {
		var ref ReviewerRef
		if err := json.Unmarshal([]byte(leoReviewer.String), &ref); err != nil {
			return Memo{}, fmt.Errorf("decode leo reviewer: %w", err)
		}
		m.LEOReviewer = &ref
	}

	if m.DateOfIssue, err = nullToTime(dateOfIssue); err != nil {
		return Memo{}, err
	}
	if m.SubmittedToDeskHeadAt, err = nullToTime(submittedDH); err != nil {
		return Memo{}, err
	}
	if m.DeskHeadReviewedAt, err = nullToTime(reviewedDH); err != nil {
		return Memo{}, err
	}
	if m.SubmittedToLEOAt, err = nullToTime(submittedLEO); err != nil {
		return Memo{}, err
	}
	if m.LEOReviewedAt, err = nullToTime(reviewedLEO); err != nil {
		return Memo{}, err
	}
	if m.ApprovedAt, err = nullToTime(approvedAt); err != nil {
		return Memo{}, err
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Memo{}, fmt.Errorf("decode created_at: %w", err)
	}
	if m.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Memo{}, fmt.Errorf("decode updated_at: %w", err)
	}
	return m, nil
}

func marshalNullable(v *ReviewerRef) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func timeToNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullToTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("decode timestamp: %w", err)
	}
	return &t, nil
}

// SQLiteEventRecorder is the durable append-only transition log, ordered by
// insertion (rowid).
type SQLiteEventRecorder struct {
	db *sql.DB
}

func NewSQLiteEventRecorder(db *sql.DB) (*SQLiteEventRecorder, error) {
	r := &SQLiteEventRecorder{db: db}
	query := `
    CREATE TABLE IF NOT EXISTS memo_events (
        event_id TEXT PRIMARY KEY,
        memo_id TEXT NOT NULL,
        actor TEXT,
        action TEXT NOT NULL,
        from_status TEXT,
        to_status TEXT NOT NULL,
        comment TEXT,
        ts TEXT NOT NULL,
        hash TEXT NOT NULL DEFAULT '',
        prev_hash TEXT NOT NULL DEFAULT ''
    );
    CREATE INDEX IF NOT EXISTS idx_memo_events_memo ON memo_events(memo_id);`
	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteEventRecorder) Append(ctx context.Context, ev TransitionEvent) error {
	query := `INSERT INTO memo_events
        (event_id, memo_id, actor, action, from_status, to_status, comment, ts, hash, prev_hash)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		ev.EventID, ev.MemoID, ev.Actor, ev.Action, string(ev.From), string(ev.To),
		ev.Comment, ev.Ts.UTC().Format(time.RFC3339Nano), ev.Hash, ev.PrevHash)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRecorder) Last(ctx context.Context, memoID string) (TransitionEvent, error) {
	query := `SELECT event_id, memo_id, actor, action, from_status, to_status, comment, ts, hash, prev_hash
        FROM memo_events WHERE memo_id = ? ORDER BY rowid DESC LIMIT 1`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, query, memoID))
	if err == sql.ErrNoRows {
		return TransitionEvent{}, errEmptyChain
	}
	return ev, err
}

func (r *SQLiteEventRecorder) List(ctx context.Context, memoID string) ([]TransitionEvent, error) {
	query := `SELECT event_id, memo_id, actor, action, from_status, to_status, comment, ts, hash, prev_hash
        FROM memo_events WHERE memo_id = ? ORDER BY rowid ASC`
	rows, err := r.db.QueryContext(ctx, query, memoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []TransitionEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func scanEvent(row rowScanner) (TransitionEvent, error) {
	var ev TransitionEvent
	var from, to, ts string
	var actor, comment sql.NullString
	err := row.Scan(&ev.EventID, &ev.MemoID, &actor, &ev.Action, &from, &to, &comment, &ts, &ev.Hash, &ev.PrevHash)
	if err != nil {
		return TransitionEvent{}, err
	}
	ev.Actor = actor.String
	ev.Comment = comment.String
	ev.From = Status(from)
	ev.To = Status(to)
	if ev.Ts, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return TransitionEvent{}, fmt.Errorf("decode event timestamp: %w", err)
	}
	return ev, nil
}
