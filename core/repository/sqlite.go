package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"simunet-portal/core/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the portal in an embedded SQLite database, the
// default durable driver for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) runMigrations() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id                   TEXT PRIMARY KEY,
		type                 TEXT NOT NULL,
		site_name            TEXT NOT NULL,
		client_reference     TEXT NOT NULL,
		description          TEXT NOT NULL,
		required_materials   TEXT NOT NULL,   -- JSON array
		status               TEXT NOT NULL,
		assigned_tech_ids    TEXT NOT NULL,   -- JSON array
		created_at           TIMESTAMP NOT NULL,
		updated_at           TIMESTAMP NOT NULL,
		last_state_change_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, updated_at);

	CREATE TABLE IF NOT EXISTS diaries (
		job_id           TEXT PRIMARY KEY,
		version          INTEGER NOT NULL,
		content          TEXT NOT NULL,
		status           TEXT NOT NULL,
		pdf_document_id  TEXT,
		last_edited_by   TEXT NOT NULL,
		reviewer_id      TEXT,
		reviewer_comment TEXT,
		updated_at       TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		job_id      TEXT NOT NULL,
		type        TEXT NOT NULL,
		name        TEXT NOT NULL,
		object_path TEXT NOT NULL,
		sha256      TEXT NOT NULL,
		version     INTEGER NOT NULL,
		uploaded_by TEXT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_job ON documents(job_id, uploaded_at);

	CREATE TABLE IF NOT EXISTS job_events (
		id            TEXT PRIMARY KEY,
		job_id        TEXT NOT NULL,
		seq           INTEGER NOT NULL,
		type          TEXT NOT NULL,
		actor_id      TEXT NOT NULL,
		actor_name    TEXT NOT NULL,
		message       TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL,
		metadata_json TEXT,
		UNIQUE(job_id, seq)
	);

	CREATE TABLE IF NOT EXISTS packets (
		job_id             TEXT PRIMARY KEY,
		packet_document_id TEXT NOT NULL,
		generated_at       TIMESTAMP NOT NULL,
		generated_by       TEXT NOT NULL,
		submitted_at       TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS intake_messages (
		id               TEXT PRIMARY KEY,
		source_channel   TEXT NOT NULL,
		site_name        TEXT NOT NULL,
		type             TEXT NOT NULL,
		description      TEXT NOT NULL,
		materials        TEXT NOT NULL,   -- JSON array
		map_included     INTEGER NOT NULL,
		attachments      TEXT NOT NULL,   -- JSON array
		received_at      TIMESTAMP NOT NULL,
		processed_job_id TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func marshalStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func unmarshalStrings(raw string) []string {
	var out []string
	if raw != "" {
		json.Unmarshal([]byte(raw), &out)
	}
	return out
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (id, type, site_name, client_reference, description, required_materials,
                  status, assigned_tech_ids, created_at, updated_at, last_state_change_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.SiteName, job.ClientReference, job.Description,
		marshalStrings(job.RequiredMaterials), job.Status, marshalStrings(job.AssignedTechIDs),
		job.CreatedAt, job.UpdatedAt, job.LastStateChangeAt)
	return err
}

func (s *SQLiteStore) scanJob(row interface{ Scan(...interface{}) error }) (*models.Job, error) {
	var job models.Job
	var materials, techIDs string
	err := row.Scan(&job.ID, &job.Type, &job.SiteName, &job.ClientReference, &job.Description,
		&materials, &job.Status, &techIDs, &job.CreatedAt, &job.UpdatedAt, &job.LastStateChangeAt)
	if err != nil {
		return nil, err
	}
	job.RequiredMaterials = unmarshalStrings(materials)
	job.AssignedTechIDs = unmarshalStrings(techIDs)
	return &job, nil
}

const sqliteJobColumns = `id, type, site_name, client_reference, description, required_materials,
       status, assigned_tech_ids, created_at, updated_at, last_state_change_at`

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteJobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := s.scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return job, err
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *models.Job, expectedUpdatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET type = ?, site_name = ?, client_reference = ?, description = ?,
       required_materials = ?, status = ?, assigned_tech_ids = ?,
       updated_at = ?, last_state_change_at = ?
WHERE id = ? AND updated_at = ?`,
		job.Type, job.SiteName, job.ClientReference, job.Description,
		marshalStrings(job.RequiredMaterials), job.Status, marshalStrings(job.AssignedTechIDs),
		job.UpdatedAt, job.LastStateChangeAt, job.ID, expectedUpdatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := s.GetJob(ctx, job.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: job %s moved since read", ErrConflict, job.ID)
	}
	return nil
}

func (s *SQLiteStore) listJobsWhere(ctx context.Context, where string, args ...interface{}) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteJobColumns+` FROM jobs `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filters models.JobFilters) ([]*models.Job, error) {
	where := `WHERE 1=1`
	var args []interface{}
	if filters.Status != "" {
		where += ` AND status = ?`
		args = append(args, filters.Status)
	}
	if filters.Type != "" {
		where += ` AND type = ?`
		args = append(args, filters.Type)
	}
	candidates, err := s.listJobsWhere(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	var jobs []*models.Job
	for _, job := range candidates {
		if JobMatches(job, filters) {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (s *SQLiteStore) SearchArchive(ctx context.Context, filters models.ArchiveFilters) ([]*models.Job, error) {
	candidates, err := s.listJobsWhere(ctx,
		`WHERE status IN (?, ?, ?)`,
		models.JobStatusPacketGenerated, models.JobStatusSubmitted, models.JobStatusArchived)
	if err != nil {
		return nil, err
	}
	var jobs []*models.Job
	for _, job := range candidates {
		if ArchiveMatches(job, filters) {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (s *SQLiteStore) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) NextJobID(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("JOB-%d-", year)
	var highest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(CAST(SUBSTR(id, ?) AS INTEGER)) FROM jobs WHERE id LIKE ?`,
		len(prefix)+1, prefix+"%").Scan(&highest)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, highest.Int64+1), nil
}

func (s *SQLiteStore) GetDiary(ctx context.Context, jobID string) (*models.DiaryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT job_id, version, content, status, pdf_document_id, last_edited_by,
       reviewer_id, reviewer_comment, updated_at
FROM diaries WHERE job_id = ?`, jobID)

	var diary models.DiaryRecord
	var pdfID, reviewerID, reviewerComment sql.NullString
	err := row.Scan(&diary.JobID, &diary.Version, &diary.Content, &diary.Status,
		&pdfID, &diary.LastEditedBy, &reviewerID, &reviewerComment, &diary.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: diary for job %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	diary.PDFDocumentID = pdfID.String
	diary.ReviewerID = reviewerID.String
	diary.ReviewerComment = reviewerComment.String
	return &diary, nil
}

func (s *SQLiteStore) PutDiary(ctx context.Context, diary *models.DiaryRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO diaries (job_id, version, content, status, pdf_document_id, last_edited_by,
                     reviewer_id, reviewer_comment, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
	version = excluded.version, content = excluded.content, status = excluded.status,
	pdf_document_id = excluded.pdf_document_id, last_edited_by = excluded.last_edited_by,
	reviewer_id = excluded.reviewer_id, reviewer_comment = excluded.reviewer_comment,
	updated_at = excluded.updated_at`,
		diary.JobID, diary.Version, diary.Content, diary.Status, nullString(diary.PDFDocumentID),
		diary.LastEditedBy, nullString(diary.ReviewerID), nullString(diary.ReviewerComment), diary.UpdatedAt)
	return err
}

func (s *SQLiteStore) ListDiariesByStatus(ctx context.Context, status models.DiaryStatus) ([]*models.DiaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT job_id, version, content, status, pdf_document_id, last_edited_by,
       reviewer_id, reviewer_comment, updated_at
FROM diaries WHERE status = ?`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diaries []*models.DiaryRecord
	for rows.Next() {
		var diary models.DiaryRecord
		var pdfID, reviewerID, reviewerComment sql.NullString
		if err := rows.Scan(&diary.JobID, &diary.Version, &diary.Content, &diary.Status,
			&pdfID, &diary.LastEditedBy, &reviewerID, &reviewerComment, &diary.UpdatedAt); err != nil {
			return nil, err
		}
		diary.PDFDocumentID = pdfID.String
		diary.ReviewerID = reviewerID.String
		diary.ReviewerComment = reviewerComment.String
		diaries = append(diaries, &diary)
	}
	return diaries, rows.Err()
}

func (s *SQLiteStore) AddDocument(ctx context.Context, doc *models.JobDocument) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (id, job_id, type, name, object_path, sha256, version, uploaded_by, uploaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.JobID, doc.Type, doc.Name, doc.ObjectPath, doc.SHA256,
		doc.Version, doc.UploadedBy, doc.UploadedAt)
	return err
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*models.JobDocument, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, job_id, type, name, object_path, sha256, version, uploaded_by, uploaded_at
FROM documents WHERE id = ?`, id)

	var doc models.JobDocument
	err := row.Scan(&doc.ID, &doc.JobID, &doc.Type, &doc.Name, &doc.ObjectPath,
		&doc.SHA256, &doc.Version, &doc.UploadedBy, &doc.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, jobID string) ([]models.JobDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, job_id, type, name, object_path, sha256, version, uploaded_by, uploaded_at
FROM documents WHERE job_id = ? ORDER BY uploaded_at, id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.JobDocument
	for rows.Next() {
		var doc models.JobDocument
		if err := rows.Scan(&doc.ID, &doc.JobID, &doc.Type, &doc.Name, &doc.ObjectPath,
			&doc.SHA256, &doc.Version, &doc.UploadedBy, &doc.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, event *models.JobEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM job_events WHERE job_id = ?`, event.JobID).Scan(&seq); err != nil {
		return err
	}

	var metaJSON sql.NullString
	if event.Metadata != nil {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO job_events (id, job_id, seq, type, actor_id, actor_name, message, created_at, metadata_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.JobID, seq, event.Type, event.ActorID, event.ActorName,
		event.Message, event.CreatedAt, metaJSON)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	event.Seq = seq
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, job_id, seq, type, actor_id, actor_name, message, created_at, metadata_json
FROM job_events WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.JobEvent
	for rows.Next() {
		var event models.JobEvent
		var metaJSON sql.NullString
		if err := rows.Scan(&event.ID, &event.JobID, &event.Seq, &event.Type, &event.ActorID,
			&event.ActorName, &event.Message, &event.CreatedAt, &metaJSON); err != nil {
			return nil, err
		}
		if metaJSON.Valid {
			json.Unmarshal([]byte(metaJSON.String), &event.Metadata)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) GetPacket(ctx context.Context, jobID string) (*models.FinalPacket, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT job_id, packet_document_id, generated_at, generated_by, submitted_at
FROM packets WHERE job_id = ?`, jobID)

	var packet models.FinalPacket
	var submittedAt sql.NullTime
	err := row.Scan(&packet.JobID, &packet.PacketDocumentID, &packet.GeneratedAt,
		&packet.GeneratedBy, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: packet for job %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	if submittedAt.Valid {
		packet.SubmittedAt = &submittedAt.Time
	}
	return &packet, nil
}

func (s *SQLiteStore) PutPacket(ctx context.Context, packet *models.FinalPacket) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO packets (job_id, packet_document_id, generated_at, generated_by, submitted_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
	packet_document_id = excluded.packet_document_id, generated_at = excluded.generated_at,
	generated_by = excluded.generated_by, submitted_at = excluded.submitted_at`,
		packet.JobID, packet.PacketDocumentID, packet.GeneratedAt, packet.GeneratedBy,
		nullTime(packet.SubmittedAt))
	return err
}

func (s *SQLiteStore) SaveIntakeMessage(ctx context.Context, msg *models.IntakeMessage) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO intake_messages (id, source_channel, site_name, type, description, materials,
                             map_included, attachments, received_at, processed_job_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	source_channel = excluded.source_channel, site_name = excluded.site_name,
	type = excluded.type, description = excluded.description, materials = excluded.materials,
	map_included = excluded.map_included, attachments = excluded.attachments,
	received_at = excluded.received_at, processed_job_id = excluded.processed_job_id`,
		msg.ID, msg.SourceChannel, msg.SiteName, msg.Type, msg.Description,
		marshalStrings(msg.Materials), msg.MapIncluded, marshalStrings(msg.Attachments),
		msg.ReceivedAt, nullString(msg.ProcessedJobID))
	return err
}

func (s *SQLiteStore) scanIntake(row interface{ Scan(...interface{}) error }) (*models.IntakeMessage, error) {
	var msg models.IntakeMessage
	var materials, attachments string
	var processedJobID sql.NullString
	err := row.Scan(&msg.ID, &msg.SourceChannel, &msg.SiteName, &msg.Type, &msg.Description,
		&materials, &msg.MapIncluded, &attachments, &msg.ReceivedAt, &processedJobID)
	if err != nil {
		return nil, err
	}
	msg.Materials = unmarshalStrings(materials)
	msg.Attachments = unmarshalStrings(attachments)
	msg.ProcessedJobID = processedJobID.String
	return &msg, nil
}

const sqliteIntakeColumns = `id, source_channel, site_name, type, description, materials,
       map_included, attachments, received_at, processed_job_id`

func (s *SQLiteStore) GetIntakeMessage(ctx context.Context, id string) (*models.IntakeMessage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteIntakeColumns+` FROM intake_messages WHERE id = ?`, id)
	msg, err := s.scanIntake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: intake message %s", ErrNotFound, id)
	}
	return msg, err
}

func (s *SQLiteStore) ListUnprocessedIntake(ctx context.Context) ([]*models.IntakeMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteIntakeColumns+` FROM intake_messages WHERE processed_job_id IS NULL OR processed_job_id = '' ORDER BY received_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.IntakeMessage
	for rows.Next() {
		msg, err := s.scanIntake(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) MarkIntakeProcessed(ctx context.Context, id, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE intake_messages SET processed_job_id = ? WHERE id = ?`, jobID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: intake message %s", ErrNotFound, id)
	}
	return nil
}
