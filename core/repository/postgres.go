package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"simunet-portal/core/models"

	"github.com/lib/pq"
)

// PostgresStore persists the portal in PostgreSQL for multi-node deployments.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) runMigrations() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id                   TEXT PRIMARY KEY,
		type                 TEXT NOT NULL,
		site_name            TEXT NOT NULL,
		client_reference     TEXT NOT NULL,
		description          TEXT NOT NULL,
		required_materials   TEXT[] NOT NULL DEFAULT '{}',
		status               TEXT NOT NULL,
		assigned_tech_ids    TEXT[] NOT NULL DEFAULT '{}',
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL,
		last_state_change_at TIMESTAMPTZ NOT NULL
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
		updated_at       TIMESTAMPTZ NOT NULL
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
		uploaded_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_job ON documents(job_id, uploaded_at);

	CREATE TABLE IF NOT EXISTS job_events (
		id            TEXT PRIMARY KEY,
		job_id        TEXT NOT NULL,
		seq           BIGINT NOT NULL,
		type          TEXT NOT NULL,
		actor_id      TEXT NOT NULL,
		actor_name    TEXT NOT NULL,
		message       TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		metadata_json JSONB,
		UNIQUE(job_id, seq)
	);

	CREATE TABLE IF NOT EXISTS packets (
		job_id             TEXT PRIMARY KEY,
		packet_document_id TEXT NOT NULL,
		generated_at       TIMESTAMPTZ NOT NULL,
		generated_by       TEXT NOT NULL,
		submitted_at       TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS intake_messages (
		id               TEXT PRIMARY KEY,
		source_channel   TEXT NOT NULL,
		site_name        TEXT NOT NULL,
		type             TEXT NOT NULL,
		description      TEXT NOT NULL,
		materials        TEXT[] NOT NULL DEFAULT '{}',
		map_included     BOOLEAN NOT NULL,
		attachments      TEXT[] NOT NULL DEFAULT '{}',
		received_at      TIMESTAMPTZ NOT NULL,
		processed_job_id TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const pgJobColumns = `id, type, site_name, client_reference, description, required_materials,
       status, assigned_tech_ids, created_at, updated_at, last_state_change_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, site_name, client_reference, description, required_materials,
		                  status, assigned_tech_ids, created_at, updated_at, last_state_change_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.Type, job.SiteName, job.ClientReference, job.Description,
		pq.Array(job.RequiredMaterials), job.Status, pq.Array(job.AssignedTechIDs),
		job.CreatedAt, job.UpdatedAt, job.LastStateChangeAt)
	return err
}

func (s *PostgresStore) scanJob(row interface{ Scan(...interface{}) error }) (*models.Job, error) {
	var job models.Job
	var materials, techIDs pq.StringArray
	err := row.Scan(&job.ID, &job.Type, &job.SiteName, &job.ClientReference, &job.Description,
		&materials, &job.Status, &techIDs, &job.CreatedAt, &job.UpdatedAt, &job.LastStateChangeAt)
	if err != nil {
		return nil, err
	}
	job.RequiredMaterials = []string(materials)
	job.AssignedTechIDs = []string(techIDs)
	return &job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgJobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := s.scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return job, err
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.Job, expectedUpdatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET type = $1, site_name = $2, client_reference = $3, description = $4,
		       required_materials = $5, status = $6, assigned_tech_ids = $7,
		       updated_at = $8, last_state_change_at = $9
		WHERE id = $10 AND updated_at = $11`,
		job.Type, job.SiteName, job.ClientReference, job.Description,
		pq.Array(job.RequiredMaterials), job.Status, pq.Array(job.AssignedTechIDs),
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

func (s *PostgresStore) listJobsWhere(ctx context.Context, where string, args ...interface{}) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pgJobColumns+` FROM jobs `+where, args...)
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

func (s *PostgresStore) ListJobs(ctx context.Context, filters models.JobFilters) ([]*models.Job, error) {
	where := `WHERE 1=1`
	var args []interface{}
	argIndex := 1
	if filters.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filters.Status)
		argIndex++
	}
	if filters.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argIndex)
		args = append(args, filters.Type)
		argIndex++
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

func (s *PostgresStore) SearchArchive(ctx context.Context, filters models.ArchiveFilters) ([]*models.Job, error) {
	candidates, err := s.listJobsWhere(ctx, `WHERE status = ANY($1)`,
		pq.Array([]string{
			string(models.JobStatusPacketGenerated),
			string(models.JobStatusSubmitted),
			string(models.JobStatusArchived),
		}))
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

func (s *PostgresStore) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
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

func (s *PostgresStore) NextJobID(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("JOB-%d-", year)
	var highest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(CAST(SUBSTRING(id FROM $1) AS INTEGER))
		FROM jobs WHERE id LIKE $2`,
		len(prefix)+1, prefix+"%").Scan(&highest)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, highest.Int64+1), nil
}

const pgDiaryColumns = `job_id, version, content, status, pdf_document_id, last_edited_by,
       reviewer_id, reviewer_comment, updated_at`

func (s *PostgresStore) scanDiary(row interface{ Scan(...interface{}) error }) (*models.DiaryRecord, error) {
	var diary models.DiaryRecord
	var pdfID, reviewerID, reviewerComment sql.NullString
	err := row.Scan(&diary.JobID, &diary.Version, &diary.Content, &diary.Status,
		&pdfID, &diary.LastEditedBy, &reviewerID, &reviewerComment, &diary.UpdatedAt)
	if err != nil {
		return nil, err
	}
	diary.PDFDocumentID = pdfID.String
	diary.ReviewerID = reviewerID.String
	diary.ReviewerComment = reviewerComment.String
	return &diary, nil
}

func (s *PostgresStore) GetDiary(ctx context.Context, jobID string) (*models.DiaryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgDiaryColumns+` FROM diaries WHERE job_id = $1`, jobID)
	diary, err := s.scanDiary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: diary for job %s", ErrNotFound, jobID)
	}
	return diary, err
}

func (s *PostgresStore) PutDiary(ctx context.Context, diary *models.DiaryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diaries (job_id, version, content, status, pdf_document_id, last_edited_by,
		                     reviewer_id, reviewer_comment, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO UPDATE SET
			version = EXCLUDED.version, content = EXCLUDED.content, status = EXCLUDED.status,
			pdf_document_id = EXCLUDED.pdf_document_id, last_edited_by = EXCLUDED.last_edited_by,
			reviewer_id = EXCLUDED.reviewer_id, reviewer_comment = EXCLUDED.reviewer_comment,
			updated_at = EXCLUDED.updated_at`,
		diary.JobID, diary.Version, diary.Content, diary.Status, nullString(diary.PDFDocumentID),
		diary.LastEditedBy, nullString(diary.ReviewerID), nullString(diary.ReviewerComment), diary.UpdatedAt)
	return err
}

func (s *PostgresStore) ListDiariesByStatus(ctx context.Context, status models.DiaryStatus) ([]*models.DiaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pgDiaryColumns+` FROM diaries WHERE status = $1`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diaries []*models.DiaryRecord
	for rows.Next() {
		diary, err := s.scanDiary(rows)
		if err != nil {
			return nil, err
		}
		diaries = append(diaries, diary)
	}
	return diaries, rows.Err()
}

func (s *PostgresStore) AddDocument(ctx context.Context, doc *models.JobDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, job_id, type, name, object_path, sha256, version, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.JobID, doc.Type, doc.Name, doc.ObjectPath, doc.SHA256,
		doc.Version, doc.UploadedBy, doc.UploadedAt)
	return err
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*models.JobDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, type, name, object_path, sha256, version, uploaded_by, uploaded_at
		FROM documents WHERE id = $1`, id)

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

func (s *PostgresStore) ListDocuments(ctx context.Context, jobID string) ([]models.JobDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, type, name, object_path, sha256, version, uploaded_by, uploaded_at
		FROM documents WHERE job_id = $1 ORDER BY uploaded_at, id`, jobID)
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

func (s *PostgresStore) AppendEvent(ctx context.Context, event *models.JobEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM job_events WHERE job_id = $1`, event.JobID).Scan(&seq); err != nil {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
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

func (s *PostgresStore) ListEvents(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, seq, type, actor_id, actor_name, message, created_at, metadata_json
		FROM job_events WHERE job_id = $1 ORDER BY seq`, jobID)
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

func (s *PostgresStore) GetPacket(ctx context.Context, jobID string) (*models.FinalPacket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, packet_document_id, generated_at, generated_by, submitted_at
		FROM packets WHERE job_id = $1`, jobID)

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

func (s *PostgresStore) PutPacket(ctx context.Context, packet *models.FinalPacket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packets (job_id, packet_document_id, generated_at, generated_by, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id) DO UPDATE SET
			packet_document_id = EXCLUDED.packet_document_id, generated_at = EXCLUDED.generated_at,
			generated_by = EXCLUDED.generated_by, submitted_at = EXCLUDED.submitted_at`,
		packet.JobID, packet.PacketDocumentID, packet.GeneratedAt, packet.GeneratedBy,
		nullTime(packet.SubmittedAt))
	return err
}

const pgIntakeColumns = `id, source_channel, site_name, type, description, materials,
       map_included, attachments, received_at, processed_job_id`

func (s *PostgresStore) scanIntake(row interface{ Scan(...interface{}) error }) (*models.IntakeMessage, error) {
	var msg models.IntakeMessage
	var materials, attachments pq.StringArray
	var processedJobID sql.NullString
	err := row.Scan(&msg.ID, &msg.SourceChannel, &msg.SiteName, &msg.Type, &msg.Description,
		&materials, &msg.MapIncluded, &attachments, &msg.ReceivedAt, &processedJobID)
	if err != nil {
		return nil, err
	}
	msg.Materials = []string(materials)
	msg.Attachments = []string(attachments)
	msg.ProcessedJobID = processedJobID.String
	return &msg, nil
}

func (s *PostgresStore) SaveIntakeMessage(ctx context.Context, msg *models.IntakeMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intake_messages (id, source_channel, site_name, type, description, materials,
		                             map_included, attachments, received_at, processed_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			source_channel = EXCLUDED.source_channel, site_name = EXCLUDED.site_name,
			type = EXCLUDED.type, description = EXCLUDED.description, materials = EXCLUDED.materials,
			map_included = EXCLUDED.map_included, attachments = EXCLUDED.attachments,
			received_at = EXCLUDED.received_at, processed_job_id = EXCLUDED.processed_job_id`,
		msg.ID, msg.SourceChannel, msg.SiteName, msg.Type, msg.Description,
		pq.Array(msg.Materials), msg.MapIncluded, pq.Array(msg.Attachments),
		msg.ReceivedAt, nullString(msg.ProcessedJobID))
	return err
}

func (s *PostgresStore) GetIntakeMessage(ctx context.Context, id string) (*models.IntakeMessage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgIntakeColumns+` FROM intake_messages WHERE id = $1`, id)
	msg, err := s.scanIntake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: intake message %s", ErrNotFound, id)
	}
	return msg, err
}

func (s *PostgresStore) ListUnprocessedIntake(ctx context.Context) ([]*models.IntakeMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pgIntakeColumns+`
		FROM intake_messages
		WHERE processed_job_id IS NULL OR processed_job_id = ''
		ORDER BY received_at DESC`)
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

func (s *PostgresStore) MarkIntakeProcessed(ctx context.Context, id, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE intake_messages SET processed_job_id = $1 WHERE id = $2`, jobID, id)
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
