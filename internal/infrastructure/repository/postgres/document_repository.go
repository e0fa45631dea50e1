package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docstream/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	uploader_id TEXT NOT NULL,
	uploader_name TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	virus_scan_status TEXT NOT NULL,
	virus_scan_result TEXT NOT NULL DEFAULT '',
	quarantined BOOLEAN NOT NULL DEFAULT FALSE,
	extracted_text TEXT NOT NULL DEFAULT '',
	extraction_method TEXT NOT NULL DEFAULT '',
	ocr_performed BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT NOT NULL DEFAULT '',
	compliance_result JSONB,
	compliance_score INTEGER,
	search_vector TSVECTOR,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_org ON documents(organization_id);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_search ON documents USING GIN(search_vector);

CREATE TABLE IF NOT EXISTS document_metadata (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (document_id, key)
);

CREATE TABLE IF NOT EXISTS tags (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	organization_id TEXT NOT NULL,
	UNIQUE (name, organization_id)
);

CREATE TABLE IF NOT EXISTS document_tags (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (document_id, tag_id)
);

CREATE TABLE IF NOT EXISTS metadata_templates (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	UNIQUE (name, organization_id)
);

CREATE TABLE IF NOT EXISTS template_fields (
	template_id BIGINT NOT NULL REFERENCES metadata_templates(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	required BOOLEAN NOT NULL DEFAULT FALSE,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (template_id, name)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, organization_id, uploader_id, uploader_name, filename, mime_type, storage_path,
	size_bytes, content_hash, status, virus_scan_status, virus_scan_result, quarantined,
	extracted_text, ocr_performed, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		doc.ID, doc.OrganizationID, doc.UploaderID, doc.UploaderName, doc.Filename, doc.MimeType,
		doc.StoragePath, doc.SizeBytes, doc.ContentHash, string(doc.Status), string(doc.VirusScan),
		doc.VirusScanResult, doc.Quarantined, doc.ExtractedText, doc.OCRPerformed, doc.Error,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, organization_id, uploader_id, uploader_name, filename, mime_type, storage_path,
	size_bytes, content_hash, status, virus_scan_status, virus_scan_result, quarantined,
	extracted_text, ocr_performed, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status, scanStatus string

	err := row.Scan(
		&doc.ID, &doc.OrganizationID, &doc.UploaderID, &doc.UploaderName, &doc.Filename,
		&doc.MimeType, &doc.StoragePath, &doc.SizeBytes, &doc.ContentHash, &status, &scanStatus,
		&doc.VirusScanResult, &doc.Quarantined, &doc.ExtractedText, &doc.OCRPerformed,
		&doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.ProcessingStatus(status)
	doc.VirusScan = domain.VirusScanStatus(scanStatus)
	return &doc, nil
}

// ClaimForProcessing is a conditional update; the WHERE clause is the whole
// single-flight guarantee and must stay in one statement.
func (r *DocumentRepository) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, updated_at = $3
WHERE id = $1
	AND status NOT IN ($2, $4)
	AND virus_scan_status <> $5
`, id, string(domain.StatusProcessing), time.Now().UTC(), string(domain.StatusCompleted), string(domain.ScanInfected))
	if err != nil {
		return false, fmt.Errorf("claim document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(result, "update status", id)
}

func requireRow(result sql.Result, op, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *DocumentRepository) SaveExtractedText(ctx context.Context, id, text, method string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET extracted_text = $2, extraction_method = $3, updated_at = $4
WHERE id = $1
`, id, text, method, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkOCRComplete(ctx context.Context, id, appendedText string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET ocr_performed = TRUE,
	extracted_text = CASE
		WHEN $2 = '' THEN extracted_text
		WHEN extracted_text = '' THEN $2
		ELSE extracted_text || E'\n\n' || $2
	END,
	updated_at = $3
WHERE id = $1
`, id, appendedText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark ocr complete: %w", err)
	}
	return requireRow(result, "mark ocr complete", id)
}

func (r *DocumentRepository) SetVirusScan(ctx context.Context, id string, status domain.VirusScanStatus, result string, quarantine bool) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET virus_scan_status = $2, virus_scan_result = $3, quarantined = $4, updated_at = $5
WHERE id = $1
`, id, string(status), result, quarantine, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set virus scan: %w", err)
	}
	return nil
}

// AddMetadata is first-write-wins: extraction stages presence-check before
// writing and may re-run after OCR appends text, so a key that already holds
// a value must keep it rather than flap between passes. Refreshing a stale
// entry requires deleting the key first.
func (r *DocumentRepository) AddMetadata(ctx context.Context, id, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_metadata (document_id, key, value, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id, key) DO NOTHING
`, id, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert metadata %s: %w", key, err)
	}
	return nil
}

func (r *DocumentRepository) GetMetadata(ctx context.Context, id, key string) (string, bool, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT value FROM document_metadata WHERE document_id = $1 AND key = $2
`, id, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("scan metadata %s: %w", key, err)
	}
	return value, true, nil
}

func (r *DocumentRepository) ListMetadata(ctx context.Context, id string) ([]domain.MetadataEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT key, value FROM document_metadata WHERE document_id = $1 ORDER BY key
`, id)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer rows.Close()

	var entries []domain.MetadataEntry
	for rows.Next() {
		var entry domain.MetadataEntry
		if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
			return nil, fmt.Errorf("scan metadata entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata: %w", err)
	}
	return entries, nil
}

func (r *DocumentRepository) AttachTag(ctx context.Context, id string, tag domain.Tag, organizationID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tag tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var tagID int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO tags (name, color, organization_id)
VALUES ($1, $2, $3)
ON CONFLICT (name, organization_id) DO UPDATE SET color = tags.color
RETURNING id
`, tag.Name, tag.Color, organizationID).Scan(&tagID)
	if err != nil {
		return fmt.Errorf("upsert tag %s: %w", tag.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO document_tags (document_id, tag_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, id, tagID); err != nil {
		return fmt.Errorf("attach tag %s: %w", tag.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tag tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListTags(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT t.name
FROM tags t
JOIN document_tags dt ON dt.tag_id = t.id
WHERE dt.document_id = $1
ORDER BY t.name
`, id)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return names, nil
}

func (r *DocumentRepository) GetTemplate(ctx context.Context, name, organizationID string) (*domain.MetadataTemplate, bool, error) {
	var templateID int64
	err := r.db.QueryRowContext(ctx, `
SELECT id FROM metadata_templates WHERE name = $1 AND organization_id = $2
`, name, organizationID).Scan(&templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("find template %s: %w", name, err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT name, required FROM template_fields WHERE template_id = $1 ORDER BY position, name
`, templateID)
	if err != nil {
		return nil, false, fmt.Errorf("query template fields: %w", err)
	}
	defer rows.Close()

	template := &domain.MetadataTemplate{Name: name}
	for rows.Next() {
		var field domain.TemplateField
		if err := rows.Scan(&field.Name, &field.Required); err != nil {
			return nil, false, fmt.Errorf("scan template field: %w", err)
		}
		template.Fields = append(template.Fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate template fields: %w", err)
	}
	return template, true, nil
}

func (r *DocumentRepository) SaveComplianceResult(ctx context.Context, id string, result domain.ComplianceResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal compliance result: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE documents
SET compliance_result = $2, compliance_score = $3, updated_at = $4
WHERE id = $1
`, id, payload, result.Score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save compliance result: %w", err)
	}
	return nil
}
