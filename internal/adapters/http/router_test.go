package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/core/usecase"
)

type ingestFake struct {
	lastUpload ports.DocumentUpload
	err        error
}

func (f *ingestFake) Upload(_ context.Context, upload ports.DocumentUpload, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastUpload = upload
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    upload.Filename,
		MimeType:    upload.MimeType,
		StoragePath: "doc-1_" + upload.Filename,
		SizeBytes:   int64(len(raw)),
		Status:      domain.StatusPending,
		VirusScan:   domain.ScanUnscanned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type complianceFake struct {
	result *domain.ComplianceResult
	report *usecase.OrganizationReport
	err    error
}

func (f *complianceFake) Check(context.Context, string) (*domain.ComplianceResult, error) {
	return f.result, f.err
}

func (f *complianceFake) Report(context.Context, []string) (*usecase.OrganizationReport, error) {
	return f.report, f.err
}

type directoryFake struct {
	doc     *domain.Document
	tags    []string
	entries []domain.MetadataEntry
}

func (f *directoryFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return f.doc, nil
}

func (f *directoryFake) ListTags(context.Context, string) ([]string, error) {
	return f.tags, nil
}

func (f *directoryFake) ListMetadata(context.Context, string) ([]domain.MetadataEntry, error) {
	return f.entries, nil
}

func newTestRouter(ingest *ingestFake, compliance *complianceFake, docs *directoryFake) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(ingest, compliance, docs, Limits{MaxUploadBytes: 1 << 20}, "api", nil, log).Handler()
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(&ingestFake{}, &complianceFake{}, &directoryFake{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestRouter(ingest, &complianceFake{}, &directoryFake{})

	body, contentType := multipartUpload(t, "facture.pdf", "%PDF-1.4", map[string]string{
		"organization_id": "org-1",
		"uploader_id":     "user-9",
		"uploader_name":   "Claire Martin",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if ingest.lastUpload.OrganizationID != "org-1" || ingest.lastUpload.UploaderName != "Claire Martin" {
		t.Fatalf("upload attributes not forwarded: %+v", ingest.lastUpload)
	}

	var docResp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&docResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if docResp["id"] != "doc-1" {
		t.Fatalf("unexpected response: %+v", docResp)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestRouter(&ingestFake{}, &complianceFake{}, &directoryFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentMapsInvalidInput(t *testing.T) {
	ingest := &ingestFake{err: domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename is required"))}
	handler := newTestRouter(ingest, &complianceFake{}, &directoryFake{})

	body, contentType := multipartUpload(t, "x.bin", "data", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentByID(t *testing.T) {
	docs := &directoryFake{doc: &domain.Document{ID: "doc-1", Filename: "facture.pdf"}}
	handler := newTestRouter(&ingestFake{}, &complianceFake{}, docs)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents/doc-404", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown document, got %d", res.Code)
	}
}

func TestListTagsAndMetadata(t *testing.T) {
	docs := &directoryFake{
		doc:     &domain.Document{ID: "doc-1"},
		tags:    []string{"facture", "urgent"},
		entries: []domain.MetadataEntry{{Key: "invoice_number", Value: "INV-2024-001"}},
	}
	handler := newTestRouter(&ingestFake{}, &complianceFake{}, docs)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/tags", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("tags: expected 200, got %d", res.Code)
	}
	var tagResp struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(res.Body).Decode(&tagResp); err != nil {
		t.Fatalf("decode tags: %v", err)
	}
	if len(tagResp.Tags) != 2 {
		t.Fatalf("tags = %v", tagResp.Tags)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/metadata", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("metadata: expected 200, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents/doc-404/tags", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("tags on missing document: expected 404, got %d", res.Code)
	}
}

func TestCheckComplianceEndpoint(t *testing.T) {
	compliance := &complianceFake{result: &domain.ComplianceResult{Score: 85, Compliant: false}}
	handler := newTestRouter(&ingestFake{}, compliance, &directoryFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/compliance", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var result domain.ComplianceResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Score != 85 {
		t.Fatalf("score = %d", result.Score)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/compliance", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", res.Code)
	}
}

func TestComplianceReportEndpoint(t *testing.T) {
	compliance := &complianceFake{report: &usecase.OrganizationReport{Documents: 2, AverageScore: 90, Compliant: 1}}
	handler := newTestRouter(&ingestFake{}, compliance, &directoryFake{})

	payload := bytes.NewBufferString(`{"document_ids": ["doc-1", "doc-2"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/compliance/report", payload)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/compliance/report", bytes.NewBufferString(`{"document_ids": []}`))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", res.Code)
	}
}

func TestQuarantinedComplianceIsRejected(t *testing.T) {
	compliance := &complianceFake{err: domain.WrapError(domain.ErrInvalidInput, "compliance check", errors.New("document is quarantined"))}
	handler := newTestRouter(&ingestFake{}, compliance, &directoryFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/compliance", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	handler := newTestRouter(&ingestFake{}, &complianceFake{}, &directoryFake{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected %s header on response", requestIDHeader)
	}
}
