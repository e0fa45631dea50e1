package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/core/usecase"
	"github.com/kirillkom/docstream/internal/observability/metrics"
)

// complianceService is what the router needs from the compliance use case.
type complianceService interface {
	Check(ctx context.Context, documentID string) (*domain.ComplianceResult, error)
	Report(ctx context.Context, documentIDs []string) (*usecase.OrganizationReport, error)
}

// documentDirectory is the read-side slice of the repository the router uses.
type documentDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListTags(ctx context.Context, id string) ([]string, error)
	ListMetadata(ctx context.Context, id string) ([]domain.MetadataEntry, error)
}

// Limits bundles the router's load-shedding knobs.
type Limits struct {
	MaxUploadBytes int64
	RateLimitRPS   int
	RateLimitBurst int
	MaxInFlight    int
}

type Router struct {
	ingestUC     ports.DocumentIngestor
	complianceUC complianceService
	docs         documentDirectory

	limits      Limits
	serviceName string
	metrics     *metrics.HTTPServerMetrics
	log         *slog.Logger
}

func NewRouter(
	ingestUC ports.DocumentIngestor,
	complianceUC complianceService,
	docs documentDirectory,
	limits Limits,
	serviceName string,
	httpMetrics *metrics.HTTPServerMetrics,
	log *slog.Logger,
) *Router {
	return &Router{
		ingestUC:     ingestUC,
		complianceUC: complianceUC,
		docs:         docs,
		limits:       limits,
		serviceName:  serviceName,
		metrics:      httpMetrics,
		log:          log,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentSubresource)
	mux.HandleFunc("/v1/compliance/report", rt.complianceReport)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.serviceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.limits.MaxInFlight, time.Second)
	handler = rateLimitMiddleware(handler, rt.limits.RateLimitRPS, rt.limits.RateLimitBurst)
	return requestIDMiddleware(accessLogMiddleware(rt.log, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if rt.limits.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.limits.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(r.Context(), ports.DocumentUpload{
		Filename:       fileHeader.Filename,
		MimeType:       fileHeader.Header.Get("Content-Type"),
		OrganizationID: r.FormValue("organization_id"),
		UploaderID:     r.FormValue("uploader_id"),
		UploaderName:   r.FormValue("uploader_name"),
	}, file)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		format := domain.DetectFormat(doc.MimeType, doc.Filename).String()
		rt.metrics.RecordUpload(rt.serviceName, format, doc.SizeBytes)
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) documentSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch sub {
	case "":
		rt.getDocumentByID(w, r, id)
	case "tags":
		rt.listTags(w, r, id)
	case "metadata":
		rt.listMetadata(w, r, id)
	case "compliance":
		rt.checkCompliance(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
	}
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) listTags(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	// Existence check first so a missing document is a 404, not an empty list.
	if _, err := rt.docs.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	tags, err := rt.docs.ListTags(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "tags": tags})
}

func (rt *Router) listMetadata(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if _, err := rt.docs.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	entries, err := rt.docs.ListMetadata(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.MetadataEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "metadata": entries})
}

func (rt *Router) checkCompliance(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	result, err := rt.complianceUC.Check(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordComplianceScore(rt.serviceName, result.Score)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) complianceReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.DocumentIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_ids is required"})
		return
	}

	report, err := rt.complianceUC.Report(r.Context(), req.DocumentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
