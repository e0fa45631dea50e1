package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type statusCall struct {
	status domain.ProcessingStatus
	errMsg string
}

type scanCall struct {
	status     domain.VirusScanStatus
	result     string
	quarantine bool
}

type repoFake struct {
	doc    *domain.Document
	getErr error

	claimResult bool
	claimErr    error
	claimed     int

	statusCalls []statusCall
	statusErr   error

	savedText   string
	savedMethod string

	ocrMarked   bool
	ocrAppended string

	scanCalls []scanCall

	metadata map[string]string
	tags     []domain.Tag
	tagOrgs  []string

	template *domain.MetadataTemplate

	compliance   *domain.ComplianceResult
	complianceID string
}

func newRepoFake(doc *domain.Document) *repoFake {
	return &repoFake{doc: doc, claimResult: true, metadata: map[string]string{}}
}

func (f *repoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *repoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *repoFake) ClaimForProcessing(context.Context, string) (bool, error) {
	f.claimed++
	return f.claimResult, f.claimErr
}

func (f *repoFake) UpdateStatus(_ context.Context, _ string, status domain.ProcessingStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return f.statusErr
}

func (f *repoFake) SaveExtractedText(_ context.Context, _, text, method string) error {
	f.savedText = text
	f.savedMethod = method
	return nil
}

func (f *repoFake) MarkOCRComplete(_ context.Context, _, appendedText string) error {
	f.ocrMarked = true
	f.ocrAppended = appendedText
	return nil
}

func (f *repoFake) SetVirusScan(_ context.Context, _ string, status domain.VirusScanStatus, result string, quarantine bool) error {
	f.scanCalls = append(f.scanCalls, scanCall{status: status, result: result, quarantine: quarantine})
	return nil
}

func (f *repoFake) AddMetadata(_ context.Context, _, key, value string) error {
	if _, ok := f.metadata[key]; ok {
		return nil
	}
	f.metadata[key] = value
	return nil
}

func (f *repoFake) GetMetadata(_ context.Context, _, key string) (string, bool, error) {
	value, ok := f.metadata[key]
	return value, ok, nil
}

func (f *repoFake) ListMetadata(context.Context, string) ([]domain.MetadataEntry, error) {
	entries := make([]domain.MetadataEntry, 0, len(f.metadata))
	for key, value := range f.metadata {
		entries = append(entries, domain.MetadataEntry{Key: key, Value: value})
	}
	return entries, nil
}

func (f *repoFake) AttachTag(_ context.Context, _ string, tag domain.Tag, organizationID string) error {
	for _, existing := range f.tags {
		if existing.Name == tag.Name {
			return nil
		}
	}
	f.tags = append(f.tags, tag)
	f.tagOrgs = append(f.tagOrgs, organizationID)
	return nil
}

func (f *repoFake) ListTags(context.Context, string) ([]string, error) {
	names := make([]string, 0, len(f.tags))
	for _, tag := range f.tags {
		names = append(names, tag.Name)
	}
	return names, nil
}

func (f *repoFake) GetTemplate(_ context.Context, name, _ string) (*domain.MetadataTemplate, bool, error) {
	if f.template != nil && f.template.Name == name {
		return f.template, true, nil
	}
	return nil, false, nil
}

func (f *repoFake) SaveComplianceResult(_ context.Context, id string, result domain.ComplianceResult) error {
	f.complianceID = id
	f.compliance = &result
	return nil
}

func (f *repoFake) tagNames() []string {
	names := make([]string, 0, len(f.tags))
	for _, tag := range f.tags {
		names = append(names, tag.Name)
	}
	return names
}

type storageFake struct {
	blobs       map[string][]byte
	derivatives map[string][]byte
	openErr     error
	attachErr   error
}

func newStorageFake() *storageFake {
	return &storageFake{blobs: map[string][]byte{}, derivatives: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.blobs[key] = content
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	content, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *storageFake) Attach(_ context.Context, documentID, kind string, data []byte, _ string) (string, error) {
	if f.attachErr != nil {
		return "", f.attachErr
	}
	key := documentID + "/" + kind
	f.derivatives[key] = data
	return key, nil
}

func (f *storageFake) Exists(_ context.Context, documentID, kind string) (bool, error) {
	_, ok := f.derivatives[documentID+"/"+kind]
	return ok, nil
}

type scannerFake struct {
	outcome ports.ScanOutcome
	err     error
	calls   int
}

func (f *scannerFake) Scan(context.Context, io.Reader) (ports.ScanOutcome, error) {
	f.calls++
	if f.err != nil {
		return ports.ScanOutcome{}, f.err
	}
	return f.outcome, nil
}

type extractorFake struct {
	content domain.ExtractedContent
	err     error
}

func (f *extractorFake) ExtractText(context.Context, *domain.Document) (domain.ExtractedContent, error) {
	if f.err != nil {
		return domain.ExtractedContent{}, f.err
	}
	return f.content, nil
}

type enqueued struct {
	lane  ports.Lane
	task  ports.Task
	delay time.Duration
}

type queueFake struct {
	items      []enqueued
	enqueueErr error
}

func (f *queueFake) Enqueue(_ context.Context, lane ports.Lane, task ports.Task) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.items = append(f.items, enqueued{lane: lane, task: task})
	return nil
}

func (f *queueFake) EnqueueAfter(_ context.Context, lane ports.Lane, task ports.Task, delay time.Duration) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.items = append(f.items, enqueued{lane: lane, task: task, delay: delay})
	return nil
}

func (f *queueFake) Subscribe(context.Context, ports.Lane, func(context.Context, ports.Task) error) error {
	return nil
}

func (f *queueFake) stages() []string {
	stages := make([]string, 0, len(f.items))
	for _, item := range f.items {
		stages = append(stages, item.task.Stage)
	}
	return stages
}

type notifierFake struct {
	events []ports.SecurityEvent
}

func (f *notifierFake) NotifyVirusDetected(_ context.Context, event ports.SecurityEvent) error {
	f.events = append(f.events, event)
	return nil
}

type indexerFake struct {
	refreshed []string
}

func (f *indexerFake) Refresh(_ context.Context, documentID string) error {
	f.refreshed = append(f.refreshed, documentID)
	return nil
}

type rendererFake struct {
	preview      []byte
	thumbnail    []byte
	previewErr   error
	thumbnailErr error
}

func (f *rendererFake) Preview(context.Context, string, domain.FileFormat) ([]byte, error) {
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	return f.preview, nil
}

func (f *rendererFake) Thumbnail(context.Context, string, domain.FileFormat) ([]byte, error) {
	if f.thumbnailErr != nil {
		return nil, f.thumbnailErr
	}
	return f.thumbnail, nil
}

type ocrEngineFake struct {
	text     string
	err      error
	calls    int
	language string
}

func (f *ocrEngineFake) Recognize(_ context.Context, _ string, languageHint string) (string, error) {
	f.calls++
	f.language = languageHint
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type aiClassifierFake struct {
	documentType string
	err          error
	calls        int
}

func (f *aiClassifierFake) ClassifyDocumentType(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.documentType, nil
}
