package service

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"mediaforge/events"
	"mediaforge/models"
	"mediaforge/options"
	"mediaforge/pipeline"
	"mediaforge/repository"
)

type passthroughConverter struct{}

func (passthroughConverter) Convert(ctx context.Context, file models.UploadedFile, opts options.Options) models.ConversionResult {
	os.Remove(file.Path)
	return models.ConversionResult{Name: file.OriginalName, Status: models.StatusSuccess}
}

type recordingRecorder struct {
	batchIDs []string
	names    []string
}

func (r *recordingRecorder) RecordResult(ctx context.Context, batchID string, result models.ConversionResult) error {
	r.batchIDs = append(r.batchIDs, batchID)
	r.names = append(r.names, result.Name)
	return nil
}

type recordingProducer struct {
	events []*events.BatchEvent
	topics []string
}

func (p *recordingProducer) PublishBatch(ctx context.Context, topic string, event *events.BatchEvent) error {
	p.events = append(p.events, event)
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func stagePNG(t *testing.T, dir, name string) models.UploadedFile {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return models.UploadedFile{OriginalName: name, Path: path, Size: 1}
}

func newTestService(t *testing.T, recorder *recordingRecorder, producer *recordingProducer) *ConversionService {
	t.Helper()

	logger := zaptest.NewLogger(t)
	conv := passthroughConverter{}
	pipe := pipeline.New(
		pipeline.NewRouter(pipeline.RouterConfig{}, nil, logger),
		conv, conv, nil, conv, 50, logger,
	)

	var rec repository.Recorder
	if recorder != nil {
		rec = recorder
	}
	var prod events.Producer
	if producer != nil {
		prod = producer
	}
	return New(pipe, rec, nil, prod, "media_conversions", logger)
}

func TestConvertBatchAssignsIDAndFansOut(t *testing.T) {
	recorder := &recordingRecorder{}
	producer := &recordingProducer{}
	svc := newTestService(t, recorder, producer)

	dir := t.TempDir()
	files := []models.UploadedFile{
		stagePNG(t, dir, "a.png"),
		stagePNG(t, dir, "b.png"),
	}

	outcome, err := svc.ConvertBatch(context.Background(), files, options.Defaults(models.CategoryImage))
	if err != nil {
		t.Fatalf("ConvertBatch: %v", err)
	}

	if outcome.BatchID == "" {
		t.Error("expected a generated batch identifier")
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(outcome.Results))
	}

	if len(recorder.names) != 2 {
		t.Fatalf("recorded = %v, want both files", recorder.names)
	}
	for _, id := range recorder.batchIDs {
		if id != outcome.BatchID {
			t.Errorf("recorded batch id %q, want %q", id, outcome.BatchID)
		}
	}

	if len(producer.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(producer.events))
	}
	event := producer.events[0]
	if event.BatchID != outcome.BatchID || event.Files != 2 || event.Succeeded != 2 || event.Failed != 0 {
		t.Errorf("event = %+v", event)
	}
	if producer.topics[0] != "media_conversions" {
		t.Errorf("topic = %q", producer.topics[0])
	}
}

func TestConvertBatchWithoutIntegrations(t *testing.T) {
	svc := newTestService(t, nil, nil)

	dir := t.TempDir()
	files := []models.UploadedFile{stagePNG(t, dir, "a.png")}

	outcome, err := svc.ConvertBatch(context.Background(), files, options.Defaults(models.CategoryImage))
	if err != nil {
		t.Fatalf("ConvertBatch: %v", err)
	}
	if len(outcome.Results) != 1 || outcome.Results[0].Status != models.StatusSuccess {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestConvertBatchPropagatesInputErrors(t *testing.T) {
	svc := newTestService(t, nil, nil)

	if _, err := svc.ConvertBatch(context.Background(), nil, options.Defaults(models.CategoryImage)); err == nil {
		t.Fatal("expected empty batch to fail")
	}
}

func TestCachedResultsWithoutCache(t *testing.T) {
	svc := newTestService(t, nil, nil)

	results, err := svc.CachedResults(context.Background(), "some-batch")
	if err != nil || results != nil {
		t.Fatalf("expected nil, nil without a cache, got %v, %v", results, err)
	}
}

func TestConvertBatchCountsFailures(t *testing.T) {
	producer := &recordingProducer{}
	svc := newTestService(t, &recordingRecorder{}, producer)

	dir := t.TempDir()
	spoofed := filepath.Join(dir, "fake.png")
	if err := os.WriteFile(spoofed, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	files := []models.UploadedFile{
		stagePNG(t, dir, "real.png"),
		{OriginalName: "fake.png", Path: spoofed, Size: 12},
	}

	outcome, err := svc.ConvertBatch(context.Background(), files, options.Defaults(models.CategoryImage))
	if err != nil {
		t.Fatalf("ConvertBatch: %v", err)
	}
	if outcome.Results[1].Status != models.StatusError {
		t.Fatalf("expected spoofed file to fail validation, got %+v", outcome.Results[1])
	}

	event := producer.events[0]
	if event.Succeeded != 1 || event.Failed != 1 {
		t.Errorf("event counts = %d/%d, want 1 succeeded, 1 failed", event.Succeeded, event.Failed)
	}
}
