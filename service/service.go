package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediaforge/cache"
	"mediaforge/events"
	"mediaforge/models"
	"mediaforge/options"
	"mediaforge/pipeline"
	"mediaforge/repository"
)

// BatchOutcome is a completed batch: its generated identifier and the
// per-file results in input order.
type BatchOutcome struct {
	BatchID string                    `json:"batch_id"`
	Results []models.ConversionResult `json:"results"`
}

// ConversionService runs batches through the pipeline and fans the outcome
// out to the optional infrastructure: conversion history in Postgres,
// result cache in Redis, batch events on Kafka. Any of recorder, cache and
// producer may be nil, in which case that concern is skipped.
type ConversionService struct {
	pipeline *pipeline.Pipeline
	recorder repository.Recorder
	cache    *cache.ResultsCache
	producer events.Producer
	topic    string
	logger   *zap.Logger
}

func New(p *pipeline.Pipeline, recorder repository.Recorder, c *cache.ResultsCache, producer events.Producer, topic string, logger *zap.Logger) *ConversionService {
	return &ConversionService{
		pipeline: p,
		recorder: recorder,
		cache:    c,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// ConvertBatch assigns the batch an identifier, runs it, and records the
// outcome. Infrastructure failures are logged and do not fail the batch;
// the conversion already happened.
func (s *ConversionService) ConvertBatch(ctx context.Context, files []models.UploadedFile, opts options.Options) (*BatchOutcome, error) {
	batchID := uuid.New().String()

	results, err := s.pipeline.ProcessBatch(ctx, files, opts)
	if err != nil {
		return nil, err
	}

	outcome := &BatchOutcome{BatchID: batchID, Results: results}
	s.publish(ctx, outcome)
	return outcome, nil
}

// ConvertVideo runs a single video file and records it as a one-file batch.
func (s *ConversionService) ConvertVideo(ctx context.Context, file models.UploadedFile, opts options.Options) (*BatchOutcome, error) {
	batchID := uuid.New().String()

	result := s.pipeline.ProcessSingle(ctx, file, opts)

	outcome := &BatchOutcome{BatchID: batchID, Results: []models.ConversionResult{result}}
	s.publish(ctx, outcome)
	return outcome, nil
}

// CachedResults returns a previously completed batch by identifier, if a
// cache is configured and the entry has not expired.
func (s *ConversionService) CachedResults(ctx context.Context, batchID string) ([]models.ConversionResult, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.Get(ctx, batchID)
}

func (s *ConversionService) publish(ctx context.Context, outcome *BatchOutcome) {
	succeeded, failed := 0, 0
	for _, res := range outcome.Results {
		if res.Status == models.StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}

	if s.recorder != nil {
		for _, res := range outcome.Results {
			if err := s.recorder.RecordResult(ctx, outcome.BatchID, res); err != nil {
				s.logger.Error("Failed to record conversion",
					zap.String("batch_id", outcome.BatchID),
					zap.String("file", res.Name),
					zap.Error(err),
				)
			}
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, outcome.BatchID, outcome.Results); err != nil {
			s.logger.Error("Failed to cache batch results",
				zap.String("batch_id", outcome.BatchID),
				zap.Error(err),
			)
		}
	}

	if s.producer != nil {
		event := &events.BatchEvent{
			BatchID:     outcome.BatchID,
			Files:       len(outcome.Results),
			Succeeded:   succeeded,
			Failed:      failed,
			CompletedAt: time.Now().UTC(),
		}
		if err := s.producer.PublishBatch(ctx, s.topic, event); err != nil {
			s.logger.Error("Failed to publish batch event",
				zap.String("batch_id", outcome.BatchID),
				zap.Error(err),
			)
		}
	}
}
