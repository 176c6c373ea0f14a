// Package events consumes the object-store completion stream and drives
// document extraction for each finalized upload.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/cache/redis"
	"github.com/gradelens/backend/internal/storage/models"
	"github.com/gradelens/backend/pkg/logger"
)

// Lifecycle is the slice of the document manager the subscriber drives.
type Lifecycle interface {
	RecordUpload(ctx context.Context, ownerID string, docType models.DocumentType, fileRef string) (*models.Document, error)
	ExtractText(ctx context.Context, ownerID string, docType models.DocumentType) (*models.Document, error)
}

type Stream interface {
	ReadObjectFinalized(ctx context.Context, stream, lastID string, block time.Duration) ([]redis.ObjectFinalizedEvent, string, error)
}

const readBlock = 5 * time.Second

type Subscriber struct {
	stream    Stream
	lifecycle Lifecycle
	name      string
}

func NewSubscriber(stream Stream, lifecycle Lifecycle, streamName string) *Subscriber {
	return &Subscriber{
		stream:    stream,
		lifecycle: lifecycle,
		name:      streamName,
	}
}

// Run consumes the stream until ctx is cancelled. Events are handled one at
// a time in stream order; a failed extraction is logged and skipped, since
// the failure is already recorded on the document and retryable through the
// API.
func (s *Subscriber) Run(ctx context.Context) {
	logger.Info("Event subscriber started", zap.String("stream", s.name))

	lastID := "$"
	for {
		select {
		case <-ctx.Done():
			logger.Info("Event subscriber stopped", zap.String("stream", s.name))
			return
		default:
		}

		events, next, err := s.stream.ReadObjectFinalized(ctx, s.name, lastID, readBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Failed to read event stream", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		lastID = next

		for _, ev := range events {
			s.handle(ctx, ev)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, ev redis.ObjectFinalizedEvent) {
	docType := models.DocumentType(ev.DocType)

	if _, err := s.lifecycle.RecordUpload(ctx, ev.OwnerID, docType, ev.FileRef); err != nil {
		logger.Error("Failed to record upload from event",
			zap.String("stream_id", ev.StreamID),
			zap.String("owner_id", ev.OwnerID),
			zap.String("doc_type", ev.DocType),
			zap.Error(err),
		)
		return
	}

	if _, err := s.lifecycle.ExtractText(ctx, ev.OwnerID, docType); err != nil {
		logger.Warn("Extraction from event failed",
			zap.String("stream_id", ev.StreamID),
			zap.String("owner_id", ev.OwnerID),
			zap.String("doc_type", ev.DocType),
			zap.Error(err),
		)
		return
	}

	logger.Info("Event processed",
		zap.String("stream_id", ev.StreamID),
		zap.String("owner_id", ev.OwnerID),
		zap.String("doc_type", ev.DocType),
	)
}
