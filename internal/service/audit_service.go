package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/pkg/jobs"
)

const auditJobType = "audit"

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditEvent describes a destructive operation worth recording.
type AuditEvent struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Before     interface{}
	After      interface{}
}

// AuditService writes audit entries on a background queue so the request path never waits on them.
type AuditService struct {
	writer auditWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// AuditConfig sizes the background writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
}

// NewAuditService wires the writer to a job queue. Call Start before recording and Stop on shutdown.
func NewAuditService(writer auditWriter, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{writer: writer, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return svc
}

// Start launches the background workers.
func (s *AuditService) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains pending entries and stops the workers.
func (s *AuditService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// Record enqueues an event. Failures are logged only; auditing never blocks the operation it describes.
func (s *AuditService) Record(event AuditEvent) {
	if s == nil {
		return
	}
	entry, err := buildAuditLog(event)
	if err != nil {
		s.logger.Warn("audit event dropped", zap.String("action", event.Action), zap.Error(err))
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: auditJobType, Payload: entry}); err != nil {
		s.logger.Warn("audit event dropped", zap.String("action", event.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.writer.Create(ctx, entry)
}

func buildAuditLog(event AuditEvent) (*models.AuditLog, error) {
	entry := &models.AuditLog{Action: event.Action, Resource: event.Resource}
	if event.ActorID != "" {
		actor := event.ActorID
		entry.UserID = &actor
	}
	if event.ResourceID != "" {
		resourceID := event.ResourceID
		entry.ResourceID = &resourceID
	}
	if event.Before != nil {
		raw, err := json.Marshal(event.Before)
		if err != nil {
			return nil, fmt.Errorf("marshal audit before: %w", err)
		}
		entry.OldValues = raw
	}
	if event.After != nil {
		raw, err := json.Marshal(event.After)
		if err != nil {
			return nil, fmt.Errorf("marshal audit after: %w", err)
		}
		entry.NewValues = raw
	}
	return entry, nil
}
