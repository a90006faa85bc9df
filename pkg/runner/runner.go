// Package runner consumes workflow run requests from NATS, executes them
// through the engine, and publishes the resulting record list. It is the
// process boundary between editors/CLIs and the engine.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

const (
	// DefaultSubject is the subject run requests arrive on.
	DefaultSubject = "workflow.run"

	// DefaultQueue is the queue group name; runners in the same group share
	// the request load.
	DefaultQueue = "workflow-runners"
)

// RunRequest is the wire format of a run request.
type RunRequest struct {
	Workflow *workflow.Workflow `json:"workflow"`
	Input    interface{}        `json:"input"`
}

// RunResponse is the wire format of a run result.
type RunResponse struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"` // completed | invalid
	Error     string          `json:"error,omitempty"`
	Records   []engine.Record `json:"records,omitempty"`
	ArchiveTo string          `json:"archive_url,omitempty"`
}

// Config controls the runner.
type Config struct {
	// Subject and Queue select the NATS subscription. Defaults apply.
	Subject string
	Queue   string

	// ResultSubject receives responses for requests without a reply inbox.
	// Empty means such results are dropped with a warning.
	ResultSubject string

	// SentryDSN enables error reporting for failed and invalid runs.
	SentryDSN string

	// Logger is optional.
	Logger *zap.Logger
}

// Runner subscribes to run requests and drives the engine.
type Runner struct {
	conn     *nats.Conn
	engine   *engine.Engine
	archiver storage.RunArchiver
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
	sub      *nats.Subscription
	sentryOn bool
}

// NewRunner creates a runner. The connection and engine are required; the
// archiver is optional and, when set, every completed run's records are
// uploaded.
func NewRunner(conn *nats.Conn, eng *engine.Engine, archiver storage.RunArchiver, cfg Config) (*Runner, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sentryOn := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			return nil, fmt.Errorf("initializing sentry: %w", err)
		}
		sentryOn = true
	}

	return &Runner{
		conn:     conn,
		engine:   eng,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("daedalus/runner"),
		sentryOn: sentryOn,
	}, nil
}

// Start subscribes to the run subject. Requests are handled concurrently by
// the NATS delivery goroutines until Stop.
func (r *Runner) Start(_ context.Context) error {
	sub, err := r.conn.QueueSubscribe(r.cfg.Subject, r.cfg.Queue, r.handle)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.cfg.Subject, err)
	}
	r.sub = sub
	r.logger.Info("runner started",
		zap.String("subject", r.cfg.Subject),
		zap.String("queue", r.cfg.Queue))
	return nil
}

// Stop unsubscribes and flushes pending error reports.
func (r *Runner) Stop() error {
	if r.sub != nil {
		if err := r.sub.Drain(); err != nil {
			return fmt.Errorf("draining subscription: %w", err)
		}
		r.sub = nil
	}
	if r.sentryOn {
		sentry.Flush(2 * time.Second)
	}
	r.logger.Info("runner stopped")
	return nil
}

func (r *Runner) handle(msg *nats.Msg) {
	requestID := uuid.NewString()
	logger := r.logger.With(zap.String("request_id", requestID))

	ctx, span := r.tracer.Start(context.Background(), "runner.handle", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("nats.subject", msg.Subject),
	))
	defer span.End()

	var req RunRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		logger.Warn("malformed run request", zap.Error(err))
		r.captureError(err)
		r.respond(msg, logger, RunResponse{
			RequestID: requestID,
			Status:    "invalid",
			Error:     fmt.Sprintf("malformed request: %v", err),
		})
		return
	}

	records, err := r.engine.Run(ctx, req.Workflow, req.Input)
	if err != nil {
		logger.Warn("workflow rejected", zap.Error(err))
		r.captureError(err)
		r.respond(msg, logger, RunResponse{
			RequestID: requestID,
			Status:    "invalid",
			Error:     err.Error(),
		})
		return
	}

	resp := RunResponse{
		RequestID: requestID,
		Status:    "completed",
		Records:   records,
	}

	if r.archiver != nil {
		workflowID := ""
		if req.Workflow != nil {
			workflowID = req.Workflow.ID
		}
		url, err := r.archiver.ArchiveRun(ctx, requestID, workflowID, records)
		if err != nil {
			logger.Warn("run archive failed", zap.Error(err))
			r.captureError(err)
		} else {
			resp.ArchiveTo = url
		}
	}

	r.respond(msg, logger, resp)
}

func (r *Runner) respond(msg *nats.Msg, logger *zap.Logger, resp RunResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		logger.Error("encoding response failed", zap.Error(err))
		return
	}

	subject := msg.Reply
	if subject == "" {
		subject = r.cfg.ResultSubject
	}
	if subject == "" {
		logger.Warn("no reply inbox and no result subject; dropping response")
		return
	}
	if err := r.conn.Publish(subject, payload); err != nil {
		logger.Error("publishing response failed",
			zap.String("subject", subject),
			zap.Error(err))
		r.captureError(err)
	}
}

func (r *Runner) captureError(err error) {
	if r.sentryOn && err != nil {
		sentry.CaptureException(err)
	}
}
