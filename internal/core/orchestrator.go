package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// JobSource is the remote service that owns the jobs.
type JobSource interface {
	FetchPending(ctx context.Context) []Job
	ReportStatus(ctx context.Context, id JobID, status JobStatus, errorMessage string) Report
}

// PassRecord is written to the Recorder once per job that reached rendering.
type PassRecord struct {
	PassID      string
	JobID       JobID
	ProductName string
	Template    string
	State       PassState
	Sent        int
	Total       int
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

type Recorder interface {
	Record(ctx context.Context, rec PassRecord) error
}

type OrchestratorOption func(*Orchestrator)

func WithRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator drives jobs through rendering, transmission and status
// reporting. It holds no per-pass state, so passes may run concurrently.
type Orchestrator struct {
	source    JobSource
	sender    Sender
	snapshots *SnapshotStore
	recorder  Recorder
	logger    *slog.Logger
}

func NewOrchestrator(source JobSource, sender Sender, snapshots *SnapshotStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		source:    source,
		sender:    sender,
		snapshots: snapshots,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PrintJob prints a single pending job. Progress is sent to events in
// emission order; events is not closed. A nil channel discards progress.
func (o *Orchestrator) PrintJob(ctx context.Context, id JobID, template string, events chan<- Event) Outcome {
	snap := o.snapshots.Load()
	passID := uuid.NewString()
	log := o.logger.With("pass_id", passID, "job_id", id.String(), "template", template)
	emit := emitter(events)

	job, found := findJob(o.source.FetchPending(ctx), id)
	if !found {
		log.Warn("job not in pending list")
		emit(ResultEvent(false, "Job %s not found", id))
		return Outcome{JobID: id, State: StateError, Err: fmt.Errorf("%w: %s", ErrJobNotFound, id)}
	}

	out := o.runJob(ctx, snap, passID, job, template, emit, log)
	if out.Done() {
		emit(ResultEvent(true, "%d labels printed", out.Total))
	} else {
		emit(ResultEvent(false, "Error: %v", out.Err))
	}
	return out
}

// PrintAll prints every pending job, continuing past individual failures,
// and finishes with one aggregate result event.
func (o *Orchestrator) PrintAll(ctx context.Context, template string, events chan<- Event) BatchOutcome {
	snap := o.snapshots.Load()
	passID := uuid.NewString()
	log := o.logger.With("pass_id", passID, "template", template)
	emit := emitter(events)

	jobs := o.source.FetchPending(ctx)
	if len(jobs) == 0 {
		emit(ResultEvent(false, "No pending jobs"))
		return BatchOutcome{}
	}

	emit(StatusEvent("Processing %d jobs", len(jobs)))

	batch := BatchOutcome{Jobs: make([]Outcome, 0, len(jobs))}
	for _, job := range jobs {
		out := o.runJob(ctx, snap, passID, job, template, emit, log.With("job_id", job.ID.String()))
		batch.Jobs = append(batch.Jobs, out)
		if out.Done() {
			batch.Succeeded++
			emit(StatusEvent("✅ %s", job.ProductName))
		} else {
			emit(StatusEvent("❌ %s: %v", job.ProductName, out.Err))
		}
	}

	log.Info("batch finished", "succeeded", batch.Succeeded, "total", len(jobs))
	emit(ResultEvent(batch.Succeeded == len(jobs), "Processed %d/%d jobs", batch.Succeeded, len(jobs)))
	return batch
}

func (o *Orchestrator) runJob(ctx context.Context, snap *Snapshot, passID string, job Job, template string, emit func(Event), log *slog.Logger) Outcome {
	started := time.Now()
	out := Outcome{JobID: job.ID, ProductName: job.ProductName, State: StateFetched}
	defer func() {
		o.record(ctx, log, PassRecord{
			PassID:      passID,
			JobID:       job.ID,
			ProductName: job.ProductName,
			Template:    template,
			State:       out.State,
			Sent:        out.Sent,
			Total:       out.Total,
			Error:       errString(out.Err),
			StartedAt:   started,
			FinishedAt:  time.Now(),
		})
	}()

	out.State = StateRendering
	emit(StatusEvent("Rendering labels for %s", job.ProductName))
	commands, err := NewRenderer(snap.Templates).Render(job, template)
	if err != nil {
		log.Error("render failed", "error", err)
		out.State, out.Err = StateError, err
		o.report(ctx, log, job.ID, JobStatusError, err.Error())
		return out
	}

	out.State = StateTransmitting
	out.Total = len(commands)
	emit(StatusEvent("Printing %d labels", out.Total))
	for i, cmd := range commands {
		emit(StatusEvent("Sending label %d/%d", i+1, out.Total))
		if err := o.sender.Send(ctx, snap.Endpoint, cmd); err != nil {
			log.Error("send failed", "label", i+1, "total", out.Total, "error", err)
			out.State, out.Err = StateError, err
			o.report(ctx, log, job.ID, JobStatusError, err.Error())
			return out
		}
		out.Sent++
		emit(StatusEvent("Label %d/%d sent", i+1, out.Total))
		if i < len(commands)-1 {
			pause(ctx, snap.Pacing)
		}
	}

	out.State = StateReporting
	o.report(ctx, log, job.ID, JobStatusDone, "")
	out.State = StateDone
	log.Info("job printed", "labels", out.Total, "duration_ms", time.Since(started).Milliseconds())
	return out
}

// report is best effort: failures are logged and never change the outcome.
func (o *Orchestrator) report(ctx context.Context, log *slog.Logger, id JobID, status JobStatus, msg string) {
	r := o.source.ReportStatus(ctx, id, status, msg)
	switch {
	case r.Err != nil:
		log.Warn("status report failed", "status", status, "error", r.Err)
	case !r.Acknowledged:
		log.Warn("status report not acknowledged", "status", status)
	}
}

func (o *Orchestrator) record(ctx context.Context, log *slog.Logger, rec PassRecord) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, rec); err != nil {
		log.Warn("failed to record pass", "error", err)
	}
}

func findJob(jobs []Job, id JobID) (Job, bool) {
	for _, j := range jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

func emitter(events chan<- Event) func(Event) {
	if events == nil {
		return func(Event) {}
	}
	return func(ev Event) { events <- ev }
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
