package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusReport struct {
	ID      JobID
	Status  JobStatus
	Message string
}

type fakeSource struct {
	mu      sync.Mutex
	jobs    []Job
	reports []statusReport
	// reply is returned from ReportStatus. The zero value acknowledges.
	reply *Report
}

func (f *fakeSource) FetchPending(context.Context) []Job {
	return f.jobs
}

func (f *fakeSource) ReportStatus(_ context.Context, id JobID, status JobStatus, msg string) Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, statusReport{ID: id, Status: status, Message: msg})
	if f.reply != nil {
		return *f.reply
	}
	return Report{Acknowledged: true}
}

// fakeSender fails the failAt-th Send call (1-based). Zero never fails.
type fakeSender struct {
	mu     sync.Mutex
	sent   []string
	calls  int
	failAt int
	err    error
}

func (f *fakeSender) Send(_ context.Context, _ Endpoint, cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return f.err
	}
	f.sent = append(f.sent, cmd)
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []PassRecord
}

func (f *fakeRecorder) Record(_ context.Context, rec PassRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func testSnapshots() *SnapshotStore {
	return NewSnapshotStore(&Snapshot{
		Endpoint:  Endpoint{Host: "printer.local", Port: 9100},
		Templates: standardSet(),
	})
}

func collect(run func(chan<- Event)) []Event {
	ch := make(chan Event, 256)
	run(ch)
	close(ch)
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestPrintJob_Success(t *testing.T) {
	source := &fakeSource{jobs: []Job{{ID: "7", ProductName: "Widget", ListPrice: floatPtr(9.5), Quantity: 2}}}
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	orch := NewOrchestrator(source, sender, testSnapshots(), WithRecorder(recorder))

	var out Outcome
	events := collect(func(ch chan<- Event) {
		out = orch.PrintJob(context.Background(), "7", "standard", ch)
	})

	assert.True(t, out.Done())
	assert.Equal(t, 2, out.Sent)
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, []statusReport{{ID: "7", Status: JobStatusDone}}, source.reports)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.True(t, last.Success)
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, EventStatus, ev.Kind)
	}
	assert.Contains(t, events, StatusEvent("Sending label 1/2"))
	assert.Contains(t, events, StatusEvent("Label 2/2 sent"))

	require.Len(t, recorder.records, 1)
	assert.Equal(t, StateDone, recorder.records[0].State)
	assert.Equal(t, 2, recorder.records[0].Total)
}

func TestPrintJob_FailsMidCopy(t *testing.T) {
	source := &fakeSource{jobs: []Job{{ID: "3", ProductName: "Bolt", Quantity: 5}}}
	sender := &fakeSender{failAt: 3, err: ErrTransportConnectionRefused}
	recorder := &fakeRecorder{}
	orch := NewOrchestrator(source, sender, testSnapshots(), WithRecorder(recorder))

	var out Outcome
	events := collect(func(ch chan<- Event) {
		out = orch.PrintJob(context.Background(), "3", "standard", ch)
	})

	assert.False(t, out.Done())
	assert.Equal(t, 2, out.Sent)
	assert.Equal(t, 5, out.Total)
	assert.ErrorIs(t, out.Err, ErrTransportConnectionRefused)
	assert.Equal(t, 3, sender.calls)

	require.Len(t, source.reports, 1)
	assert.Equal(t, JobStatusError, source.reports[0].Status)
	assert.Equal(t, ErrTransportConnectionRefused.Error(), source.reports[0].Message)

	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.False(t, last.Success)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, StateError, recorder.records[0].State)
	assert.Equal(t, 2, recorder.records[0].Sent)
}

func TestPrintJob_NotFound(t *testing.T) {
	source := &fakeSource{jobs: []Job{{ID: "1"}}}
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	orch := NewOrchestrator(source, sender, testSnapshots(), WithRecorder(recorder))

	var out Outcome
	events := collect(func(ch chan<- Event) {
		out = orch.PrintJob(context.Background(), "99", "standard", ch)
	})

	assert.ErrorIs(t, out.Err, ErrJobNotFound)
	assert.Equal(t, []Event{ResultEvent(false, "Job 99 not found")}, events)
	assert.Empty(t, source.reports)
	assert.Empty(t, sender.sent)
	assert.Empty(t, recorder.records)
}

func TestPrintJob_MissingTemplateReportsError(t *testing.T) {
	source := &fakeSource{jobs: []Job{{ID: "5", ProductName: "Nut", Quantity: 2}}}
	sender := &fakeSender{}
	orch := NewOrchestrator(source, sender, testSnapshots())

	out := orch.PrintJob(context.Background(), "5", "compact", nil)

	assert.ErrorIs(t, out.Err, ErrTemplateNotFound)
	assert.Equal(t, 0, out.Sent)
	assert.Empty(t, sender.sent)
	require.Len(t, source.reports, 1)
	assert.Equal(t, JobStatusError, source.reports[0].Status)
}

func TestPrintJob_QuantityOverLimitReportsError(t *testing.T) {
	source := &fakeSource{jobs: []Job{{ID: "8", ProductName: "Bulk", Quantity: MaxCopies + 1}}}
	sender := &fakeSender{}
	orch := NewOrchestrator(source, sender, testSnapshots())

	var out Outcome
	events := collect(func(ch chan<- Event) {
		out = orch.PrintJob(context.Background(), "8", "standard", ch)
	})

	assert.ErrorIs(t, out.Err, ErrQuantityTooLarge)
	assert.Equal(t, StateError, out.State)
	assert.Empty(t, sender.sent)
	require.Len(t, source.reports, 1)
	assert.Equal(t, JobStatusError, source.reports[0].Status)

	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind)
	assert.False(t, last.Success)
}

func TestPrintJob_FailedReportKeepsOutcome(t *testing.T) {
	replies := map[string]Report{
		"report error":     {Err: ErrRemoteUnreachable},
		"not acknowledged": {Acknowledged: false},
	}
	paths := []struct {
		name        string
		template    string
		failAt      int
		sendErr     error
		wantState   PassState
		wantSuccess bool
		wantErr     error
	}{
		{name: "success", template: "standard", wantState: StateDone, wantSuccess: true},
		{name: "render failure", template: "compact", wantState: StateError, wantErr: ErrTemplateNotFound},
		{name: "transport failure", template: "standard", failAt: 2, sendErr: ErrTransportTimeout, wantState: StateError, wantErr: ErrTransportTimeout},
	}

	for replyName, reply := range replies {
		for _, p := range paths {
			t.Run(replyName+"/"+p.name, func(t *testing.T) {
				reply := reply
				source := &fakeSource{
					jobs:  []Job{{ID: "4", ProductName: "Washer", Quantity: 2}},
					reply: &reply,
				}
				sender := &fakeSender{failAt: p.failAt, err: p.sendErr}
				orch := NewOrchestrator(source, sender, testSnapshots())

				var out Outcome
				events := collect(func(ch chan<- Event) {
					out = orch.PrintJob(context.Background(), "4", p.template, ch)
				})

				assert.Equal(t, p.wantState, out.State)
				if p.wantErr != nil {
					assert.ErrorIs(t, out.Err, p.wantErr)
				} else {
					assert.NoError(t, out.Err)
				}
				require.Len(t, source.reports, 1)

				last := events[len(events)-1]
				assert.Equal(t, EventResult, last.Kind)
				assert.Equal(t, p.wantSuccess, last.Success)
				if p.wantSuccess {
					assert.Equal(t, "2 labels printed", last.Message)
				}
			})
		}
	}
}

func TestPrintAll_FailedReportKeepsCounts(t *testing.T) {
	source := &fakeSource{
		jobs: []Job{
			{ID: "1", ProductName: "A", Quantity: 1},
			{ID: "2", ProductName: "B", Quantity: 1},
		},
		reply: &Report{Err: ErrRemoteBadResponse},
	}
	orch := NewOrchestrator(source, &fakeSender{}, testSnapshots())

	var batch BatchOutcome
	events := collect(func(ch chan<- Event) {
		batch = orch.PrintAll(context.Background(), "standard", ch)
	})

	assert.Equal(t, 2, batch.Succeeded)
	assert.Len(t, source.reports, 2)
	assert.Equal(t, ResultEvent(true, "Processed 2/2 jobs"), events[len(events)-1])
}

func TestPrintAll_ContinuesPastFailures(t *testing.T) {
	source := &fakeSource{jobs: []Job{
		{ID: "1", ProductName: "A", Quantity: 1},
		{ID: "2", ProductName: "B", Quantity: 1},
		{ID: "3", ProductName: "C", Quantity: 1},
	}}
	sender := &fakeSender{failAt: 2, err: errors.New("boom")}
	orch := NewOrchestrator(source, sender, testSnapshots())

	var batch BatchOutcome
	events := collect(func(ch chan<- Event) {
		batch = orch.PrintAll(context.Background(), "standard", ch)
	})

	require.Len(t, batch.Jobs, 3)
	assert.Equal(t, 2, batch.Succeeded)
	assert.True(t, batch.Jobs[0].Done())
	assert.False(t, batch.Jobs[1].Done())
	assert.True(t, batch.Jobs[2].Done())

	assert.Equal(t, []statusReport{
		{ID: "1", Status: JobStatusDone},
		{ID: "2", Status: JobStatusError, Message: "boom"},
		{ID: "3", Status: JobStatusDone},
	}, source.reports)

	assert.Equal(t, StatusEvent("Processing 3 jobs"), events[0])
	assert.Equal(t, ResultEvent(false, "Processed 2/3 jobs"), events[len(events)-1])
}

func TestPrintAll_NoJobs(t *testing.T) {
	orch := NewOrchestrator(&fakeSource{}, &fakeSender{}, testSnapshots())

	var batch BatchOutcome
	events := collect(func(ch chan<- Event) {
		batch = orch.PrintAll(context.Background(), "standard", ch)
	})

	assert.Empty(t, batch.Jobs)
	assert.Equal(t, []Event{ResultEvent(false, "No pending jobs")}, events)
}

func TestPrintAll_UsesSnapshotTakenAtStart(t *testing.T) {
	snapshots := testSnapshots()
	source := &fakeSource{jobs: []Job{{ID: "1", ProductName: "A", Quantity: 1}}}
	sender := &fakeSender{}
	orch := NewOrchestrator(source, sender, snapshots)

	ch := make(chan Event)
	done := make(chan BatchOutcome)
	go func() { done <- orch.PrintAll(context.Background(), "standard", ch) }()

	// The pass is blocked on the first event; swap in an empty template set.
	first := <-ch
	assert.Equal(t, StatusEvent("Processing 1 jobs"), first)
	snapshots.Swap(&Snapshot{Templates: NewTemplateSet()})

	go func() {
		for range ch {
		}
	}()
	batch := <-done
	close(ch)
	assert.Equal(t, 1, batch.Succeeded)
}
