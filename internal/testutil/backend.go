package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"fieldsync/internal/engine"
	"fieldsync/internal/job"
)

// BackendCall records one invocation on the fake backend.
type BackendCall struct {
	Op     string
	JobID  string
	Target string // item or door id, when the op has one
}

// FakeBackend is a scripted in-memory backend for service tests. Jobs are
// stored as deep copies so tests can mutate their originals freely.
// Failures are scripted per operation with FailWith and consumed in order;
// once a script is exhausted the operation succeeds.
type FakeBackend struct {
	mu        sync.Mutex
	jobs      map[string]*job.Job
	errs      map[string][]error
	summaries map[string]*engine.TimeSummary
	pingErr   error
	calls     []BackendCall
}

var _ engine.Backend = (*FakeBackend)(nil)

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		jobs:      make(map[string]*job.Job),
		errs:      make(map[string][]error),
		summaries: make(map[string]*engine.TimeSummary),
	}
}

// SetJob stores a deep copy of j for GetJob to serve.
func (b *FakeBackend) SetJob(j *job.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[j.ID] = copyJob(j)
}

// SetSummary scripts the time summary returned for a job.
func (b *FakeBackend) SetSummary(jobID string, s *engine.TimeSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summaries[jobID] = s
}

// SetPingErr controls Ping's result.
func (b *FakeBackend) SetPingErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pingErr = err
}

// FailWith appends scripted failures for an op ("start", "pause", "resume",
// "complete", "toggle", "door", "get_job", "time_summary").
func (b *FakeBackend) FailWith(op string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[op] = append(b.errs[op], errs...)
}

// Calls returns a copy of the recorded call log.
func (b *FakeBackend) Calls() []BackendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BackendCall, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallCount returns how many times an op was invoked.
func (b *FakeBackend) CallCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (b *FakeBackend) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, BackendCall{Op: "ping"})
	return b.pingErr
}

func (b *FakeBackend) GetJob(_ context.Context, jobID string) (*job.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, BackendCall{Op: "get_job", JobID: jobID})
	if err := b.popErr("get_job"); err != nil {
		return nil, err
	}
	j, ok := b.jobs[jobID]
	if !ok {
		return nil, &engine.TransportError{Op: "get job", StatusCode: http.StatusNotFound}
	}
	return copyJob(j), nil
}

func (b *FakeBackend) StartJob(_ context.Context, jobID string, _ job.Signer) error {
	return b.action("start", jobID, "")
}

func (b *FakeBackend) PauseJob(_ context.Context, jobID string, _ job.Signer) error {
	return b.action("pause", jobID, "")
}

func (b *FakeBackend) ResumeJob(_ context.Context, jobID string, _ job.Signer) error {
	return b.action("resume", jobID, "")
}

func (b *FakeBackend) CompleteJob(_ context.Context, jobID string, _ job.Signer) error {
	return b.action("complete", jobID, "")
}

func (b *FakeBackend) ToggleLineItem(_ context.Context, jobID, itemID string, _ bool) error {
	return b.action("toggle", jobID, itemID)
}

func (b *FakeBackend) CompleteDoor(_ context.Context, jobID, doorID string, _ job.Signer) error {
	return b.action("door", jobID, doorID)
}

func (b *FakeBackend) TimeSummary(_ context.Context, jobID string) (*engine.TimeSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, BackendCall{Op: "time_summary", JobID: jobID})
	if err := b.popErr("time_summary"); err != nil {
		return nil, err
	}
	if s, ok := b.summaries[jobID]; ok {
		return s, nil
	}
	return &engine.TimeSummary{}, nil
}

func (b *FakeBackend) action(op, jobID, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, BackendCall{Op: op, JobID: jobID, Target: target})
	return b.popErr(op)
}

func (b *FakeBackend) popErr(op string) error {
	script := b.errs[op]
	if len(script) == 0 {
		return nil
	}
	err := script[0]
	b.errs[op] = script[1:]
	return err
}

func copyJob(j *job.Job) *job.Job {
	data, err := json.Marshal(j)
	if err != nil {
		panic(fmt.Sprintf("copying job: %v", err))
	}
	var out job.Job
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("copying job: %v", err))
	}
	return &out
}
