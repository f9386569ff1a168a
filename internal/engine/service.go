package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fieldsync/internal/job"
	"fieldsync/internal/media"
	"fieldsync/internal/timetrack"
)

// Service is the orchestration layer for job execution. Every user action
// follows the same two-phase pattern: validate against the state machine,
// apply the optimistic state and persist the snapshot, then attempt the
// backend call. A retryable failure queues the change and keeps the
// optimistic state; a permanent failure reverts it.
type Service struct {
	mu       sync.Mutex
	backend  Backend
	queue    Queue
	cache    SnapshotCache
	blobs    BlobStore
	uploader Uploader
	limits   media.Limits
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	online   func() bool
}

// NewService creates a Service with the provided dependencies.
func NewService(backend Backend, queue Queue, cache SnapshotCache, blobs BlobStore, uploader Uploader, limits media.Limits, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		backend:  backend,
		queue:    queue,
		cache:    cache,
		blobs:    blobs,
		uploader: uploader,
		limits:   limits,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// SetOnlineCheck installs the connectivity source. When unset the service
// assumes it is online and lets transport errors route changes to the queue.
func (s *Service) SetOnlineCheck(fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = fn
}

func (s *Service) isOnline() bool {
	if s.online == nil {
		return true
	}
	return s.online()
}

// Job returns the job aggregate, from cache when available, otherwise via a
// live fetch. A cache miss while offline is an error: there is nothing to
// show and nothing safe to mutate.
func (s *Service) Job(ctx context.Context, jobID string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadJob(ctx, jobID)
}

// Refresh forces a live fetch and replaces the cached snapshot wholesale.
func (s *Service) Refresh(ctx context.Context, jobID string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchJob(ctx, jobID)
}

func (s *Service) loadJob(ctx context.Context, jobID string) (*job.Job, error) {
	snap, err := s.cache.Get(jobID)
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	if snap != nil {
		var j job.Job
		if err := json.Unmarshal(snap.Data, &j); err == nil {
			return &j, nil
		}
		// Corrupt snapshot reads as a miss.
		s.logger.Warn("corrupt cached snapshot, forcing live fetch", "job", jobID)
	}
	return s.fetchJob(ctx, jobID)
}

func (s *Service) fetchJob(ctx context.Context, jobID string) (*job.Job, error) {
	if !s.isOnline() {
		return nil, fmt.Errorf("no cached data for job %s: %w", jobID, ErrOffline)
	}
	j, err := s.backend.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetching job %s: %w", jobID, err)
	}
	if err := s.saveSnapshot(j); err != nil {
		return nil, err
	}
	s.logger.Debug("job refreshed", "job", jobID)
	return j, nil
}

func (s *Service) saveSnapshot(j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	snap := &Snapshot{
		JobID:         j.ID,
		Data:          data,
		SchemaVersion: SchemaVersion,
		FetchedAt:     s.clock.Now(),
	}
	if err := s.cache.Put(snap); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// StartJob starts a not-started job: status→started, timer active, one open
// session.
func (s *Service) StartJob(ctx context.Context, jobID string, signer job.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.validateSigner(signer); err != nil {
		return err
	}
	if err := j.Start(s.clock.Now(), signer); err != nil {
		return err
	}
	if err := s.saveSnapshot(j); err != nil {
		return err
	}

	payload := jobActionPayload{JobID: jobID, Signer: signer, PrevTiming: job.TimingNotStarted}
	return s.dispatchJobAction(ctx, j, ChangeJobStart, payload, func(c context.Context) error {
		return s.backend.StartJob(c, jobID, signer)
	})
}

// PauseJob closes the open session and folds its minutes into the confirmed
// total.
func (s *Service) PauseJob(ctx context.Context, jobID string, signer job.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.validateSigner(signer); err != nil {
		return err
	}
	prevConfirmed := j.ConfirmedMinutes
	if err := j.Pause(s.clock.Now(), signer); err != nil {
		return err
	}
	if n := len(j.Sessions); n > 0 {
		j.ConfirmedMinutes += timetrack.SessionMinutes(j.Sessions[n-1])
	}
	if err := s.saveSnapshot(j); err != nil {
		return err
	}

	payload := jobActionPayload{JobID: jobID, Signer: signer, PrevTiming: job.TimingActive, PrevConfirmed: prevConfirmed}
	return s.dispatchJobAction(ctx, j, ChangeJobPause, payload, func(c context.Context) error {
		return s.backend.PauseJob(c, jobID, signer)
	})
}

// ResumeJob opens a fresh session on a paused job.
func (s *Service) ResumeJob(ctx context.Context, jobID string, signer job.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.validateSigner(signer); err != nil {
		return err
	}
	if err := j.Resume(s.clock.Now(), signer); err != nil {
		return err
	}
	if err := s.saveSnapshot(j); err != nil {
		return err
	}

	payload := jobActionPayload{JobID: jobID, Signer: signer, PrevTiming: job.TimingPaused}
	return s.dispatchJobAction(ctx, j, ChangeJobResume, payload, func(c context.Context) error {
		return s.backend.ResumeJob(c, jobID, signer)
	})
}

// CompleteJob completes a started job once every door is signed off.
func (s *Service) CompleteJob(ctx context.Context, jobID string, signer job.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.validateSigner(signer); err != nil {
		return err
	}
	prevTiming := j.TimingStatus
	prevConfirmed := j.ConfirmedMinutes
	if err := j.CompleteJob(s.clock.Now(), signer); err != nil {
		return err
	}
	if prevTiming == job.TimingActive {
		if n := len(j.Sessions); n > 0 {
			j.ConfirmedMinutes += timetrack.SessionMinutes(j.Sessions[n-1])
		}
	}
	if err := s.saveSnapshot(j); err != nil {
		return err
	}

	payload := jobActionPayload{JobID: jobID, Signer: signer, PrevTiming: prevTiming, PrevConfirmed: prevConfirmed}
	return s.dispatchJobAction(ctx, j, ChangeJobComplete, payload, func(c context.Context) error {
		return s.backend.CompleteJob(c, jobID, signer)
	})
}

// ToggleLineItem flips a line item. Concurrent toggles resolve last-write-
// wins: the queued or dispatched value is the requested end state.
func (s *Service) ToggleLineItem(ctx context.Context, jobID, doorID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	var prevAt = prevCompletedAt(j, doorID, itemID)
	if err := j.ToggleLineItem(s.clock.Now(), doorID, itemID); err != nil {
		return err
	}
	item := j.Door(doorID).Item(itemID)
	if err := s.saveSnapshot(j); err != nil {
		return err
	}

	payload := togglePayload{JobID: jobID, DoorID: doorID, ItemID: itemID, Completed: item.Completed, PrevCompletedAt: prevAt}
	return s.dispatch(ctx, j, ChangeLineItemToggle, payload, "", func(c context.Context) error {
		return s.backend.ToggleLineItem(c, jobID, itemID, payload.Completed)
	})
}

// CompleteDoor signs off a door. The signature image is validated before
// the state machine is consulted; the door must satisfy its completion
// precondition (all items done, photo and video present).
func (s *Service) CompleteDoor(ctx context.Context, jobID, doorID string, signer job.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := media.ValidateSignature(signer.Signature, s.limits); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if err := j.CompleteDoor(doorID, signer); err != nil {
		return err
	}
	if err := s.saveSnapshot(j); err != nil {
		return err
	}

	payload := doorCompletePayload{JobID: jobID, DoorID: doorID, Signer: signer}
	return s.dispatch(ctx, j, ChangeDoorComplete, payload, "", func(c context.Context) error {
		return s.backend.CompleteDoor(c, jobID, doorID, signer)
	})
}

// CapturePhoto validates and uploads a photo for a door. While offline, or
// on a retryable failure, the payload is persisted locally and a door_photo
// change is queued; the door keeps a placeholder MediaInfo until the server
// URL is confirmed.
func (s *Service) CapturePhoto(ctx context.Context, jobID, doorID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, door, err := s.mediaTarget(ctx, jobID, doorID)
	if err != nil {
		return err
	}
	if err := media.ValidatePhoto(data, s.limits); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	prev := door.PhotoInfo
	key := s.idgen.New()
	door.PhotoInfo = s.placeholder(key)
	if err := s.saveSnapshot(j); err != nil {
		return err
	}

	if s.isOnline() {
		info, err := s.uploader.UploadPhoto(ctx, jobID, doorID, data)
		if err == nil {
			door.PhotoInfo = info
			return s.saveSnapshot(j)
		}
		if !IsRetryable(err) {
			door.PhotoInfo = prev
			if serr := s.saveSnapshot(j); serr != nil {
				s.logger.Error("reverting photo state", "job", jobID, "error", serr)
			}
			return err
		}
		s.logger.Warn("photo upload failed, queueing", "job", jobID, "door", doorID, "error", err)
	}

	if err := s.blobs.Put(key, data); err != nil {
		door.PhotoInfo = prev
		if serr := s.saveSnapshot(j); serr != nil {
			s.logger.Error("reverting photo state", "job", jobID, "error", serr)
		}
		return fmt.Errorf("persisting photo payload: %w", err)
	}
	payload := photoPayload{JobID: jobID, DoorID: doorID, Prev: prev}
	return s.enqueue(ChangeDoorPhoto, payload, key)
}

// CaptureVideo validates and uploads a video for a door. Video payloads are
// too large to queue: the upload requires live connectivity and any failure
// is terminal, surfaced to the caller for a manual retry.
func (s *Service) CaptureVideo(ctx context.Context, jobID, doorID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, door, err := s.mediaTarget(ctx, jobID, doorID)
	if err != nil {
		return err
	}
	if err := media.ValidateVideo(data, s.limits); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if !s.isOnline() {
		return &TransportError{Op: "video upload requires connectivity", Err: ErrOffline}
	}

	prev := door.VideoInfo
	door.VideoInfo = s.placeholder(s.idgen.New())
	if err := s.saveSnapshot(j); err != nil {
		return err
	}

	info, err := s.uploader.UploadVideo(ctx, jobID, doorID, data)
	if err != nil {
		door.VideoInfo = prev
		if serr := s.saveSnapshot(j); serr != nil {
			s.logger.Error("reverting video state", "job", jobID, "error", serr)
		}
		return err
	}
	door.VideoInfo = info
	return s.saveSnapshot(j)
}

// Tracker builds a time tracker seeded from the job's current state.
func (s *Service) Tracker(ctx context.Context, jobID string) (*timetrack.Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return timetrack.FromJob(j, s.clock), nil
}

// Elapsed is the total displayed work time for a job right now.
func (s *Service) Elapsed(ctx context.Context, jobID string) (time.Duration, error) {
	t, err := s.Tracker(ctx, jobID)
	if err != nil {
		return 0, err
	}
	return t.Elapsed(), nil
}

// ReconcileTime pulls the authoritative time summary and folds it into the
// snapshot, replacing locally accumulated minutes. When a session is open,
// its start is replaced with the server's record; an unparseable record
// keeps the locally observed start so the timer never halts.
func (s *Service) ReconcileTime(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.backend.TimeSummary(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetching time summary: %w", err)
	}
	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	j.ConfirmedMinutes = summary.TotalMinutes
	if sess := j.OpenSession(); sess != nil && summary.ActiveSessionStart != "" {
		tr := timetrack.New(s.clock)
		if !tr.StartSessionFromServer(summary.ActiveSessionStart, sess.Start) {
			s.logger.Warn("unparseable session start from server", "job", jobID, "raw", summary.ActiveSessionStart)
		}
		if start, ok := tr.SessionStart(); ok {
			sess.Start = start
		}
	}
	return s.saveSnapshot(j)
}

// FlushQueue replays pending changes in order. Safe to call any time; the
// queue rejects overlapping passes.
func (s *Service) FlushQueue(ctx context.Context) (FlushResult, error) {
	return s.queue.Flush(ctx, s)
}

// PendingCount is the number of changes awaiting delivery.
func (s *Service) PendingCount() (int, error) {
	return s.queue.Len()
}

// PendingChanges lists the queued changes in replay order.
func (s *Service) PendingChanges() ([]*PendingChange, error) {
	return s.queue.Pending()
}

// TrackedJobs lists job ids with a cached snapshot.
func (s *Service) TrackedJobs() ([]string, error) {
	return s.cache.JobIDs()
}

// ClearCache drops all cached snapshots. Queued changes are unaffected.
func (s *Service) ClearCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Clear()
}

// mediaTarget loads the job and checks the door accepts new media: media
// becomes immutable once the door is completed.
func (s *Service) mediaTarget(ctx context.Context, jobID, doorID string) (*job.Job, *job.Door, error) {
	j, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if j.Status == job.StatusCompleted {
		return nil, nil, Validationf("job %s is completed", jobID)
	}
	door := j.Door(doorID)
	if door == nil {
		return nil, nil, Validationf("unknown door %s", doorID)
	}
	if door.Completed {
		return nil, nil, Validationf("door %d is completed, media is immutable", door.DoorNumber)
	}
	return j, door, nil
}

func (s *Service) placeholder(key string) *job.MediaInfo {
	return &job.MediaInfo{
		ID:          key,
		URL:         "local://" + key,
		UploadedAt:  s.clock.Now(),
		Placeholder: true,
	}
}

// validateSigner checks the signature image on on-site actions before the
// state machine runs. Vacant actions carry no signature.
func (s *Service) validateSigner(signer job.Signer) error {
	if signer.Kind != job.SignerOnSite {
		return nil
	}
	if err := media.ValidateSignature(signer.Signature, s.limits); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

func prevCompletedAt(j *job.Job, doorID, itemID string) *time.Time {
	if d := j.Door(doorID); d != nil {
		if it := d.Item(itemID); it != nil {
			return it.CompletedAt
		}
	}
	return nil
}
