package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldsync/internal/job"
)

// Change payloads carry everything needed to replay the mutation against
// the backend plus the previous values needed to revert the optimistic
// state if the change is permanently discarded.

type jobActionPayload struct {
	JobID         string           `json:"job_id"`
	Signer        job.Signer       `json:"signer"`
	PrevTiming    job.TimingStatus `json:"prev_timing"`
	PrevConfirmed int              `json:"prev_confirmed_minutes,omitempty"`
}

type togglePayload struct {
	JobID           string     `json:"job_id"`
	DoorID          string     `json:"door_id"`
	ItemID          string     `json:"item_id"`
	Completed       bool       `json:"completed"` // requested end state, last-write-wins
	PrevCompletedAt *time.Time `json:"prev_completed_at,omitempty"`
}

type doorCompletePayload struct {
	JobID  string     `json:"job_id"`
	DoorID string     `json:"door_id"`
	Signer job.Signer `json:"signer"`
}

type photoPayload struct {
	JobID  string         `json:"job_id"`
	DoorID string         `json:"door_id"`
	Prev   *job.MediaInfo `json:"prev,omitempty"`
}

func (s *Service) newChange(typ ChangeType, payload any, blobKey string) (*PendingChange, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding change payload: %w", err)
	}
	return &PendingChange{
		ID:        s.idgen.New(),
		Type:      typ,
		Payload:   data,
		BlobKey:   blobKey,
		CreatedAt: s.clock.Now(),
	}, nil
}

func (s *Service) enqueue(typ ChangeType, payload any, blobKey string) error {
	change, err := s.newChange(typ, payload, blobKey)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(change); err != nil {
		return fmt.Errorf("queueing %s: %w", typ, err)
	}
	s.logger.Info("change queued for sync", "type", typ, "change", change.ID)
	return nil
}

// dispatch runs the two-phase commit tail for an already-applied optimistic
// mutation: call the backend when online, queue on connectivity loss or a
// retryable failure, revert on a permanent one.
func (s *Service) dispatch(ctx context.Context, j *job.Job, typ ChangeType, payload any, blobKey string, call func(context.Context) error) error {
	_, err := s.dispatchTracked(ctx, j, typ, payload, blobKey, call)
	return err
}

// dispatchTracked additionally reports whether the change ended up in the
// queue instead of being confirmed.
func (s *Service) dispatchTracked(ctx context.Context, j *job.Job, typ ChangeType, payload any, blobKey string, call func(context.Context) error) (queued bool, err error) {
	if !s.isOnline() {
		return true, s.enqueue(typ, payload, blobKey)
	}
	callErr := call(ctx)
	if callErr == nil {
		return false, nil
	}
	if IsRetryable(callErr) {
		s.logger.Warn("backend unavailable, change queued", "type", typ, "error", callErr)
		return true, s.enqueue(typ, payload, blobKey)
	}

	// Permanent failure: the intended outcome is unreachable, so the
	// optimistic state rolls back to the last known-good value.
	change, cerr := s.newChange(typ, payload, blobKey)
	if cerr == nil {
		s.revertLocked(ctx, change, callErr)
	}
	return false, callErr
}

// dispatchJobAction is dispatch plus a best-effort reconciliation of the
// confirmed-minutes total when the call was delivered directly.
func (s *Service) dispatchJobAction(ctx context.Context, j *job.Job, typ ChangeType, payload jobActionPayload, call func(context.Context) error) error {
	queued, err := s.dispatchTracked(ctx, j, typ, payload, "", call)
	if err != nil || queued {
		return err
	}
	summary, serr := s.backend.TimeSummary(ctx, j.ID)
	if serr != nil {
		s.logger.Debug("time summary unavailable after action", "job", j.ID, "error", serr)
		return nil
	}
	j.ConfirmedMinutes = summary.TotalMinutes
	if serr := s.saveSnapshot(j); serr != nil {
		s.logger.Warn("saving reconciled snapshot", "job", j.ID, "error", serr)
	}
	return nil
}

// Apply replays one queued change against the backend. Called by the queue
// during a flush pass.
func (s *Service) Apply(ctx context.Context, change *PendingChange) error {
	switch change.Type {
	case ChangeJobStart, ChangeJobPause, ChangeJobResume, ChangeJobComplete:
		var p jobActionPayload
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return Validationf("corrupt %s payload: %v", change.Type, err)
		}
		switch change.Type {
		case ChangeJobStart:
			return s.backend.StartJob(ctx, p.JobID, p.Signer)
		case ChangeJobPause:
			return s.backend.PauseJob(ctx, p.JobID, p.Signer)
		case ChangeJobResume:
			return s.backend.ResumeJob(ctx, p.JobID, p.Signer)
		default:
			return s.backend.CompleteJob(ctx, p.JobID, p.Signer)
		}

	case ChangeLineItemToggle:
		var p togglePayload
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return Validationf("corrupt toggle payload: %v", err)
		}
		// Replaying the requested end state makes duplicates harmless.
		return s.backend.ToggleLineItem(ctx, p.JobID, p.ItemID, p.Completed)

	case ChangeDoorComplete:
		var p doorCompletePayload
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return Validationf("corrupt door completion payload: %v", err)
		}
		return s.backend.CompleteDoor(ctx, p.JobID, p.DoorID, p.Signer)

	case ChangeDoorPhoto:
		return s.replayPhoto(ctx, change)

	default:
		return Validationf("unknown change type %q", change.Type)
	}
}

func (s *Service) replayPhoto(ctx context.Context, change *PendingChange) error {
	var p photoPayload
	if err := json.Unmarshal(change.Payload, &p); err != nil {
		return Validationf("corrupt photo payload: %v", err)
	}
	data, err := s.blobs.Get(change.BlobKey)
	if err != nil {
		// The payload is gone; retrying cannot succeed.
		return Validationf("photo payload missing: %v", err)
	}
	info, err := s.uploader.UploadPhoto(ctx, p.JobID, p.DoorID, data)
	if err != nil {
		return err
	}

	// Confirm the placeholder with the server-issued MediaInfo.
	s.mu.Lock()
	if j := s.cachedJob(p.JobID); j != nil {
		if door := j.Door(p.DoorID); door != nil {
			door.PhotoInfo = info
			if serr := s.saveSnapshot(j); serr != nil {
				s.logger.Warn("saving confirmed photo", "job", p.JobID, "error", serr)
			}
		}
	}
	s.mu.Unlock()

	if err := s.blobs.Delete(change.BlobKey); err != nil {
		s.logger.Warn("removing replayed photo blob", "key", change.BlobKey, "error", err)
	}
	return nil
}

// Discard reverts the optimistic state of a permanently failed change.
// Called by the queue when an entry hits a non-retryable error or the
// retry ceiling.
func (s *Service) Discard(ctx context.Context, change *PendingChange, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revertLocked(ctx, change, cause)
}

// revertLocked undoes the optimistic mutation a change represents, using
// the previous values carried in its payload. Requires s.mu held.
func (s *Service) revertLocked(ctx context.Context, change *PendingChange, cause error) {
	s.logger.Error("change permanently failed, reverting", "type", change.Type, "change", change.ID, "error", cause)

	switch change.Type {
	case ChangeJobStart, ChangeJobPause, ChangeJobResume, ChangeJobComplete:
		var p jobActionPayload
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return
		}
		j := s.cachedJob(p.JobID)
		if j == nil {
			return
		}
		switch change.Type {
		case ChangeJobStart:
			j.Status = job.StatusNotStarted
			j.TimingStatus = job.TimingNotStarted
			dropOpenSession(j)
		case ChangeJobPause:
			j.TimingStatus = job.TimingActive
			reopenLastSession(j)
			j.ConfirmedMinutes = p.PrevConfirmed
		case ChangeJobResume:
			j.TimingStatus = job.TimingPaused
			dropOpenSession(j)
		case ChangeJobComplete:
			j.Status = job.StatusStarted
			j.TimingStatus = p.PrevTiming
			j.ConfirmedMinutes = p.PrevConfirmed
			if p.PrevTiming == job.TimingActive {
				reopenLastSession(j)
			}
		}
		s.persistRevert(j)

	case ChangeLineItemToggle:
		var p togglePayload
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return
		}
		j := s.cachedJob(p.JobID)
		if j == nil {
			return
		}
		if door := j.Door(p.DoorID); door != nil {
			if item := door.Item(p.ItemID); item != nil {
				item.Completed = !p.Completed
				item.CompletedAt = p.PrevCompletedAt
			}
		}
		s.persistRevert(j)

	case ChangeDoorComplete:
		var p doorCompletePayload
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return
		}
		j := s.cachedJob(p.JobID)
		if j == nil {
			return
		}
		if door := j.Door(p.DoorID); door != nil {
			door.Completed = false
			door.Signature = nil
		}
		s.persistRevert(j)

	case ChangeDoorPhoto:
		var p photoPayload
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return
		}
		if j := s.cachedJob(p.JobID); j != nil {
			if door := j.Door(p.DoorID); door != nil {
				door.PhotoInfo = p.Prev
			}
			s.persistRevert(j)
		}
		if change.BlobKey != "" {
			if err := s.blobs.Delete(change.BlobKey); err != nil {
				s.logger.Warn("removing discarded photo blob", "key", change.BlobKey, "error", err)
			}
		}
	}
}

// cachedJob reads a job from the snapshot cache only, never the network.
func (s *Service) cachedJob(jobID string) *job.Job {
	snap, err := s.cache.Get(jobID)
	if err != nil || snap == nil {
		return nil
	}
	var j job.Job
	if err := json.Unmarshal(snap.Data, &j); err != nil {
		return nil
	}
	return &j
}

func (s *Service) persistRevert(j *job.Job) {
	if err := s.saveSnapshot(j); err != nil {
		s.logger.Error("persisting reverted state", "job", j.ID, "error", err)
	}
}

func dropOpenSession(j *job.Job) {
	for i := len(j.Sessions) - 1; i >= 0; i-- {
		if j.Sessions[i].End == nil {
			j.Sessions = append(j.Sessions[:i], j.Sessions[i+1:]...)
			return
		}
	}
}

func reopenLastSession(j *job.Job) {
	if n := len(j.Sessions); n > 0 && j.Sessions[n-1].End != nil {
		j.Sessions[n-1].End = nil
	}
}
