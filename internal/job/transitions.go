package job

import (
	"fmt"
	"time"
)

// TransitionError reports a rejected operation. The job is left unchanged.
type TransitionError struct {
	Op     string
	Status Status
	Timing TimingStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s rejected (status=%s timing=%s): %s", e.Op, e.Status, e.Timing, e.Reason)
}

func (j *Job) reject(op, reason string) error {
	return &TransitionError{Op: op, Status: j.Status, Timing: j.TimingStatus, Reason: reason}
}

// Start transitions a not-started job to started with an active timer and
// opens a time session at now.
func (j *Job) Start(now time.Time, signer Signer) error {
	if j.Status == StatusCompleted {
		return j.reject("start", "job is completed")
	}
	if j.Status != StatusNotStarted {
		return j.reject("start", "job already started")
	}
	if err := validSigner("start", j, signer); err != nil {
		return err
	}
	j.Status = StatusStarted
	j.TimingStatus = TimingActive
	j.Sessions = append(j.Sessions, TimeSession{Start: now})
	return nil
}

// Pause closes the open time session. Legal only while the timer is active.
func (j *Job) Pause(now time.Time, signer Signer) error {
	if j.Status == StatusCompleted {
		return j.reject("pause", "job is completed")
	}
	if j.TimingStatus != TimingActive {
		return j.reject("pause", "timer is not active")
	}
	if err := validSigner("pause", j, signer); err != nil {
		return err
	}
	j.closeOpenSession(now)
	j.TimingStatus = TimingPaused
	return nil
}

// Resume opens a fresh time session. Legal only while the timer is paused.
func (j *Job) Resume(now time.Time, signer Signer) error {
	if j.Status == StatusCompleted {
		return j.reject("resume", "job is completed")
	}
	if j.TimingStatus != TimingPaused {
		return j.reject("resume", "timer is not paused")
	}
	if err := validSigner("resume", j, signer); err != nil {
		return err
	}
	j.Sessions = append(j.Sessions, TimeSession{Start: now})
	j.TimingStatus = TimingActive
	return nil
}

// ToggleLineItem flips a line item's completion and stamps or clears its
// completion time. Rejected once the owning door or the job is completed.
func (j *Job) ToggleLineItem(now time.Time, doorID, itemID string) error {
	if j.Status == StatusCompleted {
		return j.reject("toggle line item", "job is completed")
	}
	if j.Status != StatusStarted {
		return j.reject("toggle line item", "job is not started")
	}
	door := j.Door(doorID)
	if door == nil {
		return j.reject("toggle line item", fmt.Sprintf("unknown door %s", doorID))
	}
	if door.Completed {
		return j.reject("toggle line item", fmt.Sprintf("door %d is completed", door.DoorNumber))
	}
	item := door.Item(itemID)
	if item == nil {
		return j.reject("toggle line item", fmt.Sprintf("unknown line item %s", itemID))
	}
	item.Completed = !item.Completed
	if item.Completed {
		t := now
		item.CompletedAt = &t
	} else {
		item.CompletedAt = nil
	}
	return nil
}

// CanCompleteDoor reports whether the door's completion precondition holds:
// every line item completed, photo and video uploaded. The signature itself
// is supplied with CompleteDoor.
func (j *Job) CanCompleteDoor(doorID string) (bool, string) {
	door := j.Door(doorID)
	if door == nil {
		return false, fmt.Sprintf("unknown door %s", doorID)
	}
	for i := range door.LineItems {
		if !door.LineItems[i].Completed {
			return false, fmt.Sprintf("line item %q is not completed", door.LineItems[i].Description)
		}
	}
	if door.PhotoInfo == nil {
		return false, "photo is missing"
	}
	if door.VideoInfo == nil {
		return false, "video is missing"
	}
	return true, ""
}

// CompleteDoor signs off a door. Requires the completion precondition and an
// on-site signature with image bytes.
func (j *Job) CompleteDoor(doorID string, signer Signer) error {
	if j.Status == StatusCompleted {
		return j.reject("complete door", "job is completed")
	}
	if j.Status != StatusStarted {
		return j.reject("complete door", "job is not started")
	}
	door := j.Door(doorID)
	if door == nil {
		return j.reject("complete door", fmt.Sprintf("unknown door %s", doorID))
	}
	if door.Completed {
		return j.reject("complete door", fmt.Sprintf("door %d already completed", door.DoorNumber))
	}
	if signer.Kind != SignerOnSite || len(signer.Signature) == 0 {
		return j.reject("complete door", "door sign-off requires a signature")
	}
	if ok, reason := j.CanCompleteDoor(doorID); !ok {
		return j.reject("complete door", reason)
	}
	sig := signer
	door.Signature = &sig
	door.Completed = true
	return nil
}

// CompleteJob completes a started job once every door is signed off,
// closing any open time session.
func (j *Job) CompleteJob(now time.Time, signer Signer) error {
	if j.Status == StatusCompleted {
		return j.reject("complete job", "job already completed")
	}
	if j.Status != StatusStarted {
		return j.reject("complete job", "job is not started")
	}
	if !j.AllDoorsCompleted() {
		return j.reject("complete job", "not all doors are completed")
	}
	if err := validSigner("complete job", j, signer); err != nil {
		return err
	}
	j.closeOpenSession(now)
	j.Status = StatusCompleted
	j.TimingStatus = TimingCompleted
	return nil
}

func (j *Job) closeOpenSession(now time.Time) {
	if s := j.OpenSession(); s != nil {
		t := now
		s.End = &t
	}
}

// validSigner enforces that on-site actions carry a signature image.
// Vacant-site actions carry none by definition.
func validSigner(op string, j *Job, signer Signer) error {
	switch signer.Kind {
	case SignerVacant:
		return nil
	case SignerOnSite:
		if len(signer.Signature) == 0 {
			return j.reject(op, "on-site action requires a signature")
		}
		return nil
	default:
		return j.reject(op, fmt.Sprintf("unknown signer kind %q", signer.Kind))
	}
}
