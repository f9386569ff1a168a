package backend

import (
	"time"

	"fieldsync/internal/job"
	"fieldsync/internal/timetrack"
)

// Wire DTOs keep timestamps as strings so the timezone ambiguity in the
// backend's format is resolved at this one boundary, through
// timetrack.ParseServerTime, instead of wherever encoding/json happens to
// guess.

type jobDTO struct {
	ID           string          `json:"id"`
	Site         string          `json:"site"`
	Status       string          `json:"status"`
	TimingStatus string          `json:"timing_status"`
	Doors        []doorDTO       `json:"doors"`
	TimeTracking timeTrackingDTO `json:"time_tracking"`
}

type timeTrackingDTO struct {
	TotalMinutes int          `json:"total_minutes"`
	Sessions     []sessionDTO `json:"sessions"`
}

type sessionDTO struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

type doorDTO struct {
	ID         string    `json:"id"`
	DoorNumber int       `json:"door_number"`
	LineItems  []itemDTO `json:"line_items"`
	Completed  bool      `json:"completed"`
	PhotoInfo  *mediaDTO `json:"photo_info,omitempty"`
	VideoInfo  *mediaDTO `json:"video_info,omitempty"`
	SignerName string    `json:"signer_name,omitempty"`
}

type itemDTO struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type mediaDTO struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	UploadedAt   string `json:"uploaded_at,omitempty"`
}

// toJob converts the wire aggregate. fallback seeds any session start that
// fails to parse, so a malformed server timestamp degrades to a local
// timer instead of halting the tracker.
func (d *jobDTO) toJob(fallback time.Time) *job.Job {
	j := &job.Job{
		ID:               d.ID,
		Site:             d.Site,
		Status:           job.Status(d.Status),
		TimingStatus:     job.TimingStatus(d.TimingStatus),
		ConfirmedMinutes: d.TimeTracking.TotalMinutes,
	}
	for _, s := range d.TimeTracking.Sessions {
		j.Sessions = append(j.Sessions, s.toSession(fallback))
	}
	for _, dd := range d.Doors {
		j.Doors = append(j.Doors, dd.toDoor())
	}
	return j
}

func (s sessionDTO) toSession(fallback time.Time) job.TimeSession {
	start, err := timetrack.ParseServerTime(s.Start, time.Local)
	if err != nil {
		start = fallback
	}
	session := job.TimeSession{Start: start}
	if s.End != nil {
		if end, err := timetrack.ParseServerTime(*s.End, time.Local); err == nil {
			session.End = &end
		}
	}
	return session
}

func (d doorDTO) toDoor() job.Door {
	door := job.Door{
		ID:         d.ID,
		DoorNumber: d.DoorNumber,
		Completed:  d.Completed,
		PhotoInfo:  d.PhotoInfo.toMediaInfo(),
		VideoInfo:  d.VideoInfo.toMediaInfo(),
	}
	if d.Completed && d.SignerName != "" {
		door.Signature = &job.Signer{Kind: job.SignerOnSite, Name: d.SignerName}
	}
	for _, it := range d.LineItems {
		item := job.LineItem{ID: it.ID, Description: it.Description, Completed: it.Completed}
		if it.CompletedAt != nil {
			if at, err := timetrack.ParseServerTime(*it.CompletedAt, time.Local); err == nil {
				item.CompletedAt = &at
			}
		}
		door.LineItems = append(door.LineItems, item)
	}
	return door
}

func (m *mediaDTO) toMediaInfo() *job.MediaInfo {
	if m == nil {
		return nil
	}
	info := &job.MediaInfo{ID: m.ID, URL: m.URL, ThumbnailURL: m.ThumbnailURL}
	if at, err := timetrack.ParseServerTime(m.UploadedAt, time.Local); err == nil {
		info.UploadedAt = at
	}
	return info
}
