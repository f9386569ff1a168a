package job

import "time"

// Status is the overall lifecycle state of a job.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusStarted    Status = "started"
	StatusCompleted  Status = "completed"
)

// TimingStatus tracks the work-time state of a started job, independent of Status.
type TimingStatus string

const (
	TimingNotStarted TimingStatus = "not_started"
	TimingActive     TimingStatus = "active"
	TimingPaused     TimingStatus = "paused"
	TimingCompleted  TimingStatus = "completed"
)

// SignerKind distinguishes a signed action from a vacant-site action.
// The source system stored vacancy as a sentinel signer name; here it is typed.
type SignerKind string

const (
	SignerOnSite SignerKind = "on_site"
	SignerVacant SignerKind = "vacant"
)

// Signer identifies who signed off on an action, or that the site was vacant.
type Signer struct {
	Kind      SignerKind `json:"kind"`
	Name      string     `json:"name,omitempty"`
	Title     string     `json:"title,omitempty"`
	Signature []byte     `json:"signature,omitempty"`
}

// Vacant returns a Signer for a vacant-site action.
func Vacant() Signer { return Signer{Kind: SignerVacant} }

// Signed returns a Signer for an on-site signed action.
func Signed(name, title string, signature []byte) Signer {
	return Signer{Kind: SignerOnSite, Name: name, Title: title, Signature: signature}
}

// MediaInfo describes uploaded proof-of-completion media on a door.
// Placeholder is true while URL points at local capture bytes pending
// server confirmation.
type MediaInfo struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Placeholder  bool      `json:"placeholder,omitempty"`
}

// TimeSession is one contiguous interval of active work time.
// At most one session per job has no End.
type TimeSession struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// LineItem is an individual trackable task within a door.
type LineItem struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Door is a physical unit of work within a job. Completing a door requires
// every line item done plus photo, video and a signature.
type Door struct {
	ID         string     `json:"id"`
	DoorNumber int        `json:"door_number"`
	LineItems  []LineItem `json:"line_items"`
	Completed  bool       `json:"completed"`
	PhotoInfo  *MediaInfo `json:"photo_info,omitempty"`
	VideoInfo  *MediaInfo `json:"video_info,omitempty"`
	Signature  *Signer    `json:"signature,omitempty"`
}

// Job is a unit of field work composed of doors.
// Sessions and ConfirmedMinutes together form the time-tracking record:
// ConfirmedMinutes is the server-confirmed historical total, Sessions holds
// the locally observed intervals including the open one.
type Job struct {
	ID               string        `json:"id"`
	Site             string        `json:"site,omitempty"`
	Status           Status        `json:"status"`
	TimingStatus     TimingStatus  `json:"timing_status"`
	Doors            []Door        `json:"doors"`
	Sessions         []TimeSession `json:"sessions"`
	ConfirmedMinutes int           `json:"confirmed_minutes"`
}

// Door returns the door with the given id, or nil.
func (j *Job) Door(doorID string) *Door {
	for i := range j.Doors {
		if j.Doors[i].ID == doorID {
			return &j.Doors[i]
		}
	}
	return nil
}

// Item returns the line item with the given id, or nil.
func (d *Door) Item(itemID string) *LineItem {
	for i := range d.LineItems {
		if d.LineItems[i].ID == itemID {
			return &d.LineItems[i]
		}
	}
	return nil
}

// OpenSession returns the session with no end, or nil.
func (j *Job) OpenSession() *TimeSession {
	for i := range j.Sessions {
		if j.Sessions[i].End == nil {
			return &j.Sessions[i]
		}
	}
	return nil
}

// AllDoorsCompleted reports whether every door is signed off.
func (j *Job) AllDoorsCompleted() bool {
	for i := range j.Doors {
		if !j.Doors[i].Completed {
			return false
		}
	}
	return true
}
