package testutil

import (
	"fieldsync/internal/job"
)

// Media payloads that pass magic-byte validation.
var (
	JPEGHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	PNGHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}
	MP4Header  = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}
)

// OnSiteSigner returns a signer with a valid PNG signature image.
func OnSiteSigner() job.Signer {
	return job.Signer{
		Kind:      job.SignerOnSite,
		Name:      "Pat Jones",
		Title:     "Site Manager",
		Signature: append([]byte(nil), PNGHeader...),
	}
}

// NewTestJob returns a not-started job with two doors. Door d1 has two
// line items; door d2 has one.
func NewTestJob(id string) *job.Job {
	return &job.Job{
		ID:           id,
		Site:         "Acme Warehouse",
		Status:       job.StatusNotStarted,
		TimingStatus: job.TimingNotStarted,
		Doors: []job.Door{
			{
				ID:         "d1",
				DoorNumber: 1,
				LineItems: []job.LineItem{
					{ID: "i1", Description: "Replace rollers"},
					{ID: "i2", Description: "Lubricate track"},
				},
			},
			{
				ID:         "d2",
				DoorNumber: 2,
				LineItems: []job.LineItem{
					{ID: "i3", Description: "Adjust spring tension"},
				},
			},
		},
	}
}
