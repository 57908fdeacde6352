package presign

import "time"

// Status of a pre-generated signing slot.
type Status string

const (
	StatusAvailable Status = "available"
	StatusAllocated Status = "allocated"
	StatusExpired   Status = "expired"
)

// Slot is a pre-generated, time-bounded signing capability reference. Slots
// are seeded out-of-band; the pool only issues, reclaims and consumes them.
type Slot struct {
	SlotID      string
	Status      Status
	CreatedAt   time.Time
	AllocatedAt *time.Time
	ExpiresAt   time.Time
}

// Fresh reports whether the slot's freshness deadline has not passed. Checked
// at allocation time, not just at insertion time.
func (s *Slot) Fresh(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
