package models

type Section struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Content         string `json:"content"`
	IsEventsSection bool   `json:"is_events_section"`
	InThreadID      int64  `json:"in_thread_id"`
	// LockHeldByUserID is nil while the section is unlocked
	LockHeldByUserID  *int64 `json:"lock_held_by_user_id"`
	LockAssignedAtUTC int64  `json:"lock_assigned_at_utc"`
}

// Lock returns the lock field pair of s.
func (s Section) Lock() SectionLock {
	return SectionLock{HolderID: s.LockHeldByUserID, AssignedAtUTC: s.LockAssignedAtUTC}
}

// SetLock replaces the lock field pair of s.
func (s *Section) SetLock(l SectionLock) {
	s.LockHeldByUserID = l.HolderID
	s.LockAssignedAtUTC = l.AssignedAtUTC
}

// SectionLock is the persisted lock state of a section. It is also the
// partial payload broadcast when a lock changes hands.
type SectionLock struct {
	HolderID      *int64 `json:"lock_held_by_user_id"`
	AssignedAtUTC int64  `json:"lock_assigned_at_utc"`
}

// Held reports whether any user holds the lock.
func (l SectionLock) Held() bool { return l.HolderID != nil }

// HeldBy reports whether user holds the lock.
func (l SectionLock) HeldBy(user int64) bool {
	return l.HolderID != nil && *l.HolderID == user
}

// LockRequest is the client payload asking for a new lock holder; a nil
// holder asks for the lock to be released.
type LockRequest struct {
	HolderID *int64 `json:"lock_held_by_user_id"`
}

type SectionInsert struct {
	Name            string `json:"name"`
	Content         string `json:"content"`
	IsEventsSection bool   `json:"is_events_section"`
	InThreadID      int64  `json:"in_thread_id"`
}

type SectionUpdate struct {
	Name            *string `json:"name,omitempty"`
	Content         *string `json:"content,omitempty"`
	IsEventsSection *bool   `json:"is_events_section,omitempty"`
}

func (u SectionUpdate) Apply(s *Section) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Content != nil {
		s.Content = *u.Content
	}
	if u.IsEventsSection != nil {
		s.IsEventsSection = *u.IsEventsSection
	}
}
