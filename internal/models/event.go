package models

// Event is a shared-expense occasion. The creator becomes its admin and
// first participant. The title cannot be changed after creation.
type Event struct {
	ID          string
	Title       string
	AdminUserID string
	CreatedAt   int64
}

// IsAdmin reports whether userID administers the event.
func (e *Event) IsAdmin(userID string) bool {
	return e != nil && e.AdminUserID == userID
}

// Participant is a user's membership in an event. A user appears at
// most once per event.
type Participant struct {
	EventID  string
	UserID   string
	JoinedAt int64
}

// Category groups expenses inside an event for reporting.
type Category struct {
	ID        string
	EventID   string
	Name      string
	CreatedAt int64
}

// CategoryMember records a participant who joined a category after
// winning approval from the event.
type CategoryMember struct {
	CategoryID string
	UserID     string
	JoinedAt   int64
}
