package domain

import "time"

// Event is the normalized representation of a single upcoming community
// event as reported by the upstream source. ID is assigned upstream and is
// globally unique across all groups.
type Event struct {
	ID          string
	Title       string
	EventURL    string
	Description string
	DateTime    time.Time
	Duration    string
	Venue       Venue
	Group       Group
	Host        Host
	Images      []Image

	// DeletedAt is nil while the event is still reported upstream. Once the
	// importer stops seeing a future event it is soft-deleted by stamping
	// this field; the row is never physically removed from the events table.
	DeletedAt *time.Time
}

// IsDeleted reports whether the event has been soft-deleted.
func (e *Event) IsDeleted() bool {
	return e.DeletedAt != nil
}

// MarkDeleted flags the event as no longer reported upstream as of at.
func (e *Event) MarkDeleted(at time.Time) {
	t := at
	e.DeletedAt = &t
}

// Venue describes where an event takes place. Upstream may omit the venue
// entirely; stored events always carry the struct, with empty fields.
type Venue struct {
	Name       string
	Address    string
	City       string
	State      string
	PostalCode string
}

// Group identifies the source community an event belongs to. URLName is the
// stable identifier used both for upstream queries and as the store's
// secondary index partition key.
type Group struct {
	Name    string
	URLName string
}

// Host is the event organizer as named by upstream.
type Host struct {
	Name string
}

// Image is an event image reference.
type Image struct {
	BaseURL string
	Preview string
}
