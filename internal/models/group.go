package models

// Group represents a remote group of members that expenses are recorded against.
// The client never mutates membership after creation.
type Group struct {
	// ID is the server-assigned identifier (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Goa Trip 2025").
	Name string

	// Members is the set of member names. Order is not significant.
	Members []string
}

