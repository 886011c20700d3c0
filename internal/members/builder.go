// Package members composes the member list of a group that is about to be created.
package members

import (
	"errors"
	"strings"
)

var (
	ErrEmptyName     = errors.New("member name cannot be empty")
	ErrDuplicateName = errors.New("this member has already been added")
)

// DefaultMinMembers is the smallest member list a new group may be created with.
const DefaultMinMembers = 2

// Builder holds an ordered list of member names, unique under case-insensitive
// comparison, for one compose-group session. It is not safe for concurrent
// use; the orchestrator owns it.
type Builder struct {
	names      []string
	minMembers int
}

// NewBuilder returns an empty builder. minMembers below 1 is raised to 1.
func NewBuilder(minMembers int) *Builder {
	if minMembers < 1 {
		minMembers = 1
	}
	return &Builder{minMembers: minMembers}
}

// Add trims name and appends it. The uniqueness check runs before insertion.
func (b *Builder) Add(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	for _, existing := range b.names {
		if strings.EqualFold(existing, name) {
			return ErrDuplicateName
		}
	}
	b.names = append(b.names, name)
	return nil
}

// Remove deletes the entry that matches name exactly. Missing names are ignored.
func (b *Builder) Remove(name string) {
	for i, existing := range b.names {
		if existing == name {
			b.names = append(b.names[:i], b.names[i+1:]...)
			return
		}
	}
}

// Reset empties the list.
func (b *Builder) Reset() {
	b.names = nil
}

// CanSubmit reports whether the list is long enough to create a group.
func (b *Builder) CanSubmit() bool {
	return len(b.names) >= b.minMembers
}

// MinMembers returns the threshold CanSubmit checks against.
func (b *Builder) MinMembers() int {
	return b.minMembers
}

// Names returns a copy of the current list in insertion order.
func (b *Builder) Names() []string {
	return append([]string(nil), b.names...)
}

