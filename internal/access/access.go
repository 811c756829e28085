// Package access decides who may read and mutate projects and tasks.
//
// Projects are mutated by their owner only. Tasks are mutated by any member of
// their project, the owner included. The policy is fixed per entity type.
package access

import "teamboard/internal/models"

type Entity int

const (
	EntityProject Entity = iota
	EntityTask
)

func (e Entity) String() string {
	switch e {
	case EntityProject:
		return "project"
	case EntityTask:
		return "task"
	default:
		return "unknown"
	}
}

// IsOwner is an exact identity match against the project owner.
func IsOwner(p *models.Project, userID string) bool {
	return p != nil && userID != "" && p.Owner == userID
}

// IsMember holds for the owner and for every id in the member set.
func IsMember(p *models.Project, userID string) bool {
	if IsOwner(p, userID) {
		return true
	}
	if p == nil || userID == "" {
		return false
	}
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// AuthorizeMutation returns models.ErrForbidden unless userID may change an
// entity of the given kind belonging to p.
func AuthorizeMutation(entity Entity, p *models.Project, userID string) error {
	var ok bool
	switch entity {
	case EntityProject:
		ok = IsOwner(p, userID)
	case EntityTask:
		ok = IsMember(p, userID)
	}
	if !ok {
		return models.ErrForbidden
	}
	return nil
}

// AuthorizeRead gates project-scoped reads (task lists, board feed).
func AuthorizeRead(p *models.Project, userID string) error {
	if !IsMember(p, userID) {
		return models.ErrForbidden
	}
	return nil
}

// AuthorizeAssignee checks the candidate against the current membership.
// It is not re-run when membership later shrinks.
func AuthorizeAssignee(p *models.Project, candidateID string) error {
	if !IsMember(p, candidateID) {
		return models.ErrInvalidAssignee
	}
	return nil
}
