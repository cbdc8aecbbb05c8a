package domain

import (
	"time"

	"github.com/google/uuid"
)

// TechnicianRole is the role of a user eligible for assignment.
type TechnicianRole string

const (
	RoleTechnician TechnicianRole = "technician"
	RoleManager    TechnicianRole = "manager"
	RoleAdmin      TechnicianRole = "admin"
)

// IsSenior reports whether the role earns the high-priority bonus.
func (r TechnicianRole) IsSenior() bool {
	return r == RoleAdmin || r == RoleManager
}

// AssignmentCandidate is a technician snapshot taken fresh for each scoring call.
type AssignmentCandidate struct {
	UserID          uuid.UUID
	Name            string
	Role            TechnicianRole
	CurrentWorkload int
	Skills          []string
	IsAvailable     bool
	LastAssignedAt  *time.Time
	// HandledCustomer is true when the technician has worked a non-deleted
	// ticket for the customer named in the scoring criteria.
	HandledCustomer bool
}

// AssignmentCriteria describes the ticket being placed.
type AssignmentCriteria struct {
	Priority   *TicketPriority
	Category   *string
	Tags       []string
	CustomerID *uuid.UUID
}

// CriteriaForTicket derives scoring criteria from a ticket.
func CriteriaForTicket(t *Ticket) AssignmentCriteria {
	priority := t.Priority
	criteria := AssignmentCriteria{
		Priority:   &priority,
		Tags:       t.Tags,
		CustomerID: &t.CustomerID,
	}
	if t.Category != "" {
		category := t.Category
		criteria.Category = &category
	}
	return criteria
}

// ScoredCandidate is a candidate with its total score and the terms that produced it.
type ScoredCandidate struct {
	Candidate AssignmentCandidate
	Score     int
	Reasons   []string
}

// Contact is the addressable identity of a user.
type Contact struct {
	UserID   uuid.UUID
	FullName string
	Email    string
}
