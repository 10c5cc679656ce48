// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFunnelNotFound indicates a funnel was not found by the given identifier.
	ErrFunnelNotFound = errors.New("funnel not found")

	// ErrPublishedFunnelNotFound indicates the funnel exists but is not servable,
	// or does not exist at all. The public lookup path never distinguishes the two.
	ErrPublishedFunnelNotFound = errors.New("published funnel not found")

	// ErrFunnelAlreadyExists indicates a funnel with the same identifier already exists.
	ErrFunnelAlreadyExists = errors.New("funnel already exists")

	// ErrInvalidFunnelStatus indicates an invalid funnel status was provided.
	ErrInvalidFunnelStatus = errors.New("invalid funnel status")

	// ErrTeamNotFound indicates a team was not found by the given identifier.
	ErrTeamNotFound = errors.New("team not found")
)

// FunnelError wraps funnel-related errors with additional context.
type FunnelError struct {
	Op       string // Operation being performed (e.g., "FunnelByID", "Save", "Publish")
	FunnelID string // Funnel ID if applicable
	Err      error  // Underlying error
	Message  string // Additional context message
}

func (e *FunnelError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for funnel %s: %s (%v)", e.Op, e.FunnelID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for funnel %s: %v", e.Op, e.FunnelID, e.Err)
}

func (e *FunnelError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for funnel errors.
func (e *FunnelError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFunnelError creates a new funnel error with context.
func NewFunnelError(op, funnelID string, err error) *FunnelError {
	return &FunnelError{
		Op:       op,
		FunnelID: funnelID,
		Err:      err,
	}
}

// TeamError wraps team-related errors with additional context.
type TeamError struct {
	Op     string // Operation being performed
	TeamID string // Team ID
	Err    error  // Underlying error
}

func (e *TeamError) Error() string {
	return fmt.Sprintf("%s operation failed for team %s: %v", e.Op, e.TeamID, e.Err)
}

func (e *TeamError) Unwrap() error {
	return e.Err
}

func (e *TeamError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTeamError creates a new team error with context.
func NewTeamError(op, teamID string, err error) *TeamError {
	return &TeamError{
		Op:     op,
		TeamID: teamID,
		Err:    err,
	}
}

// IsFunnelNotFound checks if an error indicates a funnel was not found.
func IsFunnelNotFound(err error) bool {
	return errors.Is(err, ErrFunnelNotFound)
}

// IsPublishedFunnelNotFound checks if an error indicates no servable funnel exists.
func IsPublishedFunnelNotFound(err error) bool {
	return errors.Is(err, ErrPublishedFunnelNotFound)
}

// IsTeamNotFound checks if an error indicates a team was not found.
func IsTeamNotFound(err error) bool {
	return errors.Is(err, ErrTeamNotFound)
}
