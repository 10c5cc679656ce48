package persistence

import (
	"errors"
	"testing"
)

func TestFunnelErrorWrapping(t *testing.T) {
	err := NewFunnelError("FunnelByID", "funnel-1", ErrFunnelNotFound)

	if !errors.Is(err, ErrFunnelNotFound) {
		t.Error("wrapped sentinel must survive errors.Is")
	}

	if !IsFunnelNotFound(err) {
		t.Error("IsFunnelNotFound must match the wrapped error")
	}

	if IsPublishedFunnelNotFound(err) {
		t.Error("IsPublishedFunnelNotFound must not match a plain not-found")
	}
}

func TestFunnelErrorMessage(t *testing.T) {
	err := NewFunnelError("Save", "funnel-1", errors.New("disk full"))

	expected := "Save operation failed for funnel funnel-1: disk full"
	if err.Error() != expected {
		t.Errorf("unexpected message: %q", err.Error())
	}

	err.Message = "while flushing"
	if err.Error() != "Save operation failed for funnel funnel-1: while flushing (disk full)" {
		t.Errorf("unexpected message with context: %q", err.Error())
	}
}

func TestTeamErrorWrapping(t *testing.T) {
	err := NewTeamError("TeamByID", "team-1", ErrTeamNotFound)

	if !IsTeamNotFound(err) {
		t.Error("IsTeamNotFound must match the wrapped error")
	}

	var teamErr *TeamError
	if !errors.As(err, &teamErr) {
		t.Error("errors.As must find the TeamError")
	}
}
