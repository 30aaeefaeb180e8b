package reconcile

import (
	"errors"
	"fmt"

	"eventbot/internal/schedule"
)

var ErrCollaboratorNotFound = errors.New("reconcile: collaborator not found")

// NotFoundError is returned when a required collaborator is missing. It is
// fatal to the run.
type NotFoundError struct {
	Collaborator string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reconcile: %s not available", e.Collaborator)
}

func (e *NotFoundError) Unwrap() error { return ErrCollaboratorNotFound }

func IsNotFound(err error) bool { return errors.Is(err, ErrCollaboratorNotFound) }

// CollaboratorError is a failed store or template call for one instance.
type CollaboratorError struct {
	Key    schedule.InstanceKey
	Action Action
	Err    error
	// FieldsUpdated is set when a re-enable wrote the new fields but the
	// row stayed disabled.
	FieldsUpdated bool
}

// InstanceError is the name used in reports.
type InstanceError = CollaboratorError

func (e *CollaboratorError) Error() string {
	var note string
	if e.FieldsUpdated {
		note = " (fields updated, row still disabled)"
	}
	if e.Action == "" {
		return fmt.Sprintf("%s: %v%s", e.Key, e.Err, note)
	}
	return fmt.Sprintf("%s %s: %v%s", e.Action, e.Key, e.Err, note)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
