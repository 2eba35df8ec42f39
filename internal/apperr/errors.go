// Package apperr holds the error types shared by the pre-order workflow.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound matches every NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing pre-order, quote or customer.
type NotFoundError struct {
	Entity string
	Key    string
}

func NotFound(entity string, key any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFoundEntity reports whether err is a NotFoundError for entity.
func IsNotFoundEntity(err error, entity string) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Entity == entity
}

type ValidationError struct {
	Field   string
	Message string
}

func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Clone stages.
const (
	StageCustomer  = "customer"
	StageItems     = "items"
	StageAddresses = "addresses"
	StageTotals    = "totals"
)

// CloneStageError aborts a cart clone and names the stage that failed.
type CloneStageError struct {
	Stage string
	Err   error
}

func (e *CloneStageError) Error() string {
	return fmt.Sprintf("could not clone %s: %v", e.Stage, e.Err)
}

func (e *CloneStageError) Unwrap() error { return e.Err }

// SessionSetupError is fatal; Warnings carries best-effort failures seen before it.
type SessionSetupError struct {
	Warnings []string
	Err      error
}

func (e *SessionSetupError) Error() string {
	return fmt.Sprintf("could not set up cart session: %v", e.Err)
}

func (e *SessionSetupError) Unwrap() error { return e.Err }

// DeliveryError is a mail transport failure for one recipient.
type DeliveryError struct {
	Recipient string
	Primary   bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "copy"
	if e.Primary {
		kind = "primary"
	}
	return fmt.Sprintf("could not deliver %s email to %s: %v", kind, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Messages flattens warnings and a terminal error into user-facing lines.
func Messages(warnings []string, err error) []string {
	out := make([]string, 0, len(warnings)+1)
	for _, w := range warnings {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	if err != nil {
		out = append(out, err.Error())
	}
	return out
}
