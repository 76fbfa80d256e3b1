package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNextID         = errors.New("get next id from generator")
	ErrRecordNotFound = errors.New("record not found")
)

const (
	ReasonCheckInInPast         = "check-in date cannot be in the past"
	ReasonCheckOutBeforeCheckIn = "check-out date must be after check-in date"
	ReasonStayTooLong           = "stay cannot exceed 30 nights"
	ReasonGuestCountOutOfRange  = "guest count must be between 1 and 10"
	ReasonInvalidCurrency       = "currency must be a 3-letter code"
	ReasonRoomNotAvailable      = "room not available for the requested dates"
	ReasonAlreadyCancelled      = "reservation is already cancelled"
	ReasonCheckInPassed         = "cannot cancel after check-in date has passed"
	ReasonNotUpdatable          = "only future confirmed reservations can be updated"
	ReasonNotPending            = "only pending reservations can be confirmed"
	ReasonInvalidRoomStatus     = "room status must be one of AVAILABLE, OCCUPIED, OUT_OF_SERVICE"
	ReasonInvalidRoomType       = "room type must be one of SINGLE, DOUBLE, SUITE, FAMILY"
	ReasonInvalidCapacity       = "room capacity must be a positive number"
	ReasonInvalidRate           = "nightly rate must be positive"
	ReasonInvalidRateScale      = "nightly rate cannot have more than 2 decimal places"
	ReasonRoomNumberRequired    = "room number is required"
	ReasonDuplicateRoomNumber   = "room number is already in use"
	ReasonRoomIDRequired        = "room id is required"
	ReasonClientIDRequired      = "client id is required"
)

type NotFoundError struct {
	Entity string
	ID     string
}

func newNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func IsNotFoundError(err error) *NotFoundError {
	if err == nil {
		return nil
	}

	var notFoundError *NotFoundError

	if errors.As(err, &notFoundError) {
		return notFoundError
	}

	return nil
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Entity, e.ID)
}

// RuleError reports a violated business rule. Reason names the rule.
type RuleError struct {
	Reason string
}

func newRuleError(reason string) *RuleError {
	return &RuleError{Reason: reason}
}

func newRuleErrorf(format string, v ...any) *RuleError {
	return &RuleError{Reason: fmt.Sprintf(format, v...)}
}

func IsRuleError(err error) *RuleError {
	if err == nil {
		return nil
	}

	var ruleError *RuleError

	if errors.As(err, &ruleError) {
		return ruleError
	}

	return nil
}

func (e *RuleError) Error() string {
	return e.Reason
}

// ConflictError is a write conflict detected by the store inside a booking transaction.
// It is the only error kind worth retrying.
type ConflictError struct {
	Err error
}

func NewConflictError(err error) *ConflictError {
	return &ConflictError{Err: err}
}

func IsConflictError(err error) *ConflictError {
	if err == nil {
		return nil
	}

	var conflictError *ConflictError

	if errors.As(err, &conflictError) {
		return conflictError
	}

	return nil
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("write conflict: %v", e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// notFoundOr converts the store's ErrRecordNotFound into a NotFoundError for the entity.
func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, ErrRecordNotFound) {
		return newNotFoundError(entity, id)
	}

	return fmt.Errorf("find %s %s: %w", entity, id, err)
}
