package graph

import (
	"fmt"

	"github.com/goldencore/core/id"
)

// Reason is the closed set of structural failure reasons. graph itself
// only returns *Error; the ingress-facing Ack renders the Reason name
// as its error code.
type Reason uint8

const (
	ReasonTypeNotRegistered Reason = iota
	ReasonParentForbidsType
	ReasonCapacityExceeded
	ReasonSlotMismatch
	ReasonValidationFailed
	ReasonDanglingHandle
)

func (r Reason) String() string {
	switch r {
	case ReasonTypeNotRegistered:
		return "TypeNotRegistered"
	case ReasonParentForbidsType:
		return "ParentForbidsType"
	case ReasonCapacityExceeded:
		return "CapacityExceeded"
	case ReasonSlotMismatch:
		return "SlotMismatch"
	case ReasonValidationFailed:
		return "ValidationFailed"
	case ReasonDanglingHandle:
		return "DanglingHandle"
	default:
		return "Unknown"
	}
}

// Error is a rejected structural edit. Field is only meaningful for
// ReasonValidationFailed.
type Error struct {
	Reason Reason
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("graph: %s: field=%s: %s", e.Reason, e.Field, e.Detail)
	}
	return fmt.Sprintf("graph: %s: %s", e.Reason, e.Detail)
}

func errTypeNotRegistered(t id.NodeTypeId) *Error {
	return &Error{Reason: ReasonTypeNotRegistered, Detail: fmt.Sprintf("type %s not registered", t)}
}

func errParentForbidsType(detail string) *Error {
	return &Error{Reason: ReasonParentForbidsType, Detail: detail}
}

func errCapacityExceeded(detail string) *Error {
	return &Error{Reason: ReasonCapacityExceeded, Detail: detail}
}

func errSlotMismatch(detail string) *Error {
	return &Error{Reason: ReasonSlotMismatch, Detail: detail}
}

func errValidationFailed(field, detail string) *Error {
	return &Error{Reason: ReasonValidationFailed, Field: field, Detail: detail}
}

func errDanglingHandle(detail string) *Error {
	return &Error{Reason: ReasonDanglingHandle, Detail: detail}
}
