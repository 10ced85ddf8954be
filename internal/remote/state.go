// Package remote drives the fetch lifecycle behind every list page: one
// request per page activation, a small state machine around it, and a view
// state the templates can render without further branching.
package remote

import (
	"errors"
	"strconv"
)

// Status is the controller's position in Idle -> Loading -> {Success, Failure}.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// State is a point-in-time copy of a controller. Items is only meaningful
// for StatusSuccess and Message only for StatusFailure.
type State[T any] struct {
	Status  Status
	Items   []T
	Message string
}

// Loading reports whether a request is still in flight.
func (s State[T]) Loading() bool {
	return s.Status == StatusLoading
}

// ViewKind is one of the four mutually exclusive things a page can show.
type ViewKind int

const (
	ViewLoading ViewKind = iota
	ViewError
	ViewEmpty
	ViewPopulated
)

func (k ViewKind) String() string {
	switch k {
	case ViewLoading:
		return "loading"
	case ViewError:
		return "error"
	case ViewEmpty:
		return "empty"
	case ViewPopulated:
		return "populated"
	default:
		return "view(" + strconv.Itoa(int(k)) + ")"
	}
}

// Keyer is implemented by records that carry a stable identifier.
type Keyer interface {
	Key() string
}

// Row pairs a record with the key it is rendered under.
type Row[T any] struct {
	Key  string
	Item T
}

// View is what the rendering layer consumes.
type View[T any] struct {
	Kind    ViewKind
	Message string
	Rows    []Row[T]
}

func (v View[T]) IsLoading() bool   { return v.Kind == ViewLoading }
func (v View[T]) IsError() bool     { return v.Kind == ViewError }
func (v View[T]) IsEmpty() bool     { return v.Kind == ViewEmpty }
func (v View[T]) IsPopulated() bool { return v.Kind == ViewPopulated }

// Loading returns the view shown before a controller has settled.
func Loading[T any]() View[T] {
	return View[T]{Kind: ViewLoading}
}

// Derive maps a state onto its view. Idle renders as loading so a page never
// claims "nothing found" before it has asked.
func Derive[T any](s State[T]) View[T] {
	switch s.Status {
	case StatusIdle, StatusLoading:
		return View[T]{Kind: ViewLoading}
	case StatusFailure:
		return View[T]{Kind: ViewError, Message: s.Message}
	}
	if len(s.Items) == 0 {
		return View[T]{Kind: ViewEmpty}
	}
	rows := make([]Row[T], len(s.Items))
	for i, item := range s.Items {
		rows[i] = Row[T]{Key: keyOf(item, i), Item: item}
	}
	return View[T]{Kind: ViewPopulated, Rows: rows}
}

func keyOf[T any](item T, index int) string {
	if k, ok := any(item).(Keyer); ok {
		if key := k.Key(); key != "" {
			return key
		}
	}
	return strconv.Itoa(index)
}

// Messages holds the user-facing strings a page shows on failure.
type Messages struct {
	// Status is shown when the server answered with a non-success status.
	Status string
	// Fallback is shown for every other failure.
	Fallback string
}

// DefaultMessages is used when a controller is built without WithMessages.
var DefaultMessages = Messages{
	Status:   "Failed to fetch data",
	Fallback: "Error fetching data",
}

// Describe turns err into the message for the error banner. It never
// returns an empty string.
func (m Messages) Describe(err error) string {
	var se interface{ StatusCode() int }
	if errors.As(err, &se) && m.Status != "" {
		return m.Status
	}
	if m.Fallback != "" {
		return m.Fallback
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return DefaultMessages.Fallback
}
