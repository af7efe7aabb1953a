// Package fetch owns the accumulated record lists and the response cache,
// and drives paged queries against the metadata service.
package fetch

import (
	"errors"
	"fmt"
	"time"

	"ESMP/core/notion"
	"ESMP/model"
)

// Target is a logical fetch target. Results are merged per target, never by
// arrival order.
type Target int

const (
	TargetAll Target = iota
	TargetFiltered
)

func (t Target) String() string {
	switch t {
	case TargetAll:
		return "all"
	case TargetFiltered:
		return "filtered"
	}
	return fmt.Sprintf("target(%d)", int(t))
}

func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Target) UnmarshalText(text []byte) error {
	switch string(text) {
	case "all":
		*t = TargetAll
	case "filtered":
		*t = TargetFiltered
	default:
		return fmt.Errorf("unknown fetch target %q", text)
	}
	return nil
}

// Phase is where a target's fetch lifecycle stands.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

var (
	// ErrInFlight is returned when a fetch for the target is already running.
	ErrInFlight = errors.New("fetch: request already in flight")
	// ErrSuperseded is returned to a filtered fetch whose result lost to a
	// newer one in the same scope.
	ErrSuperseded = errors.New("fetch: superseded by a newer request")
)

// FetchError is an upstream failure surfaced to callers. Status is the
// service's HTTP status when it answered at all.
type FetchError struct {
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Message, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func newFetchError(op, message string, err error) *FetchError {
	fe := &FetchError{Op: op, Message: message, Err: err}
	var apiErr *notion.APIError
	if errors.As(err, &apiErr) {
		fe.Status = apiErr.Status
	}
	return fe
}

// Snapshot is a point-in-time view of one target. Scope names the caller
// that owns a filtered snapshot.
type Snapshot struct {
	Target    Target         `json:"target"`
	Scope     string         `json:"scope,omitempty"`
	Phase     Phase          `json:"phase"`
	Count     int            `json:"count"`
	HasMore   bool           `json:"hasMore"`
	FromCache bool           `json:"fromCache"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Records   []model.Record `json:"records,omitempty"`
}

// Empty reports a completed fetch that matched nothing. A target that is
// still loading is never empty.
func (s Snapshot) Empty() bool {
	return s.Phase == PhaseReady && s.Count == 0
}

// Summary drops the records, keeping counts and phase.
func (s Snapshot) Summary() Snapshot {
	s.Records = nil
	return s
}

type targetState struct {
	phase     Phase
	records   []model.Record
	hasMore   bool
	cursor    string
	err       error
	inFlight  bool
	fromCache bool
	updatedAt time.Time

	// filtered target only
	scope  string
	gen    uint64
	cancel func()
}

func (st *targetState) snapshot(t Target) Snapshot {
	s := Snapshot{
		Target:    t,
		Scope:     st.scope,
		Phase:     st.phase,
		Count:     len(st.records),
		HasMore:   st.hasMore,
		FromCache: st.fromCache,
		UpdatedAt: st.updatedAt,
		Records:   st.records,
	}
	if st.err != nil {
		s.Error = st.err.Error()
	}
	return s
}

// canLoadMore: not in flight, and either nothing loaded yet, a retry after
// failure, or a ready list with pages left.
func (st *targetState) canLoadMore() bool {
	if st.inFlight {
		return false
	}
	switch st.phase {
	case PhaseIdle, PhaseFailed:
		return true
	case PhaseReady:
		return st.hasMore
	}
	return false
}
