package scraper

import "errors"

var (
	// ErrEmptyExtraction means a fully loaded page yielded no usable
	// records: either the container selector matched nothing, or every
	// matched row failed to produce a name. Distinct from a record with
	// missing fields, which is a successful partial extraction.
	ErrEmptyExtraction = errors.New("extraction produced no records")
)

// State tracks the orchestrator through one target run.
type State string

const (
	StateIdle       State = "idle"
	StateNavigating State = "navigating"
	StateLoading    State = "loading"
	StateExtracting State = "extracting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)
