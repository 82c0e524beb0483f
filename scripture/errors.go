package scripture

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Source when the requested document definitely does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrVerseNotFound means the store answered "not found" on the final attempt.
	ErrVerseNotFound = errors.New("verse not found")

	// ErrCatalogUnavailable wraps any transport or validation failure while loading the mood catalog.
	ErrCatalogUnavailable = errors.New("mood catalog unavailable")

	// ErrStaleQuery is returned for a search that was superseded by a newer one before it resolved.
	ErrStaleQuery = errors.New("search superseded by a newer query")
)

// FetchError is a verse fetch that exhausted its retry budget on transient failures.
type FetchError struct {
	Ref      VerseReference
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch verse %d.%d: gave up after %d attempts: %v", e.Ref.Chapter, e.Ref.Verse, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Outcome classifies the result of a single verse fetch.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeTransientFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTransientFailure:
		return "transient_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify maps an error returned by Resolver.FetchVerse to an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrVerseNotFound), errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeTransientFailure
	}
}
