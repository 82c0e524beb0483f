package scripture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxRetries gives four attempts per verse.
	DefaultMaxRetries = 3
	// DefaultBackoffUnit is the linear backoff step: waits are 1s, 2s, 3s, ...
	DefaultBackoffUnit = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ResolverOptions configures a Resolver. Zero values select the defaults.
type ResolverOptions struct {
	// MaxRetries is the number of retries after the first attempt. Negative disables retries.
	MaxRetries int

	// BackoffUnit is multiplied by the attempt number to get the wait before the next attempt.
	BackoffUnit time.Duration

	// PrimaryCommentator is the translation a record must carry.
	PrimaryCommentator string

	// Concurrency limits in-flight verse fetches for a mood (0 = one goroutine per verse).
	Concurrency int

	// Sleep replaces the backoff wait; tests inject a fake clock here.
	Sleep SleepFunc

	Logger *zap.Logger
}

// Resolver fetches verse records from a per-verse document store.
type Resolver struct {
	store   Source
	catalog *CatalogLoader

	maxRetries  int
	backoffUnit time.Duration
	primary     string
	concurrency int
	sleep       SleepFunc
	logger      *zap.Logger
}

// NewResolver returns a Resolver over store. catalog may be nil if only FetchVerse is used.
func NewResolver(store Source, catalog *CatalogLoader, opt ResolverOptions) *Resolver {
	r := &Resolver{
		store:       store,
		catalog:     catalog,
		maxRetries:  opt.MaxRetries,
		backoffUnit: opt.BackoffUnit,
		primary:     opt.PrimaryCommentator,
		concurrency: opt.Concurrency,
		sleep:       opt.Sleep,
		logger:      opt.Logger,
	}
	if r.maxRetries == 0 {
		r.maxRetries = DefaultMaxRetries
	}
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	if r.backoffUnit <= 0 {
		r.backoffUnit = DefaultBackoffUnit
	}
	if r.primary == "" {
		r.primary = DefaultPrimaryCommentator
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// FetchVerse returns the record at chapter:verse, retrying failed attempts with linear backoff.
// After the budget is spent it returns ErrVerseNotFound if the last attempt was a definite miss,
// or a *FetchError otherwise.
func (r *Resolver) FetchVerse(ctx context.Context, chapter, verse int) (VerseRecord, error) {
	ref := VerseReference{Chapter: chapter, Verse: verse}
	if chapter < 1 || verse < 1 {
		return VerseRecord{}, fmt.Errorf("fetch verse %d.%d: %w", chapter, verse, ErrVerseNotFound)
	}
	if r.store == nil {
		return VerseRecord{}, &FetchError{Ref: ref, Attempts: 0, Err: errors.New("no verse store configured")}
	}

	attempts := r.maxRetries + 1
	made := 0
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		made++
		rec, err := r.fetchOnce(ctx, chapter, verse)
		if err == nil {
			return rec, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt == attempts-1 {
			break
		}
		wait := r.backoffUnit * time.Duration(attempt+1)
		r.logger.Debug("verse fetch failed, retrying",
			zap.Int("chapter", chapter),
			zap.Int("verse", verse),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		if serr := r.sleep(ctx, wait); serr != nil {
			lastErr = serr
			break
		}
	}

	r.logger.Warn("verse fetch exhausted",
		zap.Int("chapter", chapter),
		zap.Int("verse", verse),
		zap.Int("attempts", made),
		zap.Int("budget", attempts),
		zap.Error(lastErr))
	if errors.Is(lastErr, ErrNotFound) {
		return VerseRecord{}, fmt.Errorf("fetch verse %d.%d: %w", chapter, verse, ErrVerseNotFound)
	}
	return VerseRecord{}, &FetchError{Ref: ref, Attempts: made, Err: lastErr}
}

func (r *Resolver) fetchOnce(ctx context.Context, chapter, verse int) (VerseRecord, error) {
	raw, err := r.store.Get(ctx, VersePath(chapter, verse))
	if err != nil {
		return VerseRecord{}, err
	}
	return ParseVerseRecord(raw, chapter, verse, r.primary)
}

// VerseFailure records a verse that could not be resolved for a mood.
type VerseFailure struct {
	Ref     VerseReference
	Outcome Outcome
	Err     error
}

// MoodVerses is the result of resolving a mood. Verses holds the surviving records in catalog
// order with no gaps; Failures lists what was dropped.
type MoodVerses struct {
	Mood     *MoodEntry
	Verses   []VerseRecord
	Failures []VerseFailure
}

// Records returns the resolved verses.
func (m MoodVerses) Records() []VerseRecord {
	return m.Verses
}

// FetchVersesForMood resolves every verse of the named mood concurrently. An unknown mood or an
// unavailable catalog yields an empty result without fetching any verse. Individual verse
// failures are dropped from Verses and reported in Failures.
func (r *Resolver) FetchVersesForMood(ctx context.Context, moodName string) MoodVerses {
	if r.catalog == nil {
		r.logger.Warn("no mood catalog configured", zap.String("mood", moodName))
		return MoodVerses{}
	}
	cat, err := r.catalog.Load(ctx)
	if err != nil {
		return MoodVerses{}
	}
	mood, ok := FindByName(cat, moodName)
	if !ok {
		r.logger.Info("mood not found", zap.String("mood", moodName))
		return MoodVerses{}
	}
	return r.FetchVersesForEntry(ctx, mood)
}

// FetchVersesForEntry resolves the references of an already looked-up mood.
func (r *Resolver) FetchVersesForEntry(ctx context.Context, mood *MoodEntry) MoodVerses {
	out := MoodVerses{Mood: mood}
	if mood == nil || len(mood.Verses) == 0 {
		return out
	}

	// Indexed by request position so completion order never affects output order.
	records := make([]VerseRecord, len(mood.Verses))
	errs := make([]error, len(mood.Verses))

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, ref := range mood.Verses {
		i, ref := i, ref
		g.Go(func() error {
			// Per-verse failures are recorded, never returned, so one miss cannot cancel the rest.
			records[i], errs[i] = r.FetchVerse(gctx, ref.Chapter, ref.Verse)
			return nil
		})
	}
	_ = g.Wait()

	out.Verses = make([]VerseRecord, 0, len(records))
	for i, rec := range records {
		if errs[i] != nil {
			out.Failures = append(out.Failures, VerseFailure{
				Ref:     mood.Verses[i],
				Outcome: Classify(errs[i]),
				Err:     errs[i],
			})
			continue
		}
		out.Verses = append(out.Verses, rec)
	}
	if len(out.Failures) > 0 {
		r.logger.Info("mood resolved partially",
			zap.String("mood", mood.Name),
			zap.Int("resolved", len(out.Verses)),
			zap.Int("dropped", len(out.Failures)))
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
