package scripture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SearchResult is one hit shown in the search dropdown.
type SearchResult struct {
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Preview string `json:"preview"`
}

// SearchResponse is the outcome of one Search call.
type SearchResponse struct {
	Query      string         `json:"query"`
	Intent     SearchIntent   `json:"-"`
	Generation uint64         `json:"generation"`
	RequestID  string         `json:"request_id"`
	Results    []SearchResult `json:"results"`

	// Unsupported is set for keyword queries, which are recognised but not executed.
	Unsupported bool `json:"unsupported,omitempty"`
}

// Searcher runs classified queries against the chapter/verse lookup service.
// Each call supersedes the previous one: the older call's context is cancelled and its
// response is discarded with ErrStaleQuery.
type Searcher struct {
	lookup Source
	logger *zap.Logger

	generation atomic.Uint64

	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelGen uint64
}

// NewSearcher returns a Searcher over the lookup service. A nil logger disables logging.
func NewSearcher(lookup Source, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{lookup: lookup, logger: logger}
}

// Latest returns the generation of the most recently issued search.
func (s *Searcher) Latest() uint64 {
	return s.generation.Load()
}

// Search classifies raw and executes the lookup. Lookup failures produce zero results, not an error;
// the only error is ErrStaleQuery (or the parent context's error).
func (s *Searcher) Search(ctx context.Context, raw string) (SearchResponse, error) {
	gen := s.generation.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel, s.cancelGen = cancel, gen
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.cancelGen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	resp := SearchResponse{
		Query:      strings.TrimSpace(raw),
		Intent:     ParseQuery(raw),
		Generation: gen,
		RequestID:  uuid.NewString(),
		Results:    []SearchResult{},
	}
	log := s.logger.With(
		zap.String("request_id", resp.RequestID),
		zap.Uint64("generation", gen),
		zap.String("query", resp.Query))

	switch resp.Intent.Kind {
	case IntentChapter:
		if r, ok := s.lookupChapter(ctx, log, resp.Intent.Chapter); ok {
			resp.Results = append(resp.Results, r)
		}
	case IntentVerse:
		if r, ok := s.lookupVerse(ctx, log, resp.Intent.Chapter, resp.Intent.Verse); ok {
			resp.Results = append(resp.Results, r)
		}
	default:
		if resp.Query != "" {
			resp.Unsupported = true
			log.Info("keyword search is not supported yet", zap.String("term", resp.Intent.Term))
		}
	}

	if s.generation.Load() != gen {
		log.Debug("discarding stale search response")
		return SearchResponse{}, ErrStaleQuery
	}
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		// Not superseded, so the parent context was cancelled.
		return SearchResponse{}, err
	}
	return resp, nil
}

func (s *Searcher) lookupChapter(ctx context.Context, log *zap.Logger, chapter int) (SearchResult, bool) {
	if s.lookup == nil {
		log.Warn("no lookup service configured")
		return SearchResult{}, false
	}
	raw, err := s.lookup.Get(ctx, ChapterPath(chapter))
	if err != nil {
		lookupFailed(ctx, log, "chapter lookup failed", zap.Int("chapter", chapter), zap.Error(err))
		return SearchResult{}, false
	}
	info, err := ParseChapterInfo(raw, chapter)
	if err != nil {
		log.Warn("chapter lookup returned bad document", zap.Int("chapter", chapter), zap.Error(err))
		return SearchResult{}, false
	}
	return SearchResult{Chapter: chapter, Verse: 1, Preview: info.Name}, true
}

func (s *Searcher) lookupVerse(ctx context.Context, log *zap.Logger, chapter, verse int) (SearchResult, bool) {
	if s.lookup == nil {
		log.Warn("no lookup service configured")
		return SearchResult{}, false
	}
	raw, err := s.lookup.Get(ctx, VersePath(chapter, verse))
	if err != nil {
		lookupFailed(ctx, log, "verse lookup failed", zap.Int("chapter", chapter), zap.Int("verse", verse), zap.Error(err))
		return SearchResult{}, false
	}
	tr, err := parseTransliteration(raw)
	if err != nil {
		log.Warn("verse lookup returned bad document", zap.Int("chapter", chapter), zap.Int("verse", verse), zap.Error(err))
		return SearchResult{}, false
	}
	return SearchResult{Chapter: chapter, Verse: verse, Preview: tr}, true
}

// lookupFailed logs at Warn unless the search was cancelled, which happens to every
// superseded query.
func lookupFailed(ctx context.Context, log *zap.Logger, msg string, fields ...zap.Field) {
	if ctx.Err() != nil {
		log.Debug(msg, fields...)
		return
	}
	log.Warn(msg, fields...)
}

// Serve runs a search for every debounced query until d's output closes or ctx ends.
// handle is called only with responses that are still current. Calls to handle are
// serialized and the generation is re-checked under the same lock, so a response cannot be
// handed over after a newer one.
func (s *Searcher) Serve(ctx context.Context, d *Debouncer, handle func(SearchResponse)) error {
	var (
		wg       sync.WaitGroup
		handleMu sync.Mutex
		handled  uint64
	)
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q, ok := <-d.Output():
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := s.Search(ctx, q)
				if err != nil {
					return
				}
				handleMu.Lock()
				defer handleMu.Unlock()
				if resp.Generation != s.Latest() || resp.Generation <= handled {
					return
				}
				handled = resp.Generation
				handle(resp)
			}()
		}
	}
}
