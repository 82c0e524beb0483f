package scripture

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeSource serves in-memory documents and counts requests per path.
type fakeSource struct {
	mu    sync.Mutex
	docs  map[string][]byte
	fail  map[string]error
	delay map[string]time.Duration
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		docs:  map[string][]byte{},
		fail:  map[string]error{},
		delay: map[string]time.Duration{},
		calls: map[string]int{},
	}
}

func (f *fakeSource) put(path string, doc []byte) *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[path] = doc
	return f
}

func (f *fakeSource) Get(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	f.calls[path]++
	doc, ok := f.docs[path]
	err := f.fail[path]
	d := f.delay[path]
	f.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fake %s: %w", path, ErrNotFound)
	}
	return doc, nil
}

func (f *fakeSource) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// sleepRecorder is a fake clock: it records requested waits and returns immediately.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func verseDoc(chapter, verse int) []byte {
	return []byte(fmt.Sprintf(`{
  "_id": "BG%d.%d",
  "slok": "कर्मण्येवाधिकारस्ते मा फलेषु कदाचन %d.%d",
  "transliteration": "karmaṇy evādhikāras te mā phaleṣhu kadāchana %d.%d",
  "tej": {"author": "Swami Tejomayananda", "ht": "कर्म करने मात्र में तुम्हारा अधिकार है"},
  "siva": {"author": "Swami Sivananda", "et": "Thy right is to work only, but never with its fruits.", "ec": "Work for work's sake."},
  "madhav": {"author": "Sri Madhavacharya", "sc": "कर्मण्येव"}
}`, chapter, verse, chapter, verse, chapter, verse))
}

const testCatalog = `{
  "moods": [
    {"name": "Anxiety", "description": "Worry about outcomes.", "verses": [{"chapter": 2, "verse": 47, "theme": "Act without attachment"}]},
    {"name": "Deep Sadness", "description": "Grief and heaviness.", "verses": [{"chapter": 2, "verse": 47}, {"chapter": 6, "verse": 35}]},
    {"name": "Anger", "description": "Heat and frustration.", "verses": [{"chapter": 2, "verse": 62}, {"chapter": 2, "verse": 63}, {"chapter": 16, "verse": 21}]}
  ]
}`
