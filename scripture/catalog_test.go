package scripture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateCatalog(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "valid", raw: testCatalog},
		{name: "not json", raw: `{"moods": [`, wantErr: "invalid JSON"},
		{name: "top level array", raw: `[]`, wantErr: "top level"},
		{name: "missing moods", raw: `{"mood": []}`, wantErr: "moods must be an array"},
		{name: "missing name", raw: `{"moods":[{"description":"d","verses":[{"chapter":1,"verse":1}]}]}`, wantErr: "moods[0].name"},
		{name: "blank name", raw: `{"moods":[{"name":"  ","description":"d","verses":[{"chapter":1,"verse":1}]}]}`, wantErr: "moods[0].name"},
		{name: "missing description", raw: `{"moods":[{"name":"n","verses":[{"chapter":1,"verse":1}]}]}`, wantErr: "moods[0].description"},
		{name: "missing verses", raw: `{"moods":[{"name":"n","description":"d"}]}`, wantErr: "moods[0].verses"},
		{name: "empty verses", raw: `{"moods":[{"name":"n","description":"d","verses":[]}]}`, wantErr: "moods[0].verses"},
		{name: "string chapter", raw: `{"moods":[{"name":"n","description":"d","verses":[{"chapter":"2","verse":47}]}]}`, wantErr: "verses[0].chapter"},
		{name: "fractional verse", raw: `{"moods":[{"name":"n","description":"d","verses":[{"chapter":2,"verse":4.5}]}]}`, wantErr: "verses[0].verse"},
		{name: "zero chapter", raw: `{"moods":[{"name":"n","description":"d","verses":[{"chapter":0,"verse":1}]}]}`, wantErr: "verses[0].chapter"},
		{name: "negative verse", raw: `{"moods":[{"name":"n","description":"d","verses":[{"chapter":1,"verse":-3}]}]}`, wantErr: "verses[0].verse"},
		{name: "duplicate name key", raw: `{"moods":[{"name":"Anxiety","name":"","description":"d","verses":[{"chapter":2,"verse":47}]}]}`, wantErr: "moods[0].name"},
		{name: "duplicate chapter key", raw: `{"moods":[{"name":"n","description":"d","verses":[{"chapter":2,"chapter":0,"verse":47}]}]}`, wantErr: "verses[0].chapter"},
		{name: "duplicate verses key", raw: `{"moods":[{"name":"n","description":"d","verses":[{"chapter":2,"verse":47}],"verses":[]}]}`, wantErr: "moods[0].verses"},
		{
			name:    "one bad entry rejects all",
			raw:     `{"moods":[{"name":"a","description":"d","verses":[{"chapter":1,"verse":1}]},{"name":"b","description":"d","verses":[{"chapter":1}]}]}`,
			wantErr: "moods[1].verses[0].verse",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateCatalog([]byte(tc.raw))
			if tc.wantErr == "" {
				require.NoError(t, err)
				require.True(t, IsValidCatalog([]byte(tc.raw)))
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
			require.False(t, IsValidCatalog([]byte(tc.raw)))
		})
	}
}

func TestParseCatalog_DuplicateKeysFailClosed(t *testing.T) {
	t.Parallel()

	raw := `{"moods":[{"name":"Anxiety","name":"","description":"d","verses":[{"chapter":2,"chapter":0,"verse":47}]}]}`
	cat, err := ParseCatalog([]byte(raw))
	require.Error(t, err)
	require.Empty(t, cat.Moods)

	src := newFakeSource().put(DefaultCatalogPath, []byte(raw))
	loader := NewCatalogLoader(src, DefaultCatalogPath, nil)
	_, err = loader.Load(context.Background())
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	_, ok := loader.Cached()
	require.False(t, ok)
}

func TestCatalogLoader_LoadFetchesOnce(t *testing.T) {
	t.Parallel()

	src := newFakeSource().put(DefaultCatalogPath, []byte(testCatalog))
	l := NewCatalogLoader(src, "", nil)

	first, err := l.Load(context.Background())
	require.NoError(t, err)
	second, err := l.Load(context.Background())
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, src.count(DefaultCatalogPath))
	require.Equal(t, []string{"Anxiety", "Deep Sadness", "Anger"}, first.Names())

	cached, ok := l.Cached()
	require.True(t, ok)
	require.Same(t, first, cached)
}

func TestCatalogLoader_ConcurrentFirstLoadSharesFetch(t *testing.T) {
	t.Parallel()

	src := newFakeSource().put(DefaultCatalogPath, []byte(testCatalog))
	src.delay[DefaultCatalogPath] = 20 * time.Millisecond
	l := NewCatalogLoader(src, DefaultCatalogPath, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Load(context.Background()); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, src.count(DefaultCatalogPath))
}

func TestCatalogLoader_MalformedReturnsNil(t *testing.T) {
	t.Parallel()

	src := newFakeSource().put(DefaultCatalogPath, []byte(`{"moods":[{"name":"Anxiety","verses":[{"chapter":2,"verse":47}]}]}`))
	l := NewCatalogLoader(src, "", nil)

	cat, err := l.Load(context.Background())
	require.Nil(t, cat)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	_, ok := l.Cached()
	require.False(t, ok)
}

func TestCatalogLoader_FailureIsNotCached(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.fail[DefaultCatalogPath] = errors.New("connection reset")
	l := NewCatalogLoader(src, "", nil)

	cat, err := l.Load(context.Background())
	require.Nil(t, cat)
	require.ErrorIs(t, err, ErrCatalogUnavailable)

	src.mu.Lock()
	delete(src.fail, DefaultCatalogPath)
	src.docs[DefaultCatalogPath] = []byte(testCatalog)
	src.mu.Unlock()

	cat, err = l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cat.Moods, 3)
	require.Equal(t, 2, src.count(DefaultCatalogPath))
}

func TestCatalogLoader_NoSource(t *testing.T) {
	t.Parallel()

	cat, err := NewCatalogLoader(nil, "", nil).Load(context.Background())
	require.Nil(t, cat)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestFindByName_Normalizes(t *testing.T) {
	t.Parallel()

	cat, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	for _, name := range []string{"DEEP SADNESS", "deep_sadness", "  deep   sadness  ", "deep-sadness", "Deep\tSadness"} {
		m, ok := FindByName(&cat, name)
		require.Truef(t, ok, "FindByName(%q)", name)
		require.Equal(t, "Deep Sadness", m.Name)
		require.Same(t, &cat.Moods[1], m)
	}

	_, ok := FindByName(&cat, "joy")
	require.False(t, ok)
	_, ok = FindByName(&cat, "   ")
	require.False(t, ok)
	_, ok = FindByName(nil, "Anxiety")
	require.False(t, ok)
}

func TestNormalizeMoodNameAndSlug(t *testing.T) {
	t.Parallel()

	require.Equal(t, "LACK OF MOTIVATION", NormalizeMoodName(" lack_of   motivation "))
	require.Equal(t, "ÉMOI", NormalizeMoodName("émoi"))
	require.Equal(t, "lack-of-motivation", Slug("Lack of  Motivation"))

	cat, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	for _, m := range cat.Moods {
		found, ok := FindByName(&cat, Slug(m.Name))
		require.True(t, ok)
		require.Equal(t, m.Name, found.Name)
	}
}
