package scripture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCatalogPath is the catalog document name relative to its source.
const DefaultCatalogPath = "moods.json"

// CatalogLoader fetches the mood catalog once and keeps it for the loader's lifetime.
// A failed load is not cached; the next Load call fetches again.
type CatalogLoader struct {
	src    Source
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	cached *MoodCatalog
}

// NewCatalogLoader returns a loader reading path from src. A nil logger disables logging.
func NewCatalogLoader(src Source, path string, logger *zap.Logger) *CatalogLoader {
	if path == "" {
		path = DefaultCatalogPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogLoader{src: src, path: path, logger: logger}
}

// Load returns the cached catalog, fetching and validating it on first use.
// On failure it logs and returns a nil catalog with an error wrapping ErrCatalogUnavailable.
func (l *CatalogLoader) Load(ctx context.Context) (*MoodCatalog, error) {
	// Held across the fetch so concurrent first callers share one request.
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached, nil
	}
	if l.src == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrCatalogUnavailable)
	}

	raw, err := l.src.Get(ctx, l.path)
	if err != nil {
		l.logger.Warn("mood catalog fetch failed", zap.String("path", l.path), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	cat, err := ParseCatalog(raw)
	if err != nil {
		l.logger.Warn("mood catalog rejected", zap.String("path", l.path), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	l.logger.Debug("mood catalog loaded", zap.String("path", l.path), zap.Int("moods", len(cat.Moods)))
	l.cached = &cat
	return l.cached, nil
}

// Cached returns the catalog if a previous Load succeeded.
func (l *CatalogLoader) Cached() (*MoodCatalog, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cached, l.cached != nil
}

// ParseCatalog validates raw and decodes it into a MoodCatalog.
func ParseCatalog(raw []byte) (MoodCatalog, error) {
	if err := validateStructure(raw); err != nil {
		return MoodCatalog{}, err
	}
	var cat MoodCatalog
	if err := json.Unmarshal(raw, &cat); err != nil {
		return MoodCatalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	// gjson reads the first of a duplicated key and encoding/json the last, so the decoded
	// value is checked again.
	if err := validateDecoded(cat); err != nil {
		return MoodCatalog{}, err
	}
	return cat, nil
}

// IsValidCatalog reports whether raw passes ValidateCatalog.
func IsValidCatalog(raw []byte) bool {
	return ValidateCatalog(raw) == nil
}

// ValidateCatalog checks the catalog's structure. Any violation rejects the whole document;
// the returned error names the first offending field.
func ValidateCatalog(raw []byte) error {
	_, err := ParseCatalog(raw)
	return err
}

func validateStructure(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return errors.New("catalog: invalid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return errors.New("catalog: top level must be an object")
	}
	moods := doc.Get("moods")
	if !moods.IsArray() {
		return errors.New("catalog: moods must be an array")
	}

	var verr error
	i := 0
	moods.ForEach(func(_, mood gjson.Result) bool {
		verr = validateMood(i, mood)
		i++
		return verr == nil
	})
	return verr
}

func validateDecoded(cat MoodCatalog) error {
	for i, m := range cat.Moods {
		at := fmt.Sprintf("moods[%d]", i)
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("catalog: %s.name must be a non-empty string", at)
		}
		if strings.TrimSpace(m.Description) == "" {
			return fmt.Errorf("catalog: %s.description must be a non-empty string", at)
		}
		if len(m.Verses) == 0 {
			return fmt.Errorf("catalog: %s.verses must be a non-empty array", at)
		}
		for j, ref := range m.Verses {
			if ref.Chapter < 1 {
				return fmt.Errorf("catalog: %s.verses[%d].chapter must be a positive integer", at, j)
			}
			if ref.Verse < 1 {
				return fmt.Errorf("catalog: %s.verses[%d].verse must be a positive integer", at, j)
			}
		}
	}
	return nil
}

func validateMood(i int, mood gjson.Result) error {
	at := fmt.Sprintf("moods[%d]", i)
	if !mood.IsObject() {
		return fmt.Errorf("catalog: %s must be an object", at)
	}
	for _, field := range []string{"name", "description"} {
		v := mood.Get(field)
		if v.Type != gjson.String || strings.TrimSpace(v.Str) == "" {
			return fmt.Errorf("catalog: %s.%s must be a non-empty string", at, field)
		}
	}
	verses := mood.Get("verses")
	if !verses.IsArray() || len(verses.Array()) == 0 {
		return fmt.Errorf("catalog: %s.verses must be a non-empty array", at)
	}
	for j, ref := range verses.Array() {
		refAt := fmt.Sprintf("%s.verses[%d]", at, j)
		if !ref.IsObject() {
			return fmt.Errorf("catalog: %s must be an object", refAt)
		}
		for _, field := range []string{"chapter", "verse"} {
			if _, ok := positiveInt(ref.Get(field)); !ok {
				return fmt.Errorf("catalog: %s.%s must be a positive integer", refAt, field)
			}
		}
	}
	return nil
}

// positiveInt accepts only integer JSON number literals greater than zero.
func positiveInt(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	n, err := strconv.Atoi(v.Raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// NormalizeMoodName uppercases name, turns '_' and '-' into spaces and collapses whitespace.
// Names coming from URL slugs and UI labels compare equal after normalization.
func NormalizeMoodName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	// Casers carry state; one per call keeps this safe for concurrent use.
	return cases.Upper(language.Und).String(name)
}

// Slug returns the lowercase hyphenated form of a mood name.
func Slug(name string) string {
	return strings.ReplaceAll(cases.Lower(language.Und).String(NormalizeMoodName(name)), " ", "-")
}

// FindByName returns the first mood whose normalized name matches name.
func FindByName(catalog *MoodCatalog, name string) (*MoodEntry, bool) {
	if catalog == nil {
		return nil, false
	}
	want := NormalizeMoodName(name)
	if want == "" {
		return nil, false
	}
	for i := range catalog.Moods {
		if NormalizeMoodName(catalog.Moods[i].Name) == want {
			return &catalog.Moods[i], true
		}
	}
	return nil, false
}
