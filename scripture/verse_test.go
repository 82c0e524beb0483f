package scripture

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVerseRecord(t *testing.T) {
	t.Parallel()

	rec, err := ParseVerseRecord(verseDoc(2, 47), 2, 47, "")
	require.NoError(t, err)

	require.Equal(t, VerseReference{Chapter: 2, Verse: 47}, rec.Ref())
	require.True(t, strings.HasPrefix(rec.Slok, "कर्मण्येवाधिकारस्ते"))
	require.True(t, strings.HasPrefix(rec.Transliteration, "karmaṇy"))
	require.Len(t, rec.Translations, 3)

	require.Equal(t, Translation{
		Author:     "Swami Sivananda",
		Text:       "Thy right is to work only, but never with its fruits.",
		Commentary: "Work for work's sake.",
	}, rec.Translations["siva"])
	require.Equal(t, "कर्म करने मात्र में तुम्हारा अधिकार है", rec.Translations["tej"].Text)
	// Sanskrit-commentary-only entries still surface as text.
	require.Equal(t, "कर्मण्येव", rec.Translations["madhav"].Text)
	require.Empty(t, rec.Translations["madhav"].Commentary)
	require.Equal(t, "Work for work's sake.", rec.Commentary)
}

func TestParseVerseRecord_PrimaryCommentator(t *testing.T) {
	t.Parallel()

	_, err := ParseVerseRecord(verseDoc(2, 47), 2, 47, "purohit")
	require.Error(t, err)
	require.Contains(t, err.Error(), `"purohit"`)

	rec, err := ParseVerseRecord(verseDoc(2, 47), 2, 47, "tej")
	require.NoError(t, err)
	require.Empty(t, rec.Commentary)
}

func TestParseVerseRecord_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{``, `[1,2]`, `{"slok": "x"`, `{"slok":"x","siva":{"author":"Swami Sivananda"}}`} {
		_, err := ParseVerseRecord([]byte(raw), 1, 1, "")
		require.Errorf(t, err, "raw=%q", raw)
	}
}

func TestVerseRecord_JSONShape(t *testing.T) {
	t.Parallel()

	rec, err := ParseVerseRecord(verseDoc(2, 47), 2, 47, "")
	require.NoError(t, err)
	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"chapter", "verse", "slok", "transliteration", "translations", "commentary"} {
		require.Contains(t, m, k)
	}
}

func TestParseChapterInfo(t *testing.T) {
	t.Parallel()

	info, err := ParseChapterInfo([]byte(chapterTwoDoc), 2)
	require.NoError(t, err)
	require.Equal(t, ChapterInfo{
		Chapter:     2,
		Name:        "सांख्ययोग",
		Translation: "Sankhya Yoga",
		Meaning:     "Transcendental Knowledge",
		VersesCount: 72,
	}, info)

	info, err = ParseChapterInfo([]byte(`{"name":"Karma Yoga","meaning":"The Yoga of Action"}`), 3)
	require.NoError(t, err)
	require.Equal(t, "The Yoga of Action", info.Meaning)

	_, err = ParseChapterInfo([]byte(`{"chapter_number": 4}`), 4)
	require.Error(t, err)
	_, err = ParseChapterInfo([]byte(`nope`), 4)
	require.Error(t, err)
}

func TestPaths(t *testing.T) {
	t.Parallel()

	require.Equal(t, "slok/2/47/", VersePath(2, 47))
	require.Equal(t, "chapter/18/", ChapterPath(18))
}

func TestCatalogJSONSchema(t *testing.T) {
	t.Parallel()

	b, err := CatalogJSONSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(b, &schema))
	require.Equal(t, "Mood catalog", schema["title"])

	props := schema["properties"].(map[string]any)
	moods := props["moods"].(map[string]any)
	require.Equal(t, "array", moods["type"])
	require.Contains(t, string(b), `"minItems": 1`)
	require.Contains(t, string(b), `"theme"`)
}
