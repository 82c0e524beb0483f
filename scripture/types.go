package scripture

// VerseReference identifies a verse by its position. There is no global verse id;
// the (Chapter, Verse) pair is the identity.
type VerseReference struct {
	Chapter int    `json:"chapter" jsonschema:"minimum=1"`
	Verse   int    `json:"verse" jsonschema:"minimum=1"`
	Theme   string `json:"theme,omitempty"`
}

// Translation is one commentator's rendering of a verse.
type Translation struct {
	Author     string `json:"author,omitempty"`
	Text       string `json:"text"`
	Commentary string `json:"commentary,omitempty"`
}

// VerseRecord is the full content for one chapter/verse coordinate.
type VerseRecord struct {
	Chapter         int                    `json:"chapter"`
	Verse           int                    `json:"verse"`
	Slok            string                 `json:"slok"`
	Transliteration string                 `json:"transliteration"`
	Translations    map[string]Translation `json:"translations"`
	Commentary      string                 `json:"commentary,omitempty"`
}

// Ref returns the record's coordinates.
func (r VerseRecord) Ref() VerseReference {
	return VerseReference{Chapter: r.Chapter, Verse: r.Verse}
}

// MoodEntry maps a mood label to an ordered list of curated verses.
// Verse order is display order.
type MoodEntry struct {
	Name        string           `json:"name" jsonschema:"minLength=1"`
	Description string           `json:"description" jsonschema:"minLength=1"`
	Verses      []VerseReference `json:"verses" jsonschema:"minItems=1"`
}

// MoodCatalog is the static mood file.
type MoodCatalog struct {
	Moods []MoodEntry `json:"moods"`
}

// Names returns the catalog's mood names in file order.
func (c MoodCatalog) Names() []string {
	out := make([]string, 0, len(c.Moods))
	for _, m := range c.Moods {
		out = append(out, m.Name)
	}
	return out
}

// ChapterInfo is the chapter metadata returned by the lookup service.
type ChapterInfo struct {
	Chapter     int    `json:"chapter_number"`
	Name        string `json:"name"`
	Translation string `json:"translation,omitempty"`
	Meaning     string `json:"meaning,omitempty"`
	VersesCount int    `json:"verses_count,omitempty"`
}
