package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/theimaginaryfoundation/gita-moods/scripture"
	"github.com/theimaginaryfoundation/gita-moods/scripture/fileutils"
)

const previewMaxChars = 120

// moodBundle is the JSON shape printed by `mood --json` and written by `export`.
type moodBundle struct {
	Query       string                     `json:"query"`
	Mood        string                     `json:"mood,omitempty"`
	Description string                     `json:"description,omitempty"`
	Verses      []scripture.VerseRecord    `json:"verses"`
	Missing     []missingVerse             `json:"missing,omitempty"`
	References  []scripture.VerseReference `json:"references,omitempty"`
}

type missingVerse struct {
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Outcome string `json:"outcome"`
}

func newMoodBundle(query string, res scripture.MoodVerses) moodBundle {
	b := moodBundle{Query: query, Verses: res.Verses}
	if b.Verses == nil {
		b.Verses = []scripture.VerseRecord{}
	}
	if res.Mood != nil {
		b.Mood = res.Mood.Name
		b.Description = res.Mood.Description
		b.References = res.Mood.Verses
	}
	for _, f := range res.Failures {
		b.Missing = append(b.Missing, missingVerse{Chapter: f.Ref.Chapter, Verse: f.Ref.Verse, Outcome: f.Outcome.String()})
	}
	return b
}

func writeBundle(path string, b moodBundle, pretty bool) error {
	if err := fileutils.WriteJSONFileAtomic(path, b, pretty); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printVerse(w io.Writer, v scripture.VerseRecord, primary string) {
	fmt.Fprintf(w, "[%d.%d]\n", v.Chapter, v.Verse)
	if v.Slok != "" {
		fmt.Fprintf(w, "  %s\n", fileutils.SanitizeNewlines(v.Slok))
	}
	if v.Transliteration != "" {
		fmt.Fprintf(w, "  %s\n", fileutils.SanitizeNewlines(v.Transliteration))
	}
	if tr, ok := v.Translations[primary]; ok {
		if tr.Author != "" {
			fmt.Fprintf(w, "  %s (%s)\n", fileutils.SanitizeNewlines(tr.Text), tr.Author)
		} else {
			fmt.Fprintf(w, "  %s\n", fileutils.SanitizeNewlines(tr.Text))
		}
	}
	others := make([]string, 0, len(v.Translations))
	for k := range v.Translations {
		if k != primary {
			others = append(others, k)
		}
	}
	sort.Strings(others)
	if len(others) > 0 {
		fmt.Fprintf(w, "  also: %v\n", others)
	}
	fmt.Fprintln(w)
}

func printSearch(w io.Writer, resp scripture.SearchResponse) {
	switch {
	case resp.Unsupported:
		fmt.Fprintf(w, "%q: keyword search is not supported yet; try \"ch.2\" or \"2:47\"\n", resp.Query)
	case len(resp.Results) == 0:
		fmt.Fprintf(w, "%q: no results\n", resp.Query)
	default:
		for _, r := range resp.Results {
			fmt.Fprintf(w, "%d.%d  %s\n", r.Chapter, r.Verse, fileutils.Truncate(fileutils.SanitizeNewlines(r.Preview), previewMaxChars))
		}
	}
}
