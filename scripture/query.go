package scripture

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// IntentKind tags a SearchIntent.
type IntentKind int

const (
	IntentKeyword IntentKind = iota
	IntentChapter
	IntentVerse
)

func (k IntentKind) String() string {
	switch k {
	case IntentChapter:
		return "chapter"
	case IntentVerse:
		return "verse"
	case IntentKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("intent(%d)", int(k))
	}
}

// SearchIntent is the classified meaning of a raw query.
// Chapter is set for IntentChapter and IntentVerse, Verse only for IntentVerse, Term only for IntentKeyword.
type SearchIntent struct {
	Kind    IntentKind
	Chapter int
	Verse   int
	Term    string
}

func (i SearchIntent) String() string {
	switch i.Kind {
	case IntentChapter:
		return fmt.Sprintf("Chapter(%d)", i.Chapter)
	case IntentVerse:
		return fmt.Sprintf("Verse(%d,%d)", i.Chapter, i.Verse)
	default:
		return fmt.Sprintf("Keyword(%q)", i.Term)
	}
}

// ChapterIntent, VerseIntent and KeywordIntent build intents.
func ChapterIntent(n int) SearchIntent { return SearchIntent{Kind: IntentChapter, Chapter: n} }

func VerseIntent(chapter, verse int) SearchIntent {
	return SearchIntent{Kind: IntentVerse, Chapter: chapter, Verse: verse}
}

func KeywordIntent(term string) SearchIntent { return SearchIntent{Kind: IntentKeyword, Term: term} }

// Checked in order; the first match wins.
var (
	chapterWordRe = regexp.MustCompile(`(?i)^(?:chapter|ch\.?)\s*(\d+)$`)
	verseRe       = regexp.MustCompile(`^(\d+)[\s:.](\d+)$`)
	bareNumberRe  = regexp.MustCompile(`^(\d+)$`)
)

// ParseQuery classifies a raw query. Surrounding whitespace is ignored.
func ParseQuery(raw string) SearchIntent {
	q := strings.TrimSpace(raw)

	if m := chapterWordRe.FindStringSubmatch(q); m != nil {
		if n, ok := atoi(m[1]); ok {
			return ChapterIntent(n)
		}
	}
	if m := verseRe.FindStringSubmatch(q); m != nil {
		c, okc := atoi(m[1])
		v, okv := atoi(m[2])
		if okc && okv {
			return VerseIntent(c, v)
		}
	}
	if m := bareNumberRe.FindStringSubmatch(q); m != nil {
		if n, ok := atoi(m[1]); ok {
			return ChapterIntent(n)
		}
	}
	return KeywordIntent(q)
}

// atoi rejects values that overflow int.
func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
