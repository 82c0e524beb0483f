package scripture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultPrimaryCommentator is the translation a record must carry to be displayable.
const DefaultPrimaryCommentator = "siva"

// Field keys used by the verse store inside each commentator object, in preference order.
var (
	translationKeys = []string{"et", "ht"}
	commentaryKeys  = []string{"ec", "hc", "sc"}
)

// VersePath is the store path of a verse document.
func VersePath(chapter, verse int) string {
	return fmt.Sprintf("slok/%d/%d/", chapter, verse)
}

// ChapterPath is the lookup-service path of a chapter document.
func ChapterPath(chapter int) string {
	return fmt.Sprintf("chapter/%d/", chapter)
}

// ParseVerseRecord decodes a verse document. The store payload need not repeat the coordinates;
// the requested chapter and verse always win. primary names the commentator whose translation
// is required (DefaultPrimaryCommentator when empty).
func ParseVerseRecord(raw []byte, chapter, verse int, primary string) (VerseRecord, error) {
	if primary == "" {
		primary = DefaultPrimaryCommentator
	}
	if !gjson.ValidBytes(raw) {
		return VerseRecord{}, errors.New("verse: invalid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return VerseRecord{}, errors.New("verse: top level must be an object")
	}

	rec := VerseRecord{
		Chapter:         chapter,
		Verse:           verse,
		Slok:            strings.TrimSpace(doc.Get("slok").String()),
		Transliteration: strings.TrimSpace(doc.Get("transliteration").String()),
		Translations:    make(map[string]Translation),
	}

	doc.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		tr, ok := parseTranslation(value)
		if ok {
			rec.Translations[key.String()] = tr
		}
		return true
	})

	p, ok := rec.Translations[primary]
	if !ok || p.Text == "" {
		return VerseRecord{}, fmt.Errorf("verse %d.%d: missing %q translation", chapter, verse, primary)
	}
	rec.Commentary = p.Commentary
	return rec, nil
}

// parseTranslation reads one commentator object. Objects without any text field are skipped.
func parseTranslation(v gjson.Result) (Translation, bool) {
	tr := Translation{Author: strings.TrimSpace(v.Get("author").String())}
	used := ""
	for _, k := range translationKeys {
		if s := strings.TrimSpace(v.Get(k).String()); s != "" {
			tr.Text, used = s, k
			break
		}
	}
	for _, k := range commentaryKeys {
		if s := strings.TrimSpace(v.Get(k).String()); s != "" {
			if tr.Text == "" {
				// Commentary-only commentators: the commentary is all there is to show.
				tr.Text, used = s, k
				continue
			}
			if k != used {
				tr.Commentary = s
				break
			}
		}
	}
	if tr.Text == "" {
		return Translation{}, false
	}
	return tr, true
}

// ParseChapterInfo decodes a chapter document from the lookup service.
// The meaning field may be a plain string or a per-language object; English is preferred.
func ParseChapterInfo(raw []byte, chapter int) (ChapterInfo, error) {
	if !gjson.ValidBytes(raw) {
		return ChapterInfo{}, errors.New("chapter: invalid JSON")
	}
	doc := gjson.ParseBytes(raw)
	info := ChapterInfo{
		Chapter:     chapter,
		Name:        strings.TrimSpace(doc.Get("name").String()),
		Translation: strings.TrimSpace(doc.Get("translation").String()),
		VersesCount: int(doc.Get("verses_count").Int()),
	}
	if m := doc.Get("meaning"); m.IsObject() {
		info.Meaning = strings.TrimSpace(m.Get("en").String())
	} else {
		info.Meaning = strings.TrimSpace(m.String())
	}
	if info.Name == "" {
		return ChapterInfo{}, fmt.Errorf("chapter %d: missing name", chapter)
	}
	return info, nil
}

func parseTransliteration(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", errors.New("verse: invalid JSON")
	}
	tr := strings.TrimSpace(gjson.GetBytes(raw, "transliteration").String())
	if tr == "" {
		return "", errors.New("verse: missing transliteration")
	}
	return tr, nil
}
