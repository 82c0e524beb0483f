package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/theimaginaryfoundation/gita-moods/scripture"
)

var catalog = &scripture.MoodCatalog{Moods: []scripture.MoodEntry{
	{Name: "Anxiety", Description: "Worry about\noutcomes.", Verses: []scripture.VerseReference{{Chapter: 2, Verse: 47}}},
	{Name: "Deep Sadness", Description: "Grief.", Verses: []scripture.VerseReference{{Chapter: 2, Verse: 13}}},
}}

func TestMoodChoiceSchema(t *testing.T) {
	t.Parallel()

	schema := MoodChoiceSchema(catalog.Names())
	if got := schema[additionalPropertiesKey]; got != false {
		t.Fatalf("additionalProperties = %v, want false", got)
	}
	required, ok := schema[requiredKey].([]string)
	if !ok {
		t.Fatalf("required has type %T", schema[requiredKey])
	}
	sort.Strings(required)
	if diff := cmp.Diff([]string{"mood", "reason"}, required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}

	props := schema[propertiesKey].(map[string]interface{})
	mood := props["mood"].(map[string]interface{})
	if diff := cmp.Diff([]interface{}{"Anxiety", "Deep Sadness"}, mood["enum"]); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}
	if _, ok := props["reason"].(map[string]interface{})["enum"]; ok {
		t.Fatalf("reason must not be constrained")
	}
}

func TestMoodChoiceSchema_NoNames(t *testing.T) {
	t.Parallel()

	props := MoodChoiceSchema(nil)[propertiesKey].(map[string]interface{})
	if _, ok := props["mood"].(map[string]interface{})["enum"]; ok {
		t.Fatalf("empty name list must not produce an enum")
	}
}

func TestBuildMoodPrompt(t *testing.T) {
	t.Parallel()

	got := BuildMoodPrompt("I can't stop\nworrying", catalog.Moods)
	want := "MOODS:\n- Anxiety: Worry about outcomes.\n- Deep Sadness: Grief.\n\nREADER:\nI can't stop worrying\n"
	if got != want {
		t.Fatalf("prompt mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestMatchChoice(t *testing.T) {
	t.Parallel()

	mood, choice, err := MatchChoice("```json\n{\"mood\": \" deep_sadness \", \"reason\": \"Loss.\"}\n```", catalog)
	if err != nil {
		t.Fatalf("MatchChoice: %v", err)
	}
	if mood.Name != "Deep Sadness" {
		t.Fatalf("mood = %q", mood.Name)
	}
	if choice.Reason != "Loss." {
		t.Fatalf("reason = %q", choice.Reason)
	}

	_, choice, err = MatchChoice(`{"mood": "Euphoria", "reason": "x"}`, catalog)
	if !errors.Is(err, ErrNoMatchingMood) {
		t.Fatalf("err = %v, want ErrNoMatchingMood", err)
	}
	if choice.Mood != "Euphoria" {
		t.Fatalf("choice should be returned for diagnostics, got %+v", choice)
	}

	if _, _, err := MatchChoice("no json here", catalog); err == nil || errors.Is(err, ErrNoMatchingMood) {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err       error
		rateLimit bool
		server    bool
	}{
		{nil, false, false},
		{errors.New("POST /v1/responses: 429 Too Many Requests"), true, false},
		{fmt.Errorf("wrapped: %w", errors.New("Rate limit reached")), true, false},
		{errors.New("500 Internal Server Error"), false, true},
		{errors.New("server_error: try again"), false, true},
		{errors.New("invalid_request_error: bad schema"), false, false},
	}
	for _, tc := range cases {
		if got := isRateLimitError(tc.err); got != tc.rateLimit {
			t.Fatalf("isRateLimitError(%v) = %v", tc.err, got)
		}
		if got := isServerError(tc.err); got != tc.server {
			t.Fatalf("isServerError(%v) = %v", tc.err, got)
		}
	}
}

func TestEnsureOpenAICompliance_Nested(t *testing.T) {
	t.Parallel()

	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"items": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"a": map[string]interface{}{"type": "string"}},
				},
			},
		},
	}
	ensureOpenAICompliance(schema)
	inner := schema["properties"].(map[string]interface{})["items"].(map[string]interface{})["items"].(map[string]interface{})
	if inner[additionalPropertiesKey] != false {
		t.Fatalf("nested object not made strict: %v", inner)
	}
	if !strings.Contains(fmt.Sprint(inner[requiredKey]), "a") {
		t.Fatalf("nested required = %v", inner[requiredKey])
	}
}
