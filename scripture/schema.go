package scripture

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// CatalogJSONSchema returns the JSON Schema of the mood catalog file, for editors and CI checks
// of hand-maintained catalogs. ValidateCatalog remains the authority at load time.
func CatalogJSONSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&MoodCatalog{})
	s.Title = "Mood catalog"
	s.Description = "Moods mapped to ordered Bhagavad Gita verse references"
	return json.MarshalIndent(s, "", "  ")
}
