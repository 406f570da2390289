package profile

import _ "embed"

//go:embed profiles/strict.yaml
var strictYAML []byte

//go:embed profiles/lenient.yaml
var lenientYAML []byte

//go:embed profiles/draft.yaml
var draftYAML []byte

// builtinProfiles maps profile names to their embedded YAML content.
var builtinProfiles = map[string][]byte{
	"strict":  strictYAML,
	"lenient": lenientYAML,
	"draft":   draftYAML,
}
