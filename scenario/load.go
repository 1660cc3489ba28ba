package scenario

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/jsonc"
)

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// Schema describes the scenario file format as a JSON schema.
func Schema() *jsonschema.Schema {
	return reflector.Reflect(&Scenario{})
}

// Load reads a scenario from a JSONC file. Line comments, block
// comments and trailing commas are allowed. The scenario is normalized
// and validated before it is returned.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes scenario JSONC from memory.
func Parse(data []byte) (*Scenario, error) {
	stripped := jsonc.ToJSON(data)

	var s Scenario
	if err := json.Unmarshal(stripped, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}
