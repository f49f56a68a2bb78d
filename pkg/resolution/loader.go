package resolution

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadKnowledgeFile reads and validates a YAML knowledge base file.
// Unknown fields are rejected so that typos in templates surface at load.
func LoadKnowledgeFile(path string) (KnowledgeData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KnowledgeData{}, fmt.Errorf("reading knowledge base %s: %w", path, err)
	}
	return ParseKnowledge(raw)
}

// ParseKnowledge decodes and validates YAML knowledge base data.
func ParseKnowledge(raw []byte) (KnowledgeData, error) {
	var data KnowledgeData
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return KnowledgeData{}, fmt.Errorf("parsing knowledge base: %w", err)
	}
	if err := data.Validate(); err != nil {
		return KnowledgeData{}, err
	}
	return data, nil
}
