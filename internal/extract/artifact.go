package extract

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteArtifact serializes the artifact to a JSON file.
func WriteArtifact(artifact *Artifact, path string) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return nil
}

// ReadArtifact loads an artifact from a JSON file.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	// File paths are carried by the parsed_code keys, not the unit JSON.
	for path, pf := range artifact.ParsedCode {
		for i := range pf.ASTItems {
			pf.ASTItems[i].FilePath = path
		}
		for i := range pf.FileChunks {
			pf.FileChunks[i].FilePath = path
		}
		artifact.ParsedCode[path] = pf
	}
	return &artifact, nil
}
