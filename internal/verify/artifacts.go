package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifacts names the three files persisted after a failed verification:
// the expected document, the current document, and a structured diagnostic.
// All share one timestamp prefix so a failed attempt stays grouped on disk.
type Artifacts struct {
	ExpectedPath   string
	CurrentPath    string
	DiagnosticPath string
}

// WriteArtifacts persists the audit artifacts for a failed verification
// attempt under dir, creating it if needed.
func WriteArtifacts(dir, expected, current string, result Result) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	prefix := time.Now().UTC().Format("20060102T150405.000Z")
	artifacts := &Artifacts{
		ExpectedPath:   filepath.Join(dir, prefix+"-expected.txt"),
		CurrentPath:    filepath.Join(dir, prefix+"-current.txt"),
		DiagnosticPath: filepath.Join(dir, prefix+"-diagnostic.json"),
	}

	if err := os.WriteFile(artifacts.ExpectedPath, []byte(expected), 0o644); err != nil {
		return nil, fmt.Errorf("write expected document: %w", err)
	}
	if err := os.WriteFile(artifacts.CurrentPath, []byte(current), 0o644); err != nil {
		return nil, fmt.Errorf("write current document: %w", err)
	}

	diagnostic, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal diagnostic: %w", err)
	}
	if err := os.WriteFile(artifacts.DiagnosticPath, diagnostic, 0o644); err != nil {
		return nil, fmt.Errorf("write diagnostic: %w", err)
	}

	return artifacts, nil
}
