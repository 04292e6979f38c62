package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	trackersdk "testtracker/sdk/go"
)

// DefaultArtifactPath is where unpublished batches are written.
const DefaultArtifactPath = "testtracker-results.json"

// Record is one buffered outcome. Names are kept as given; IDs are filled in
// only when they were configured explicitly or resolved at publish time.
type Record struct {
	Test   string            `json:"test"`
	Status trackersdk.Status `json:"status_id"`
	Target Target            `json:"target"`

	CaseID       int64  `json:"case_id,omitempty"`
	Case         string `json:"case,omitempty"`
	AssignedToID int64  `json:"assignedto_id,omitempty"`
	AssignedTo   string `json:"assignedto,omitempty"`
	Category     string `json:"category,omitempty"`

	Comment string `json:"comment,omitempty"`
	Version string `json:"version,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
	Defects string `json:"defects,omitempty"`

	CreateSection  bool `json:"create_section,omitempty"`
	CreateTestCase bool `json:"create_test_case,omitempty"`
}

// Artifact is the on-disk form of a batch.
type Artifact struct {
	BatchID     string    `json:"batch_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Run         RunConfig `json:"run"`
	Records     []Record  `json:"records"`
}

// WriteArtifact writes the batch as indented JSON, creating parent directories.
func WriteArtifact(path string, a Artifact) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}
	if a.Records == nil {
		a.Records = []Record{}
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// ReadArtifact loads a batch written by a previous run.
func ReadArtifact(path string) (Artifact, error) {
	var a Artifact
	data, err := os.ReadFile(path)
	if err != nil {
		return a, fmt.Errorf("read artifact: %w", err)
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("%w: artifact %s: %v", trackersdk.ErrSerialization, path, err)
	}
	return a, nil
}
