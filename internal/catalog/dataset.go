package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed data/parts.json
var embeddedDataset []byte

// ParseDataset decodes a dataset document.
func ParseDataset(raw []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if len(ds.Parts) == 0 {
		return nil, fmt.Errorf("dataset has no parts")
	}
	return &ds, nil
}

// LoadDataset reads the dataset from path, or the embedded copy when path is empty.
func LoadDataset(path string) (*Dataset, error) {
	if path == "" {
		return ParseDataset(embeddedDataset)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ParseDataset(raw)
}
