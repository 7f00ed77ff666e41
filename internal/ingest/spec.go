package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// DatasetSpec describes one dataset as maintained by the surrounding
// workflow: where its raw batch lives and any dedup parameter overrides.
type DatasetSpec struct {
	Metadata struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Spec struct {
		Storage struct {
			Bucket string `yaml:"bucket"`
			Path   string `yaml:"path"`
			Format string `yaml:"format"`
		} `yaml:"storage"`
		Deduplication *DedupOverrides `yaml:"deduplication"`
	} `yaml:"spec"`
}

// DedupOverrides optionally overrides dedup parameters for one dataset.
// Pointer fields distinguish absent from zero.
type DedupOverrides struct {
	ShingleSize   *int     `yaml:"shingle_size"`
	SignatureSize *int     `yaml:"signature_size"`
	BandCount     *int     `yaml:"band_count"`
	RowsPerBand   *int     `yaml:"rows_per_band"`
	MaxDistance   *float64 `yaml:"max_distance"`
	CaseFold      *bool    `yaml:"case_fold"`
}

// Apply copies the set overrides onto params.
func (o *DedupOverrides) Apply(p *domain.Params) {
	if o == nil {
		return
	}
	if o.ShingleSize != nil {
		p.ShingleSize = *o.ShingleSize
	}
	if o.SignatureSize != nil {
		p.SignatureSize = *o.SignatureSize
	}
	if o.BandCount != nil {
		p.BandCount = *o.BandCount
	}
	if o.RowsPerBand != nil {
		p.RowsPerBand = *o.RowsPerBand
	}
	if o.MaxDistance != nil {
		p.MaxDistance = *o.MaxDistance
	}
	if o.CaseFold != nil {
		p.CaseFold = *o.CaseFold
	}
}

// LoadDatasetSpec reads a dataset spec YAML file. Missing name or storage
// coordinates are configuration errors: the pipeline cannot locate a
// batch without them.
func LoadDatasetSpec(path string) (*DatasetSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset spec: %w", err)
	}

	var spec DatasetSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("%w: dataset spec %s is not valid YAML: %v", domain.ErrConfiguration, path, err)
	}
	if spec.Metadata.Name == "" {
		return nil, fmt.Errorf("%w: dataset spec %s has no metadata.name", domain.ErrConfiguration, path)
	}
	if spec.Spec.Storage.Bucket == "" || spec.Spec.Storage.Path == "" {
		return nil, fmt.Errorf("%w: dataset spec %s has incomplete storage coordinates", domain.ErrConfiguration, path)
	}
	return &spec, nil
}
