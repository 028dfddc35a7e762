package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// policyFile mirrors the YAML quality policy. Pointer fields distinguish
// unset keys, which keep their defaults.
type policyFile struct {
	AllowFlags []int    `yaml:"allow_flags"`
	ChunkSize  *float64 `yaml:"chunk_size"`
	Ranges     struct {
		Longitude   *rangeFile `yaml:"longitude"`
		Latitude    *rangeFile `yaml:"latitude"`
		Depth       *rangeFile `yaml:"depth"`
		Temperature *rangeFile `yaml:"temperature"`
		Salinity    *rangeFile `yaml:"salinity"`
	} `yaml:"ranges"`
	Missing struct {
		Depth       *float64 `yaml:"depth"`
		Temperature *float64 `yaml:"temperature"`
		Salinity    *float64 `yaml:"salinity"`
	} `yaml:"missing"`
}

type rangeFile struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// LoadPolicy reads a YAML quality policy from path and applies it over
// domain.DefaultPolicy. Unknown keys are an error.
func LoadPolicy(path string) (domain.QualityPolicy, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.QualityPolicy{}, fmt.Errorf("open QUALITY_CONFIG: %w", err)
	}
	defer f.Close()

	var pf policyFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return domain.QualityPolicy{}, fmt.Errorf("parse QUALITY_CONFIG %s: %w", path, err)
	}

	p := domain.DefaultPolicy()
	if pf.AllowFlags != nil {
		p.AllowFlags = domain.FlagSet(pf.AllowFlags)
	}
	if pf.ChunkSize != nil {
		p.ChunkSize = *pf.ChunkSize
	}
	pf.Ranges.Longitude.apply(&p.Ranges.Longitude)
	pf.Ranges.Latitude.apply(&p.Ranges.Latitude)
	pf.Ranges.Depth.apply(&p.Ranges.Depth)
	pf.Ranges.Temperature.apply(&p.Ranges.Temperature)
	pf.Ranges.Salinity.apply(&p.Ranges.Salinity)
	setIf(&p.Missing.Depth, pf.Missing.Depth)
	setIf(&p.Missing.Temperature, pf.Missing.Temperature)
	setIf(&p.Missing.Salinity, pf.Missing.Salinity)

	if err := p.Validate(); err != nil {
		return domain.QualityPolicy{}, fmt.Errorf("QUALITY_CONFIG %s: %w", path, err)
	}
	return p, nil
}

func (r *rangeFile) apply(dst *domain.Range) {
	if r == nil {
		return
	}
	setIf(&dst.Min, r.Min)
	setIf(&dst.Max, r.Max)
}

func setIf(dst, v *float64) {
	if v != nil {
		*dst = *v
	}
}
