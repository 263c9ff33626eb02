// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"

	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Precision selects the numerical precision of the values exchanged with the model.
type Precision int

const (
	// PrecisionFull keeps float32 values as they are.
	PrecisionFull Precision = iota

	// PrecisionAutocast rounds the values fed to and read from the model to IEEE 754
	// half-precision, as mixed-precision inference does.
	PrecisionAutocast
)

var precisionNames = []string{"full", "autocast"}

// String implements fmt.Stringer.
func (p Precision) String() string {
	if p < 0 || int(p) >= len(precisionNames) {
		return "unknown"
	}
	return precisionNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p Precision) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so it can be used with flag.TextVar and in YAML files.
func (p *Precision) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for ii, candidate := range precisionNames {
		if name == candidate {
			*p = Precision(ii)
			return nil
		}
	}
	return errors.Errorf("unknown precision %q, valid values are %q", string(text), precisionNames)
}

// Round returns v rounded to the precision.
func (p Precision) Round(v float32) float32 {
	if p == PrecisionAutocast {
		return float16.Fromfloat32(v).Float32()
	}
	return v
}

// Apply returns f with all values rounded to the precision. For PrecisionFull f itself is returned.
func (p Precision) Apply(f *featuremaps.FeatureMap[float32]) *featuremaps.FeatureMap[float32] {
	if p == PrecisionFull {
		return f
	}
	return f.Map(p.Round)
}
