// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package schedule maps the normalized "strength" of a partial-noising run to the
// number of steps of the sampler schedule used to encode the input image.
package schedule

import (
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidStrength is returned for strengths outside of [0.0, 1.0].
	ErrInvalidStrength = errors.New("strength must be in [0.0, 1.0]")

	// ErrInvalidNumSteps is returned for schedules without any step.
	ErrInvalidNumSteps = errors.New("number of schedule steps must be > 0")
)

// ValidateStrength returns an error wrapping ErrInvalidStrength if strength is not in [0, 1].
func ValidateStrength(strength float64) error {
	if math.IsNaN(strength) || strength < 0 || strength > 1 {
		return errors.Wrapf(ErrInvalidStrength, "can only work with strength in [0.0, 1.0], got %g", strength)
	}
	return nil
}

// EncodingSteps returns the number of noising steps, floor(strength * numSteps), to apply
// to the input before regeneration.
//
// A strength of 0 keeps the trajectory at the original image (minimal alteration), and 1
// destroys all the information of the input before regenerating it. Invalid arguments
// are reported before any computation.
func EncodingSteps(numSteps int, strength float64) (int, error) {
	if numSteps <= 0 {
		return 0, errors.Wrapf(ErrInvalidNumSteps, "got %d", numSteps)
	}
	if err := ValidateStrength(strength); err != nil {
		return 0, err
	}
	return int(math.Floor(strength * float64(numSteps))), nil
}
