// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sampling defines the boundary with the diffusion model: a Sampler that runs a
// partial denoising trajectory starting from an initial image, and a Decoder that maps
// the sampled latents back to pixel space.
//
// Implementations are registered by name (see Register), usually during the
// initialization of the package that implements them, and created with New.
//
// This package includes the "interpolation" sampler, a baseline that skips the model
// altogether and simply up-scales the input with Lanczos resampling. The "plms" name is
// reserved, but not implemented.
package sampling

import (
	"context"
	"slices"
	"sort"

	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/pkg/errors"
)

// ErrNotImplemented is returned by samplers that are declared but not supported.
var ErrNotImplemented = errors.New("not implemented")

// Sampler runs the reverse diffusion process.
type Sampler interface {
	// MakeSchedule configures the step schedule of the sampler. It must be called once
	// before Sample.
	MakeSchedule(numSteps int, eta float64) error

	// Sample encodes the initial images with encodeSteps noising steps and denoises them
	// back, returning the batch of latent samples.
	//
	// shape is the (channels, height, width) of each latent, and initImages is shaped
	// (batchSize, channels, height, width), with values in [-1, 1].
	Sample(ctx context.Context, encodeSteps, batchSize int, shape [3]int,
		initImages *featuremaps.FeatureMap[float32], eta float64) (*featuremaps.FeatureMap[float32], error)
}

// Decoder maps latents to pixel space, with values in [-1, 1].
type Decoder interface {
	Decode(ctx context.Context, latents *featuremaps.FeatureMap[float32]) (*featuremaps.FeatureMap[float32], error)
}

// Options passed to a sampler Constructor.
type Options struct {
	// Seed for the random number generator of the sampler, for reproducible sampling.
	Seed int64

	// Checkpoint and ModelConfig are paths to the model weights and its configuration.
	// Their interpretation is up to the sampler.
	Checkpoint, ModelConfig string
}

// Constructor creates a Sampler and its matching Decoder.
type Constructor func(opts Options) (Sampler, Decoder, error)

var registeredConstructors = make(map[string]Constructor)

// Register a sampler with the given name.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	registeredConstructors[name] = constructor
}

// Registered returns the names of the registered samplers, sorted.
func Registered() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the sampler registered with the given name.
func New(name string, opts Options) (Sampler, Decoder, error) {
	constructor, found := registeredConstructors[name]
	if !found {
		return nil, nil, errors.Errorf("can't find sampler %q, registered samplers are %q", name, Registered())
	}
	sampler, decoder, err := constructor(opts)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "failed to create sampler %q", name)
	}
	return sampler, decoder, nil
}

// CheckSampleArgs validates the arguments of Sampler.Sample against the configured
// number of steps. Implementations can use it to report consistent errors.
func CheckSampleArgs(numSteps, encodeSteps, batchSize int, shape [3]int, initImages *featuremaps.FeatureMap[float32]) error {
	if numSteps <= 0 {
		return errors.New("sampler schedule not configured, call MakeSchedule first")
	}
	if encodeSteps < 0 || encodeSteps > numSteps {
		return errors.Errorf("encodeSteps=%d out of range for a schedule of %d steps", encodeSteps, numSteps)
	}
	if initImages == nil {
		return errors.New("missing initial images")
	}
	if initImages.Batch() != batchSize {
		return errors.Errorf("batchSize=%d but initial images shaped %s", batchSize, initImages.Shape())
	}
	if !slices.Equal(initImages.Shape().Dimensions[1:], shape[:]) {
		return errors.Errorf("target shape %v doesn't match the initial images shape %s", shape, initImages.Shape())
	}
	return nil
}

func init() {
	Register("plms", func(Options) (Sampler, Decoder, error) {
		return nil, nil, errors.Wrap(ErrNotImplemented, "PLMS sampler not (yet) supported")
	})
}
