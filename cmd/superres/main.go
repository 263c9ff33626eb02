// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// superres up-scales (4x) a directory of images, in batches, skipping the images already
// present in the output directory.
//
// Usage:
//
//	superres -init_img <input_dir> -outdir <output_dir> [-config_file config.yaml] [flags...]
//
// Outputs are written to <output_dir>/samples, and, unless -skip_grid is set, a grid with all
// the generated images to <output_dir>/grid-NNNN.png. See -help for all the flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gomlx/superres/pkg/config"
	"github.com/gomlx/superres/pkg/quality"
	"github.com/gomlx/superres/pkg/sampling"
	"github.com/gomlx/superres/pkg/superres"
	"github.com/gomlx/superres/ui/commandline"
	"k8s.io/klog/v2"
)

var flagQuiet = flag.Bool("quiet", false, "Disable the progress bar and the summary.")

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -init_img <dir> [flags...]\n\nSamplers available: %s\n\nFlags:\n",
			os.Args[0], strings.Join(sampling.Registered(), ", "))
		flag.PrintDefaults()
	}
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sampler, decoder, err := sampling.New(cfg.SamplerName(), sampling.Options{
		Seed:        cfg.Seed,
		Checkpoint:  cfg.Checkpoint,
		ModelConfig: cfg.ModelConfig,
	})
	if err != nil {
		return err
	}
	runner, err := superres.New(cfg, sampler, decoder, quality.LaplacianVariance{})
	if err != nil {
		return err
	}
	if !*flagQuiet {
		commandline.AttachProgressBar(runner, os.Stdout)
	}
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if !*flagQuiet {
		commandline.ReportResult(os.Stdout, result)
	}
	fmt.Printf("Your samples are ready and waiting for you here:\n%s\n\nEnjoy.\n", cfg.OutDir)
	return nil
}
