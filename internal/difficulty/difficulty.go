// Package difficulty computes performance points and star ratings for a play.
//
// The numeric models live in an external calculation service; this package
// selects the per-mode calculator, computes accuracy locally and derives the
// full-combo variant of a play.
package difficulty

import (
	"context"
	"errors"
	"fmt"

	"github.com/pable/go-osu-metrics/internal/model"
)

// ErrUnsupportedMode is returned when no calculator is registered for a mode.
var ErrUnsupportedMode = errors.New("unsupported game mode")

// Input is a play to be scored against a beatmap.
type Input struct {
	Beatmap    []byte // raw .osu file
	Mods       []string
	Combo      int
	Statistics model.Statistics
}

// FullCombo returns the input as if every miss had been a great and the
// whole map had been comboed.
func (in Input) FullCombo(maxCombo int) Input {
	fc := in
	fc.Mods = append([]string(nil), in.Mods...)
	fc.Statistics = FullComboStatistics(in.Statistics)
	if maxCombo > 0 {
		fc.Combo = maxCombo
	}
	return fc
}

// Calculator scores one play in a single mode.
type Calculator interface {
	Performance(ctx context.Context, in Input) (model.Performance, error)
}

// StarRater computes the star rating of a beatmap under a mod combination.
type StarRater interface {
	Stars(ctx context.Context, beatmap []byte, mods []string) (float64, error)
}

// Registry maps a mode to its calculator.
type Registry map[model.Mode]Calculator

// For returns the calculator for mode.
func (r Registry) For(mode model.Mode) (Calculator, error) {
	c, ok := r[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	return c, nil
}

// PerformanceService computes raw pp for a mode. Accuracy is not its concern.
type PerformanceService interface {
	PP(ctx context.Context, mode model.Mode, in Input) (float64, error)
}

// NewRegistry registers a calculator for every mode backed by svc.
func NewRegistry(svc PerformanceService) Registry {
	r := make(Registry, len(model.Modes))
	for _, m := range model.Modes {
		r[m] = &modeCalculator{mode: m, svc: svc}
	}
	return r
}

type modeCalculator struct {
	mode model.Mode
	svc  PerformanceService
}

func (c *modeCalculator) Performance(ctx context.Context, in Input) (model.Performance, error) {
	pp, err := c.svc.PP(ctx, c.mode, in)
	if err != nil {
		return model.Performance{}, err
	}
	return model.Performance{
		PP:       pp,
		Accuracy: Accuracy(c.mode, in.Statistics),
	}, nil
}
