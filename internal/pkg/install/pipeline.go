// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"
)

// ErrDeclined is returned by a stage when the operator declines to proceed.
//
// The pipeline treats it as a clean abort: cleanup runs, no error is
// propagated, and no later stage executes.
var ErrDeclined = errors.New("declined by operator")

// StageStatus describes the outcome of a single stage.
type StageStatus int

// Stage outcomes.
const (
	StageSuccess StageStatus = iota
	StageSkipped
	StageFailed
)

func (s StageStatus) String() string {
	switch s {
	case StageSuccess:
		return "ok"
	case StageSkipped:
		return "skipped"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageResult records the outcome of a stage for the final report.
type StageResult struct {
	Name   string
	Status StageStatus
	Reason string
	Err    error
}

// Stage is a single named step of the pipeline.
//
// Skip is consulted before Run; a true result records the stage as skipped
// with the given reason. Optional stages log their failure and let the
// pipeline continue.
type Stage struct {
	Name     string
	Skip     func() (bool, string)
	Run      func(context.Context) error
	Optional bool
}

// Pipeline executes stages in order, aborting on the first failure.
//
// The cleanup function runs exactly once on every exit path: completion,
// stage failure, operator abort and context cancellation.
type Pipeline struct {
	logger      *zap.Logger
	cleanup     func()
	cleanupOnce sync.Once
	stages      []Stage
	results     []StageResult
}

// NewPipeline builds a pipeline over the given stages.
func NewPipeline(logger *zap.Logger, cleanup func(), stages ...Stage) *Pipeline {
	return &Pipeline{
		logger:  logger,
		cleanup: cleanup,
		stages:  stages,
	}
}

// Run executes the stages in order.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.runCleanup()

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			p.record(StageResult{Name: stage.Name, Status: StageFailed, Err: err})

			return fmt.Errorf("installation interrupted before stage %q: %w", stage.Name, err)
		}

		if stage.Skip != nil {
			if skip, reason := stage.Skip(); skip {
				p.logger.Info("skipping stage", zap.String("stage", stage.Name), zap.String("reason", reason))
				p.record(StageResult{Name: stage.Name, Status: StageSkipped, Reason: reason})

				continue
			}
		}

		p.logger.Info("running stage", zap.String("stage", stage.Name))

		if err := stage.Run(ctx); err != nil {
			if errors.Is(err, ErrDeclined) {
				p.logger.Info("installation aborted by the operator", zap.String("stage", stage.Name))
				p.record(StageResult{Name: stage.Name, Status: StageSkipped, Reason: "declined by operator"})

				return nil
			}

			p.record(StageResult{Name: stage.Name, Status: StageFailed, Err: err})

			if stage.Optional {
				p.logger.Warn("optional stage failed, continuing",
					zap.String("stage", stage.Name), zap.Error(err))

				continue
			}

			return fmt.Errorf("stage %q failed: %w", stage.Name, err)
		}

		p.record(StageResult{Name: stage.Name, Status: StageSuccess})
	}

	return nil
}

// Results returns the recorded outcome of every stage reached so far.
func (p *Pipeline) Results() []StageResult {
	return p.results
}

// Summary formats the stage outcomes as a short multi-line report.
func (p *Pipeline) Summary() string {
	lines := xslices.Map(p.results, func(r StageResult) string {
		line := fmt.Sprintf("  %-14s %s", r.Name, r.Status)

		switch {
		case r.Err != nil:
			line += ": " + r.Err.Error()
		case r.Reason != "":
			line += ": " + r.Reason
		}

		return line
	})

	return strings.Join(lines, "\n")
}

func (p *Pipeline) record(result StageResult) {
	p.results = append(p.results, result)
}

func (p *Pipeline) runCleanup() {
	p.cleanupOnce.Do(func() {
		if p.cleanup != nil {
			p.cleanup()
		}
	})
}
