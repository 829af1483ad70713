package worker

import (
	"github.com/heitortanoue/fractalworker/pkg/fractal"
	"github.com/heitortanoue/fractalworker/pkg/model"
	"github.com/heitortanoue/fractalworker/pkg/protocol"
)

// ProcessTask computes the fragment described by task and builds the result
// that describes it. The pixel span starts right after the task's id span and
// always claims nx*ny pixels, even when the sweep produced one row or column
// more or less.
func ProcessTask(task protocol.FragmentTask) (protocol.FragmentResult, []model.PixelIntensity, error) {
	generator, err := fractal.Dispatch(task.Fractal.Descriptor)
	if err != nil {
		return protocol.FragmentResult{}, nil, err
	}

	pixels := generator.Generate(task.MaxIteration, task.Resolution, task.Range)

	result, err := protocol.NewFragmentResultBuilder().
		WithID(task.ID.Offset, task.ID.Count).
		WithResolution(task.Resolution.Nx, task.Resolution.Ny).
		WithRange(task.Range.Min.X, task.Range.Min.Y, task.Range.Max.X, task.Range.Max.Y).
		WithPixels(task.ID.End(), task.Resolution.PixelCount()).
		Build()
	if err != nil {
		return protocol.FragmentResult{}, nil, err
	}

	return result, pixels, nil
}
