package protocol

import (
	"github.com/heitortanoue/fractalworker/pkg/model"
)

// Top-level JSON keys of the three message kinds
const (
	RequestKey = "FragmentRequest"
	TaskKey    = "FragmentTask"
	ResultKey  = "FragmentResult"
)

// FragmentRequest announces a worker and how much work it accepts
type FragmentRequest struct {
	WorkerName      string `json:"worker_name"`
	MaximalWorkLoad uint32 `json:"maximal_work_load"`
}

// FragmentTask is one unit of work sent by the distributor
type FragmentTask struct {
	ID           model.U8Data            `json:"id"`
	MaxIteration uint32                  `json:"max_iteration"`
	Resolution   model.Resolution        `json:"resolution"`
	Range        model.Range             `json:"range"`
	Fractal      model.FractalDescriptor `json:"fractal"`
}

// NewFragmentTask builds a task
func NewFragmentTask(id model.U8Data, maxIteration uint32, resolution model.Resolution, area model.Range, fractal model.Descriptor) FragmentTask {
	return FragmentTask{
		ID:           id,
		MaxIteration: maxIteration,
		Resolution:   resolution,
		Range:        area,
		Fractal:      model.NewFractalDescriptor(fractal),
	}
}

// FragmentResult describes a computed fragment; the pixel values travel after it
// in the same frame
type FragmentResult struct {
	ID         model.U8Data     `json:"id"`
	Resolution model.Resolution `json:"resolution"`
	Range      model.Range      `json:"range"`
	Pixels     model.PixelData  `json:"pixels"`
}

// FragmentRequestBuilder builds a FragmentRequest, failing on missing fields
type FragmentRequestBuilder struct {
	workerName  *string
	maxWorkLoad *uint32
}

// NewFragmentRequestBuilder starts an empty builder
func NewFragmentRequestBuilder() *FragmentRequestBuilder {
	return &FragmentRequestBuilder{}
}

// WithWorkerName sets the name announced to the distributor
func (b *FragmentRequestBuilder) WithWorkerName(name string) *FragmentRequestBuilder {
	b.workerName = &name
	return b
}

// WithMaxWorkLoad sets the maximal work load the worker accepts
func (b *FragmentRequestBuilder) WithMaxWorkLoad(load uint32) *FragmentRequestBuilder {
	b.maxWorkLoad = &load
	return b
}

// Build returns the request or a ValidationError naming the first missing field
func (b *FragmentRequestBuilder) Build() (FragmentRequest, error) {
	if b.workerName == nil {
		return FragmentRequest{}, missing("worker_name")
	}
	if b.maxWorkLoad == nil {
		return FragmentRequest{}, missing("maximal_work_load")
	}

	return FragmentRequest{
		WorkerName:      *b.workerName,
		MaximalWorkLoad: *b.maxWorkLoad,
	}, nil
}

// FragmentResultBuilder builds a FragmentResult, failing on missing fields
type FragmentResultBuilder struct {
	id         *model.U8Data
	resolution *model.Resolution
	area       *model.Range
	pixels     *model.PixelData
}

// NewFragmentResultBuilder starts an empty builder
func NewFragmentResultBuilder() *FragmentResultBuilder {
	return &FragmentResultBuilder{}
}

// WithID sets the id span echoed from the task
func (b *FragmentResultBuilder) WithID(offset, count uint32) *FragmentResultBuilder {
	b.id = &model.U8Data{Offset: offset, Count: count}
	return b
}

// WithResolution sets the pixel grid of the fragment
func (b *FragmentResultBuilder) WithResolution(nx, ny uint16) *FragmentResultBuilder {
	b.resolution = &model.Resolution{Nx: nx, Ny: ny}
	return b
}

// WithRange sets the area of the complex plane that was computed
func (b *FragmentResultBuilder) WithRange(minX, minY, maxX, maxY float64) *FragmentResultBuilder {
	r := model.NewRange(minX, minY, maxX, maxY)
	b.area = &r
	return b
}

// WithPixels sets the pixel span, usually starting at the end of the id span
func (b *FragmentResultBuilder) WithPixels(offset, count uint32) *FragmentResultBuilder {
	b.pixels = &model.PixelData{Offset: offset, Count: count}
	return b
}

// Build returns the result or a ValidationError naming the first missing field
func (b *FragmentResultBuilder) Build() (FragmentResult, error) {
	switch {
	case b.id == nil:
		return FragmentResult{}, missing("id")
	case b.resolution == nil:
		return FragmentResult{}, missing("resolution")
	case b.area == nil:
		return FragmentResult{}, missing("range")
	case b.pixels == nil:
		return FragmentResult{}, missing("pixels")
	}

	return FragmentResult{
		ID:         *b.id,
		Resolution: *b.resolution,
		Range:      *b.area,
		Pixels:     *b.pixels,
	}, nil
}
