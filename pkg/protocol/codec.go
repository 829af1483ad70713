package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/heitortanoue/fractalworker/pkg/model"
)

// PixelSize is the wire size of one PixelIntensity (two big-endian float32)
const PixelSize = 8

// EncodeRequest returns the JSON text {"FragmentRequest": req}
func EncodeRequest(req FragmentRequest) ([]byte, error) {
	return encodeTagged(RequestKey, req)
}

// EncodeTask returns the JSON text {"FragmentTask": task}
func EncodeTask(task FragmentTask) ([]byte, error) {
	return encodeTagged(TaskKey, task)
}

// EncodeResult returns the JSON text {"FragmentResult": result}
func EncodeResult(result FragmentResult) ([]byte, error) {
	return encodeTagged(ResultKey, result)
}

// EncodePixels serialises pixels as zn,count pairs of big-endian IEEE-754 float32
func EncodePixels(pixels []model.PixelIntensity) []byte {
	buf := make([]byte, len(pixels)*PixelSize)
	for i, p := range pixels {
		off := i * PixelSize
		binary.BigEndian.PutUint32(buf[off:], math.Float32bits(p.Zn))
		binary.BigEndian.PutUint32(buf[off+4:], math.Float32bits(p.Count))
	}
	return buf
}

// DecodePixels is the inverse of EncodePixels
func DecodePixels(data []byte) ([]model.PixelIntensity, error) {
	if len(data)%PixelSize != 0 {
		return nil, &ProtocolError{Reason: fmt.Sprintf("pixel payload of %d bytes is not a multiple of %d", len(data), PixelSize)}
	}

	pixels := make([]model.PixelIntensity, len(data)/PixelSize)
	for i := range pixels {
		off := i * PixelSize
		pixels[i] = model.PixelIntensity{
			Zn:    math.Float32frombits(binary.BigEndian.Uint32(data[off:])),
			Count: math.Float32frombits(binary.BigEndian.Uint32(data[off+4:])),
		}
	}
	return pixels, nil
}

// DecodeRequest parses a request frame. A request carries no trailing data.
func DecodeRequest(f Frame) (FragmentRequest, error) {
	var req FragmentRequest
	if err := decodeTagged(f.JSON, RequestKey, &req, "worker_name", "maximal_work_load"); err != nil {
		return FragmentRequest{}, err
	}
	if len(f.Data) != 0 {
		return FragmentRequest{}, &ProtocolError{Reason: "request frame carries trailing data"}
	}
	return req, nil
}

// DecodeTask parses a task frame. The trailing data is the task's id bytes and
// is returned as-is. Every task field is required and the resolution must be
// at least 1x1.
func DecodeTask(f Frame) (FragmentTask, []byte, error) {
	var task FragmentTask
	err := decodeTagged(f.JSON, TaskKey, &task, "id", "max_iteration", "resolution", "range", "fractal")
	if err != nil {
		return FragmentTask{}, nil, err
	}
	if err := checkTask(task); err != nil {
		return FragmentTask{}, nil, err
	}
	return task, f.Data, nil
}

func checkTask(task FragmentTask) error {
	if task.Resolution.Nx == 0 || task.Resolution.Ny == 0 {
		return &ProtocolError{Reason: fmt.Sprintf("task resolution %dx%d has no pixels", task.Resolution.Nx, task.Resolution.Ny)}
	}
	if task.Fractal.Descriptor == nil {
		return &ProtocolError{Reason: "task has no fractal descriptor"}
	}
	return nil
}

// DecodeResult parses a result frame. The trailing data is split into
// result.ID.Count id bytes followed by the pixel payload.
func DecodeResult(f Frame) (FragmentResult, []byte, []model.PixelIntensity, error) {
	var result FragmentResult
	if err := decodeTagged(f.JSON, ResultKey, &result, "id", "resolution", "range", "pixels"); err != nil {
		return FragmentResult{}, nil, nil, err
	}

	idLen := uint64(result.ID.Count)
	if idLen > uint64(len(f.Data)) {
		return FragmentResult{}, nil, nil, &ProtocolError{Reason: "result frame shorter than its id span"}
	}

	pixels, err := DecodePixels(f.Data[idLen:])
	if err != nil {
		return FragmentResult{}, nil, nil, err
	}
	return result, f.Data[:idLen], pixels, nil
}

func encodeTagged(key string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(map[string]interface{}{key: v})
	if err != nil {
		return nil, &ProtocolError{Reason: "encode " + key, Err: err}
	}
	return data, nil
}

// decodeTagged unmarshals the body under key into v. Each of the required
// fields must be present and not null.
func decodeTagged(data []byte, key string, v interface{}, required ...string) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &ProtocolError{Reason: "invalid json", Err: err}
	}

	body, ok := envelope[key]
	if !ok {
		return &ProtocolError{Reason: "missing " + key + " field"}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &ProtocolError{Reason: "decode " + key, Err: err}
	}

	if len(required) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return &ProtocolError{Reason: "decode " + key, Err: err}
		}
		for _, name := range required {
			raw, ok := fields[name]
			if !ok || string(raw) == "null" {
				return &ProtocolError{Reason: fmt.Sprintf("%s is missing required field %s", key, name)}
			}
		}
	}
	return nil
}
