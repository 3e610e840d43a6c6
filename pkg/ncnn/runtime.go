package ncnn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Laudkyle/NaviAudio/pkg/classify"
)

// ErrUnavailable is returned when the binary was built without ncnn.
var ErrUnavailable = errors.New("ncnn: runtime not available in this build")

// dims is an input layout in ncnn order.
type dims struct {
	w, h, c int
	rank    int
}

// layout maps a tensor shape onto ncnn dims.
func layout(shape classify.Shape) (dims, error) {
	s := []int(shape)
	for len(s) > 1 && s[0] == 1 {
		s = s[1:]
	}
	switch len(s) {
	case 1:
		return dims{w: s[0], h: 1, c: 1, rank: 1}, nil
	case 2:
		return dims{w: s[1], h: s[0], c: 1, rank: 2}, nil
	case 3:
		return dims{w: s[2], h: s[1], c: s[0], rank: 3}, nil
	}
	return dims{}, fmt.Errorf("ncnn: shape %v has more than 3 non-unit dimensions", shape)
}

type engine interface {
	run(input string, in dims, data []float32, outputs []string) ([][]float32, error)
	close() error
}

var openEngine func(param, bin []byte, threads int) (engine, error)

// Runtime implements classify.Runtime for ncnn models.
type Runtime struct{}

var _ classify.Runtime = Runtime{}

// Name implements classify.Runtime.
func (Runtime) Name() string { return "ncnn" }

// Load builds a net from the .param text and .bin weights.
func (Runtime) Load(desc *classify.ModelDescriptor, graph, weights []byte) (classify.Model, error) {
	if len(graph) == 0 {
		return nil, fmt.Errorf("ncnn: %s: empty param data", desc.Name)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("ncnn: %s: empty bin data", desc.Name)
	}
	in, err := layout(desc.Input.Shape)
	if err != nil {
		return nil, err
	}
	eng, err := openEngine(graph, weights, desc.Threads)
	if err != nil {
		return nil, err
	}
	return &model{desc: desc, in: in, eng: eng, outputs: desc.OutputBlobs()}, nil
}

type model struct {
	desc    *classify.ModelDescriptor
	in      dims
	outputs []string

	mu  sync.Mutex
	eng engine
}

func (m *model) Run(t *classify.Tensor) (map[string][]float32, error) {
	if !t.Shape().Equal(m.desc.Input.Shape) {
		return nil, fmt.Errorf("ncnn: input shape %v, model wants %v", t.Shape(), m.desc.Input.Shape)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eng == nil {
		return nil, errors.New("ncnn: model closed")
	}
	vals, err := m.eng.run(m.desc.Input.Name, m.in, t.Data(), m.outputs)
	if err != nil {
		return nil, err
	}
	if len(vals) != len(m.outputs) {
		return nil, fmt.Errorf("ncnn: got %d outputs, want %d", len(vals), len(m.outputs))
	}
	out := make(map[string][]float32, len(vals))
	for i, name := range m.outputs {
		out[name] = vals[i]
	}
	return out, nil
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eng == nil {
		return nil
	}
	err := m.eng.close()
	m.eng = nil
	return err
}
