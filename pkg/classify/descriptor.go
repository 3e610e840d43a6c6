package classify

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-yaml"
)

// Weight encodings.
const (
	EncodingRaw    = "raw"
	EncodingBase64 = "base64"
)

// Output activations.
const (
	ActivationSoftmax = "softmax"
	ActivationSigmoid = "sigmoid"
	ActivationNone    = "none"
)

// ModelDescriptor describes an on-device model: where its artifacts are,
// what input it takes and how to read its outputs.
//
//	name: navi-commands
//	runtime: onnx
//	weights: commands.onnx
//	input: {name: input, shape: [1, 98, 80]}
//	features: {kind: fbank, sample_rate: 16000, cmvn: true}
//	outputs:
//	  - {field: command, blob: logits, labels: [stop, go, left, right]}
type ModelDescriptor struct {
	Name    string `yaml:"name" json:"name"`
	Runtime string `yaml:"runtime" json:"runtime"`
	// Graph is the network definition for runtimes that keep it apart from
	// the weights (ncnn .param). Relative to the descriptor.
	Graph string `yaml:"graph,omitempty" json:"graph,omitempty"`
	// Weights is the weight blob, relative to the descriptor.
	Weights string `yaml:"weights" json:"weights"`
	// WeightsEncoding is raw (default) or base64. Base64 weight files hold
	// one encoded shard per line; shards are decoded and concatenated.
	WeightsEncoding string       `yaml:"weights_encoding,omitempty" json:"weights_encoding,omitempty"`
	Input           InputSpec    `yaml:"input" json:"input"`
	Features        FeatureSpec  `yaml:"features" json:"features"`
	Outputs         []OutputSpec `yaml:"outputs" json:"outputs"`
	Threads         int          `yaml:"threads,omitempty" json:"threads,omitempty"`
}

// InputSpec names the input blob and its exact shape.
type InputSpec struct {
	Name  string `yaml:"name" json:"name"`
	Shape Shape  `yaml:"shape" json:"shape"`
}

// OutputSpec maps an output blob to a result field.
type OutputSpec struct {
	Field      string   `yaml:"field" json:"field"`
	Blob       string   `yaml:"blob" json:"blob"`
	Activation string   `yaml:"activation,omitempty" json:"activation,omitempty"`
	Labels     []string `yaml:"labels" json:"labels"`
}

// ParseDescriptor decodes and validates a YAML descriptor.
func ParseDescriptor(data []byte) (*ModelDescriptor, error) {
	var d ModelDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("classify: parse descriptor: %w", err)
	}
	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *ModelDescriptor) applyDefaults() {
	if d.WeightsEncoding == "" {
		d.WeightsEncoding = EncodingRaw
	}
	if d.Input.Name == "" {
		d.Input.Name = "input"
	}
	d.Features = d.Features.WithDefaults()
	for i := range d.Outputs {
		if d.Outputs[i].Activation == "" {
			d.Outputs[i].Activation = ActivationSoftmax
		}
	}
	if d.Threads <= 0 {
		d.Threads = 1
	}
}

// Validate checks the descriptor for internal consistency.
func (d *ModelDescriptor) Validate() error {
	if d.Runtime == "" {
		return fmt.Errorf("classify: descriptor %q: runtime is required", d.Name)
	}
	if d.Weights == "" {
		return fmt.Errorf("classify: descriptor %q: weights is required", d.Name)
	}
	switch d.WeightsEncoding {
	case EncodingRaw, EncodingBase64:
	default:
		return fmt.Errorf("classify: descriptor %q: unknown weights encoding %q", d.Name, d.WeightsEncoding)
	}
	if !d.Input.Shape.Valid() {
		return fmt.Errorf("classify: descriptor %q: invalid input shape %v", d.Name, d.Input.Shape)
	}
	if err := d.Features.Validate(); err != nil {
		return fmt.Errorf("classify: descriptor %q: %w", d.Name, err)
	}
	if len(d.Outputs) == 0 {
		return fmt.Errorf("classify: descriptor %q: no outputs", d.Name)
	}
	seen := make(map[string]bool)
	for i, o := range d.Outputs {
		if o.Field == "" || o.Blob == "" {
			return fmt.Errorf("classify: descriptor %q: output %d needs field and blob", d.Name, i)
		}
		if seen[o.Field] {
			return fmt.Errorf("classify: descriptor %q: duplicate output field %q", d.Name, o.Field)
		}
		seen[o.Field] = true
		if len(o.Labels) == 0 {
			return fmt.Errorf("classify: descriptor %q: output %q has no labels", d.Name, o.Field)
		}
		switch o.Activation {
		case ActivationSoftmax, ActivationSigmoid, ActivationNone:
		default:
			return fmt.Errorf("classify: descriptor %q: output %q: unknown activation %q", d.Name, o.Field, o.Activation)
		}
	}
	return nil
}

// OutputBlobs returns the blob names of all outputs in order.
func (d *ModelDescriptor) OutputBlobs() []string {
	out := make([]string, len(d.Outputs))
	for i, o := range d.Outputs {
		out[i] = o.Blob
	}
	return out
}

// DecodeWeights turns the stored weight file into raw bytes according to
// the descriptor's encoding.
func (d *ModelDescriptor) DecodeWeights(data []byte) ([]byte, error) {
	if d.WeightsEncoding != EncodingBase64 {
		return data, nil
	}
	var out []byte
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		shard := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
		n, err := base64.StdEncoding.Decode(shard, line)
		if err != nil {
			return nil, fmt.Errorf("classify: weights shard %d: %w", i, err)
		}
		if n%4 != 0 {
			return nil, fmt.Errorf("classify: weights shard %d: %d bytes is not a float32 array", i, n)
		}
		out = append(out, shard[:n]...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("classify: weights file has no shards")
	}
	return out, nil
}
