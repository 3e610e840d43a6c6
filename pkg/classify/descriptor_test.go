package classify

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

const fbankDescriptor = `
name: navi-commands
runtime: onnx
weights: commands.onnx
input:
  name: x
  shape: [1, 98, 80]
features:
  kind: fbank
  sample_rate: 16000
  cmvn: true
outputs:
  - field: command
    blob: command_logits
    labels: [stop, go, left, right]
  - field: speaker
    blob: speaker_logits
    activation: sigmoid
    labels: [alice, bob]
`

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte(fbankDescriptor))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Name != "navi-commands" || d.Runtime != "onnx" {
		t.Errorf("name/runtime = %q/%q", d.Name, d.Runtime)
	}
	if !d.Input.Shape.Equal(Shape{1, 98, 80}) || d.Input.Name != "x" {
		t.Errorf("input = %+v", d.Input)
	}
	if d.WeightsEncoding != EncodingRaw || d.Threads != 1 {
		t.Errorf("defaults: encoding=%q threads=%d", d.WeightsEncoding, d.Threads)
	}
	if d.Features.Kind != FeatureFbank || !d.Features.CMVN || d.Features.Fbank.NumMels != 80 {
		t.Errorf("features = %+v", d.Features)
	}
	if d.Outputs[0].Activation != ActivationSoftmax || d.Outputs[1].Activation != ActivationSigmoid {
		t.Errorf("activations = %q, %q", d.Outputs[0].Activation, d.Outputs[1].Activation)
	}
	if blobs := d.OutputBlobs(); len(blobs) != 2 || blobs[1] != "speaker_logits" {
		t.Errorf("OutputBlobs() = %v", blobs)
	}
}

func TestParseDescriptorInvalid(t *testing.T) {
	tests := map[string]string{
		"no runtime":   strings.Replace(fbankDescriptor, "runtime: onnx", "", 1),
		"bad shape":    strings.Replace(fbankDescriptor, "[1, 98, 80]", "[1, 0, 80]", 1),
		"bad encoding": fbankDescriptor + "weights_encoding: gzip\n",
		"no labels":    strings.Replace(fbankDescriptor, "[alice, bob]", "[]", 1),
		"bad kind":     strings.Replace(fbankDescriptor, "kind: fbank", "kind: mfcc", 1),
		"not yaml":     "{{{",
	}
	for name, doc := range tests {
		if _, err := ParseDescriptor([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func floatsToBytes(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func TestDecodeWeightsBase64(t *testing.T) {
	d := &ModelDescriptor{WeightsEncoding: EncodingBase64}
	a := floatsToBytes(1, 2)
	b := floatsToBytes(3)
	file := base64.StdEncoding.EncodeToString(a) + "\n\n" + base64.StdEncoding.EncodeToString(b) + "\n"
	got, err := d.DecodeWeights([]byte(file))
	if err != nil {
		t.Fatal(err)
	}
	want := append(a, b...)
	if string(got) != string(want) {
		t.Fatalf("decoded %v, want %v", got, want)
	}

	if _, err := d.DecodeWeights([]byte(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))); err == nil {
		t.Error("shard that is not a float32 array accepted")
	}
	if _, err := d.DecodeWeights([]byte("!!!")); err == nil {
		t.Error("invalid base64 accepted")
	}
	raw := &ModelDescriptor{WeightsEncoding: EncodingRaw}
	if got, _ := raw.DecodeWeights([]byte("abc")); string(got) != "abc" {
		t.Errorf("raw weights changed: %q", got)
	}
}

func TestDecodeOutputs(t *testing.T) {
	heads := []OutputSpec{
		{Field: FieldCommand, Blob: "cmd", Activation: ActivationSoftmax, Labels: []string{"stop", "go"}},
		{Field: FieldSpeaker, Blob: "spk", Activation: ActivationNone, Labels: []string{"alice", "bob"}},
	}
	res, err := decodeOutputs(heads, map[string][]float32{
		"cmd": {2, 0},
		"spk": {0.2, 0.7},
	})
	if err != nil {
		t.Fatal(err)
	}
	cmd, _ := res.Field(FieldCommand)
	want := math.Exp(2) / (math.Exp(2) + 1)
	if cmd.Label != "stop" || math.Abs(cmd.Confidence-want) > 1e-6 {
		t.Errorf("command = %+v, want stop/%f", cmd, want)
	}
	if spk, _ := res.Field(FieldSpeaker); spk.Label != "bob" || math.Abs(spk.Confidence-0.7) > 1e-6 {
		t.Errorf("speaker = %+v", spk)
	}

	if _, err := decodeOutputs(heads, map[string][]float32{"cmd": {1, 2}}); err == nil {
		t.Error("missing blob accepted")
	}
	if _, err := decodeOutputs(heads[:1], map[string][]float32{"cmd": {1}}); err == nil {
		t.Error("label count mismatch accepted")
	}
	if _, err := decodeOutputs(heads[:1], map[string][]float32{"cmd": {float32(math.NaN()), 1}}); err == nil {
		t.Error("NaN output accepted")
	}
}

func TestSigmoid(t *testing.T) {
	p, err := activate(ActivationSigmoid, []float32{0})
	if err != nil || p[0] != 0.5 {
		t.Fatalf("sigmoid(0) = %v, %v", p, err)
	}
}
