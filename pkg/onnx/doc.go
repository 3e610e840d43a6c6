// Package onnx runs on-device classifiers with ONNX Runtime.
//
// The native binding is compiled only with the onnx build tag, which
// requires the onnxruntime headers and shared library:
//
//	go build -tags onnx ./cmd/navi
//
// Without the tag, [Runtime.Load] fails with [ErrUnavailable] and a local
// backend configured for onnx reports BackendUnavailable.
//
// A model is a single .onnx file named by the descriptor's weights field.
// The descriptor's input blob receives the feature tensor and every output
// blob listed in its outputs is fetched by name.
package onnx
