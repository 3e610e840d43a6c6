//go:build !onnx

package onnx

func init() {
	openEngine = func([]byte, int) (engine, error) {
		return nil, ErrUnavailable
	}
}
