//go:build !ncnn

package ncnn

func init() {
	openEngine = func(_, _ []byte, _ int) (engine, error) {
		return nil, ErrUnavailable
	}
}
