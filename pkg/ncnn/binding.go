//go:build ncnn

package ncnn

/*
#cgo LDFLAGS: -lncnn -lstdc++ -lm -fopenmp
#include <ncnn/c_api.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"
)

func init() {
	openEngine = func(param, bin []byte, threads int) (engine, error) {
		return newNet(param, bin, threads)
	}
}

// Version returns the linked ncnn version.
func Version() string {
	return C.GoString(C.ncnn_version())
}

// net is a loaded ncnn network. Options are applied before loading since
// ncnn reads them during load.
type net struct {
	net C.ncnn_net_t
	opt C.ncnn_option_t
	// load_model_memory keeps pointers into the weights.
	bin []byte
}

func newNet(param, bin []byte, threads int) (*net, error) {
	n := &net{net: C.ncnn_net_create(), bin: bin}
	if n.net == nil {
		return nil, fmt.Errorf("ncnn: net_create failed")
	}
	n.opt = C.ncnn_option_create()
	if n.opt == nil {
		C.ncnn_net_destroy(n.net)
		return nil, fmt.Errorf("ncnn: option_create failed")
	}
	// Classifier logits can exceed the FP16 range.
	C.ncnn_option_set_use_fp16_packed(n.opt, 0)
	C.ncnn_option_set_use_fp16_storage(n.opt, 0)
	C.ncnn_option_set_use_fp16_arithmetic(n.opt, 0)
	if threads > 0 {
		C.ncnn_option_set_num_threads(n.opt, C.int(threads))
	}
	C.ncnn_net_set_option(n.net, n.opt)

	cParam := C.CString(string(param))
	defer C.free(unsafe.Pointer(cParam))
	if ret := C.ncnn_net_load_param_memory(n.net, cParam); ret != 0 {
		n.close()
		return nil, fmt.Errorf("ncnn: load_param_memory: %d", ret)
	}
	if ret := C.ncnn_net_load_model_memory(n.net, (*C.uchar)(unsafe.Pointer(&bin[0]))); ret < 0 {
		n.close()
		return nil, fmt.Errorf("ncnn: load_model_memory: %d", ret)
	}
	runtime.SetFinalizer(n, (*net).close)
	return n, nil
}

func (n *net) run(input string, in dims, data []float32, outputs []string) ([][]float32, error) {
	if n.net == nil {
		return nil, fmt.Errorf("ncnn: net closed")
	}
	if len(data) < in.w*in.h*in.c || len(data) == 0 {
		return nil, fmt.Errorf("ncnn: input data too short: got %d, need %d", len(data), in.w*in.h*in.c)
	}

	var mat C.ncnn_mat_t
	switch in.rank {
	case 1:
		mat = C.ncnn_mat_create_external_1d(C.int(in.w), unsafe.Pointer(&data[0]), nil)
	case 2:
		mat = C.ncnn_mat_create_external_2d(C.int(in.w), C.int(in.h), unsafe.Pointer(&data[0]), nil)
	default:
		mat = C.ncnn_mat_create_external_3d(C.int(in.w), C.int(in.h), C.int(in.c), unsafe.Pointer(&data[0]), nil)
	}
	if mat == nil {
		return nil, fmt.Errorf("ncnn: mat_create_external failed")
	}
	defer C.ncnn_mat_destroy(mat)

	ex := C.ncnn_extractor_create(n.net)
	if ex == nil {
		return nil, fmt.Errorf("ncnn: extractor_create failed")
	}
	defer C.ncnn_extractor_destroy(ex)

	cIn := C.CString(input)
	defer C.free(unsafe.Pointer(cIn))
	if ret := C.ncnn_extractor_input(ex, cIn, mat); ret != 0 {
		return nil, fmt.Errorf("ncnn: extractor_input %q: %d", input, ret)
	}

	res := make([][]float32, len(outputs))
	for i, name := range outputs {
		out, err := extract(ex, name)
		if err != nil {
			return nil, err
		}
		res[i] = out
	}
	runtime.KeepAlive(data)
	return res, nil
}

func extract(ex C.ncnn_extractor_t, name string) ([]float32, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	var m C.ncnn_mat_t
	if ret := C.ncnn_extractor_extract(ex, cName, &m); ret != 0 {
		return nil, fmt.Errorf("ncnn: extractor_extract %q: %d", name, ret)
	}
	defer C.ncnn_mat_destroy(m)

	ptr := C.ncnn_mat_get_data(m)
	n := int(C.ncnn_mat_get_w(m)) * max(int(C.ncnn_mat_get_h(m)), 1) * max(int(C.ncnn_mat_get_c(m)), 1)
	if ptr == nil || n <= 0 {
		return nil, fmt.Errorf("ncnn: output %q is empty", name)
	}
	out := make([]float32, n)
	C.memcpy(unsafe.Pointer(&out[0]), ptr, C.size_t(n*4))
	return out, nil
}

func (n *net) close() error {
	if n.net != nil {
		C.ncnn_net_destroy(n.net)
		n.net = nil
	}
	if n.opt != nil {
		C.ncnn_option_destroy(n.opt)
		n.opt = nil
	}
	n.bin = nil
	runtime.SetFinalizer(n, nil)
	return nil
}
