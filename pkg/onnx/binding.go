//go:build onnx

package onnx

/*
#cgo LDFLAGS: -lonnxruntime
#include <onnxruntime_c_api.h>
#include <stdlib.h>
#include <string.h>

static const OrtApi* ort_api() {
    return OrtGetApiBase()->GetApi(ORT_API_VERSION);
}

static OrtStatus* ort_create_env(const OrtApi* api, const char* name, OrtEnv** out) {
    return api->CreateEnv(ORT_LOGGING_LEVEL_WARNING, name, out);
}

static OrtStatus* ort_create_session(const OrtApi* api, OrtEnv* env,
    const void* data, size_t len, int threads, OrtSession** out) {
    OrtSessionOptions* opts;
    OrtStatus* status = api->CreateSessionOptions(&opts);
    if (status) return status;
    if (threads > 0) {
        status = api->SetIntraOpNumThreads(opts, threads);
        if (status) {
            api->ReleaseSessionOptions(opts);
            return status;
        }
    }
    status = api->CreateSessionFromArray(env, data, len, opts, out);
    api->ReleaseSessionOptions(opts);
    return status;
}

static OrtStatus* ort_create_tensor(const OrtApi* api, float* data, size_t len,
    int64_t* shape, size_t ndim, OrtValue** out) {
    OrtMemoryInfo* info;
    OrtStatus* status = api->CreateCpuMemoryInfo(OrtArenaAllocator, OrtMemTypeDefault, &info);
    if (status) return status;
    status = api->CreateTensorWithDataAsOrtValue(info, data, len * sizeof(float),
        shape, ndim, ONNX_TENSOR_ELEMENT_DATA_TYPE_FLOAT, out);
    api->ReleaseMemoryInfo(info);
    return status;
}

static OrtStatus* ort_run(const OrtApi* api, OrtSession* session,
    const char** in_names, const OrtValue* const* inputs, size_t n_in,
    const char** out_names, size_t n_out, OrtValue** outputs) {
    return api->Run(session, NULL, in_names, inputs, n_in, out_names, n_out, outputs);
}

static OrtStatus* ort_element_count(const OrtApi* api, OrtValue* value, size_t* n) {
    OrtTensorTypeAndShapeInfo* info;
    OrtStatus* status = api->GetTensorTypeAndShape(value, &info);
    if (status) return status;
    status = api->GetTensorShapeElementCount(info, n);
    api->ReleaseTensorTypeAndShapeInfo(info);
    return status;
}

static OrtStatus* ort_float_data(const OrtApi* api, OrtValue* value, float** out) {
    return api->GetTensorMutableData(value, (void**)out);
}

static const char* ort_error_message(const OrtApi* api, OrtStatus* s) { return api->GetErrorMessage(s); }
static void ort_release_status(const OrtApi* api, OrtStatus* s) { api->ReleaseStatus(s); }
static void ort_release_env(const OrtApi* api, OrtEnv* e) { api->ReleaseEnv(e); }
static void ort_release_session(const OrtApi* api, OrtSession* s) { api->ReleaseSession(s); }
static void ort_release_value(const OrtApi* api, OrtValue* v) { api->ReleaseValue(v); }
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

func api() *C.OrtApi {
	return C.ort_api()
}

func checkStatus(status *C.OrtStatus) error {
	if status == nil {
		return nil
	}
	msg := C.GoString(C.ort_error_message(api(), status))
	C.ort_release_status(api(), status)
	return fmt.Errorf("onnx: %s", msg)
}

// One environment per process.
var (
	envOnce sync.Once
	env     *C.OrtEnv
	envErr  error
)

func sharedEnv() (*C.OrtEnv, error) {
	envOnce.Do(func() {
		name := C.CString("navi")
		defer C.free(unsafe.Pointer(name))
		envErr = checkStatus(C.ort_create_env(api(), name, &env))
	})
	return env, envErr
}

func init() {
	openEngine = func(model []byte, threads int) (engine, error) {
		return newSession(model, threads)
	}
}

// session is a loaded ONNX model.
type session struct {
	s *C.OrtSession
	// ONNX Runtime may reference the model bytes after creation.
	pinned []byte
}

func newSession(model []byte, threads int) (*session, error) {
	e, err := sharedEnv()
	if err != nil {
		return nil, err
	}
	var s *C.OrtSession
	if err := checkStatus(C.ort_create_session(api(), e,
		unsafe.Pointer(&model[0]), C.size_t(len(model)), C.int(threads), &s)); err != nil {
		return nil, err
	}
	sess := &session{s: s, pinned: model}
	runtime.SetFinalizer(sess, (*session).close)
	return sess, nil
}

func (s *session) run(input string, shape []int64, data []float32, outputs []string) ([][]float32, error) {
	if s.s == nil {
		return nil, fmt.Errorf("onnx: session closed")
	}
	if len(data) == 0 || len(shape) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: empty input or outputs")
	}

	var in *C.OrtValue
	if err := checkStatus(C.ort_create_tensor(api(),
		(*C.float)(unsafe.Pointer(&data[0])), C.size_t(len(data)),
		(*C.int64_t)(unsafe.Pointer(&shape[0])), C.size_t(len(shape)), &in)); err != nil {
		return nil, err
	}
	defer C.ort_release_value(api(), in)

	cIn := C.CString(input)
	defer C.free(unsafe.Pointer(cIn))
	inNames := []*C.char{cIn}
	inVals := []*C.OrtValue{in}

	outNames := make([]*C.char, len(outputs))
	for i, name := range outputs {
		outNames[i] = C.CString(name)
		defer C.free(unsafe.Pointer(outNames[i]))
	}
	outVals := make([]*C.OrtValue, len(outputs))

	if err := checkStatus(C.ort_run(api(), s.s,
		&inNames[0], &inVals[0], 1,
		&outNames[0], C.size_t(len(outputs)), &outVals[0])); err != nil {
		return nil, err
	}
	defer func() {
		for _, v := range outVals {
			if v != nil {
				C.ort_release_value(api(), v)
			}
		}
	}()
	runtime.KeepAlive(data)

	res := make([][]float32, len(outVals))
	for i, v := range outVals {
		var n C.size_t
		if err := checkStatus(C.ort_element_count(api(), v, &n)); err != nil {
			return nil, fmt.Errorf("onnx: output %q: %w", outputs[i], err)
		}
		var ptr *C.float
		if err := checkStatus(C.ort_float_data(api(), v, &ptr)); err != nil {
			return nil, fmt.Errorf("onnx: output %q: %w", outputs[i], err)
		}
		out := make([]float32, int(n))
		if n > 0 {
			C.memcpy(unsafe.Pointer(&out[0]), unsafe.Pointer(ptr), n*4)
		}
		res[i] = out
	}
	return res, nil
}

func (s *session) close() error {
	if s.s != nil {
		C.ort_release_session(api(), s.s)
		s.s = nil
		s.pinned = nil
		runtime.SetFinalizer(s, nil)
	}
	return nil
}
