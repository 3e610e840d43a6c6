package classify

// Runtime loads model artifacts into an executable Model. The ONNX Runtime
// and ncnn packages provide implementations.
type Runtime interface {
	// Name matches the descriptor's runtime field, e.g. "onnx" or "ncnn".
	Name() string
	// Load builds a model from the descriptor and its artifact bytes. graph
	// is nil for runtimes that keep the graph inside the weights file.
	Load(desc *ModelDescriptor, graph, weights []byte) (Model, error)
}

// Model is a loaded network.
type Model interface {
	// Run feeds the tensor to the descriptor's input and returns the raw
	// values of every output blob, keyed by blob name.
	Run(in *Tensor) (map[string][]float32, error)
	// Close releases native resources.
	Close() error
}

// RuntimeFunc adapts a function to Runtime.
type RuntimeFunc struct {
	RuntimeName string
	LoadFunc    func(desc *ModelDescriptor, graph, weights []byte) (Model, error)
}

// Name implements Runtime.
func (f RuntimeFunc) Name() string { return f.RuntimeName }

// Load implements Runtime.
func (f RuntimeFunc) Load(desc *ModelDescriptor, graph, weights []byte) (Model, error) {
	return f.LoadFunc(desc, graph, weights)
}
