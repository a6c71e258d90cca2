package detect

import (
	"context"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
)

const defaultInputSize = 640

// InitRuntime loads the onnxruntime shared library. It must be called once
// before any model is loaded; libPath may be empty to use the system default.
func InitRuntime(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ModelConfig locates one exported detection model and its label table.
type ModelConfig struct {
	Name       string
	Path       string
	LabelsPath string
	Thresholds Thresholds
}

// ONNXModel is a YOLOv8 detection model exported to ONNX, with a single
// [1,3,S,S] image input and a single [1,4+classes,anchors] output.
type ONNXModel struct {
	name       string
	session    *ort.DynamicAdvancedSession
	inputSize  int
	numClasses int
	anchors    int
	labels     []string
	thresholds Thresholds
}

func LoadONNXModel(cfg ModelConfig) (*ONNXModel, error) {
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", cfg.Name, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("model %s: inspect %s: %w", cfg.Name, cfg.Path, err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("model %s: expected 1 input and at least 1 output, got %d and %d", cfg.Name, len(inputs), len(outputs))
	}

	in, out := inputs[0], outputs[0]
	size := defaultInputSize
	if d := in.Dimensions; len(d) == 4 && d[2] > 0 {
		if d[2] != d[3] {
			return nil, fmt.Errorf("model %s: non-square input %v", cfg.Name, d)
		}
		size = int(d[2])
	}

	od := out.Dimensions
	if len(od) != 3 || od[1] <= 4 {
		return nil, fmt.Errorf("model %s: unexpected output shape %v", cfg.Name, od)
	}
	numClasses := int(od[1]) - 4
	anchors := int(od[2])
	if anchors <= 0 {
		anchors = anchorCount(size)
	}
	if numClasses != len(labels) {
		return nil, fmt.Errorf("model %s: output has %d classes but label table has %d", cfg.Name, numClasses, len(labels))
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.Path, []string{in.Name}, []string{out.Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("model %s: create session: %w", cfg.Name, err)
	}

	th := cfg.Thresholds
	if th.Confidence <= 0 {
		th.Confidence = DefaultConfidence
	}
	if th.IoU <= 0 {
		th.IoU = DefaultIoU
	}

	return &ONNXModel{
		name:       cfg.Name,
		session:    session,
		inputSize:  size,
		numClasses: numClasses,
		anchors:    anchors,
		labels:     labels,
		thresholds: th,
	}, nil
}

func (m *ONNXModel) Name() string { return m.name }

func (m *ONNXModel) Detect(ctx context.Context, img image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := int64(m.inputSize)
	input, err := ort.NewTensor(ort.NewShape(1, 3, s, s), letterbox(img, m.inputSize))
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+m.numClasses), int64(m.anchors)))
	if err != nil {
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	classes := decodeYOLO(output.GetData(), m.numClasses, m.anchors, m.thresholds)
	labels := make([]string, 0, len(classes))
	for _, c := range classes {
		labels = append(labels, m.labels[c])
	}
	return labels, nil
}

func (m *ONNXModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
