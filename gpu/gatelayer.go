package gpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/gatenet/nn"
)

// GateLayerSpec freezes one gate layer for GPU execution. Connections and
// GateWeights are the selection weights the forward pass actually consumes:
// softmaxed distributions for a soft network, one-hot rows for a binarized
// one. Layouts match package nn ([Inputs*Gates*2] and [16*Gates]).
type GateLayerSpec struct {
	Inputs      int
	Gates       int
	Connections []float32
	GateWeights []float32
}

// GateLayer holds the device resources for one layer.
type GateLayer struct {
	Spec      GateLayerSpec
	BatchSize int

	pipeline        *wgpu.ComputePipeline
	bindGroupLayout *wgpu.BindGroupLayout
	bindGroup       *wgpu.BindGroup

	InputBuffer      *wgpu.Buffer
	OutputBuffer     *wgpu.Buffer
	ConnBuffer       *wgpu.Buffer
	GateWeightBuffer *wgpu.Buffer

	workgroupsX uint32
}

// GateSequence chains gate layers on the GPU, copying each layer's output
// buffer into the next layer's input buffer inside a single command stream.
type GateSequence struct {
	Layers    []*GateLayer
	BatchSize int
}

// NewGateSequence builds a sequence handler from frozen layer specs.
func NewGateSequence(specs []GateLayerSpec, batchSize int) *GateSequence {
	layers := make([]*GateLayer, len(specs))
	for i, spec := range specs {
		layers[i] = &GateLayer{Spec: spec, BatchSize: batchSize}
	}
	return &GateSequence{Layers: layers, BatchSize: batchSize}
}

// SequenceFromNetwork freezes a network's current selection weights into a
// GPU sequence for batches of the given size. The network is read once; later
// parameter updates are not reflected.
func SequenceFromNetwork(n *nn.Network, batchSize int) *GateSequence {
	specs := make([]GateLayerSpec, len(n.Layers))
	for i, layer := range n.Layers {
		specs[i] = GateLayerSpec{
			Inputs:      layer.Inputs,
			Gates:       layer.Gates,
			Connections: layer.ConnectionWeights(),
			GateWeights: layer.GateWeights(),
		}
	}
	return NewGateSequence(specs, batchSize)
}

// generateShader emits WGSL evaluating one (sample, gate) pair per
// invocation: the two slot products over the connection weights, then the
// 16-function mixture under the gate-selection weights.
func (l *GateLayer) generateShader() string {
	return fmt.Sprintf(`
		@group(0) @binding(0) var<storage, read> input : array<f32>;
		@group(0) @binding(1) var<storage, read_write> output : array<f32>;
		@group(0) @binding(2) var<storage, read> connections : array<f32>;
		@group(0) @binding(3) var<storage, read> gate_weights : array<f32>;

		@compute @workgroup_size(256)
		fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
			let idx = gid.x;
			let n_gates = %du;
			let n_in = %du;

			if (idx >= arrayLength(&output)) {
				return;
			}

			let sample_idx = idx / n_gates;
			let gate_idx = idx %% n_gates;

			var a: f32 = 0.0;
			var b: f32 = 0.0;
			let input_offset = sample_idx * n_in;
			for (var i: u32 = 0u; i < n_in; i++) {
				let c = (i * n_gates + gate_idx) * 2u;
				let x = input[input_offset + i];
				a += x * connections[c];
				b += x * connections[c + 1u];
			}

			let ab = a * b;
			var funcs = array<f32, 16>(
				0.0,
				ab,
				a - ab,
				a,
				b - ab,
				b,
				a + b - 2.0 * ab,
				a + b - ab,
				1.0 - (a + b - ab),
				1.0 - (a + b - 2.0 * ab),
				1.0 - b,
				1.0 - (b - ab),
				1.0 - a,
				1.0 - (a - ab),
				1.0 - ab,
				1.0
			);

			var sum: f32 = 0.0;
			for (var f: u32 = 0u; f < 16u; f++) {
				sum += gate_weights[f * n_gates + gate_idx] * funcs[f];
			}
			output[idx] = sum;
		}
	`, l.Spec.Gates, l.Spec.Inputs)
}

func (l *GateLayer) allocateBuffers(c *Context, label string) error {
	var err error
	l.InputBuffer, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + "_In",
		Size:  uint64(l.Spec.Inputs * l.BatchSize * 4),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return err
	}
	l.OutputBuffer, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + "_Out",
		Size:  uint64(l.Spec.Gates * l.BatchSize * 4),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return err
	}
	l.ConnBuffer, err = NewFloatBuffer(l.Spec.Connections, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("connection buf: %v", err)
	}
	l.GateWeightBuffer, err = NewFloatBuffer(l.Spec.GateWeights, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("gate weight buf: %v", err)
	}
	return nil
}

func (l *GateLayer) compile(c *Context, label string) error {
	module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: l.generateShader()},
	})
	if err != nil {
		return fmt.Errorf("shader compile: %v", err)
	}

	// Explicit bind group layout to avoid "auto" layout issues.
	l.bindGroupLayout, err = c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: label + "_BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bgl: %v", err)
	}

	pipelineLayout, err := c.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + "_Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{l.bindGroupLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %v", err)
	}

	l.pipeline, err = c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label + "_Pipe",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline create: %v", err)
	}
	module.Release()

	totalThreads := uint32(l.Spec.Gates * l.BatchSize)
	l.workgroupsX = (totalThreads + 255) / 256
	return nil
}

func (l *GateLayer) createBindGroup(c *Context, label string) error {
	var err error
	l.bindGroup, err = c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + "_Bind",
		Layout: l.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: l.InputBuffer, Size: l.InputBuffer.GetSize()},
			{Binding: 1, Buffer: l.OutputBuffer, Size: l.OutputBuffer.GetSize()},
			{Binding: 2, Buffer: l.ConnBuffer, Size: l.ConnBuffer.GetSize()},
			{Binding: 3, Buffer: l.GateWeightBuffer, Size: l.GateWeightBuffer.GetSize()},
		},
	})
	return err
}

// Cleanup releases the layer's device resources.
func (l *GateLayer) Cleanup() {
	for _, buf := range []*wgpu.Buffer{l.InputBuffer, l.OutputBuffer, l.ConnBuffer, l.GateWeightBuffer} {
		if buf != nil {
			buf.Destroy()
		}
	}
	if l.pipeline != nil {
		l.pipeline.Release()
	}
	if l.bindGroup != nil {
		l.bindGroup.Release()
	}
}

// Build initializes all device resources for the sequence.
func (s *GateSequence) Build() error {
	c, err := GetContext()
	if err != nil {
		return err
	}
	for i, l := range s.Layers {
		label := fmt.Sprintf("Gate%d", i)
		if err := l.allocateBuffers(c, label); err != nil {
			return err
		}
		if err := l.compile(c, label); err != nil {
			return err
		}
		if err := l.createBindGroup(c, label); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup releases every layer's resources.
func (s *GateSequence) Cleanup() {
	for _, l := range s.Layers {
		l.Cleanup()
	}
}

// Forward runs a batch ([batch*Inputs] of layer 0) through the whole
// sequence on the GPU and reads back the last layer's gate outputs. The
// caller applies the category grouping and softmax on the CPU.
func (s *GateSequence) Forward(input []float32) ([]float32, error) {
	if len(s.Layers) == 0 {
		return nil, fmt.Errorf("no layers built")
	}
	c, err := GetContext()
	if err != nil {
		return nil, err
	}

	first := s.Layers[0]
	if len(input) != first.Spec.Inputs*s.BatchSize {
		return nil, fmt.Errorf("input has %d values, expected %d", len(input), first.Spec.Inputs*s.BatchSize)
	}
	c.Queue.WriteBuffer(first.InputBuffer, 0, wgpu.ToBytes(input))

	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	for i, l := range s.Layers {
		pass := enc.BeginComputePass(nil)
		pass.SetPipeline(l.pipeline)
		pass.SetBindGroup(0, l.bindGroup, nil)
		pass.DispatchWorkgroups(l.workgroupsX, 1, 1)
		pass.End()

		if i < len(s.Layers)-1 {
			enc.CopyBufferToBuffer(l.OutputBuffer, 0, s.Layers[i+1].InputBuffer, 0, l.OutputBuffer.GetSize())
		}
	}
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	c.Queue.Submit(cmd)

	last := s.Layers[len(s.Layers)-1]
	return ReadBuffer(last.OutputBuffer, last.Spec.Gates*s.BatchSize)
}
