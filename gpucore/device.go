// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// Device abstracts over the GPU backends the ISP pipeline can run on.
//
// Implementations must be safe for concurrent use; resource tables are
// shared between the host and the pipeline it drives.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource while in use is undefined behavior
//   - IDs become invalid after destruction and must not be reused
type Device interface {
	// Name returns the backend identifier (e.g., "native", "software").
	Name() string

	// === Buffer Management ===

	// CreateBuffer creates a GPU buffer. Contents start zeroed.
	CreateBuffer(desc *BufferDescriptor) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer. The write is ordered before
	// any command buffer submitted afterwards.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer copies len(dst) bytes starting at offset into dst.
	// This waits for all submitted work and may stall.
	ReadBuffer(id BufferID, offset uint64, dst []byte) error

	// === Texture Management ===

	// CreateTexture creates a 2D texture.
	CreateTexture(desc *TextureDescriptor) (TextureID, error)

	// DestroyTexture releases a texture.
	DestroyTexture(id TextureID)

	// ReadTexture copies the tightly packed texel rows into dst, which
	// must hold width*height*BytesPerPixel bytes.
	ReadTexture(id TextureID, dst []byte) error

	// === Pipeline Management ===

	// CreateShaderModule compiles a compute shader module.
	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreatePipelineLayout combines bind group layouts into a pipeline layout.
	CreatePipelineLayout(desc *PipelineLayoutDesc) (PipelineLayoutID, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(id PipelineLayoutID)

	// CreateComputePipeline creates a compute pipeline.
	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)

	// DestroyComputePipeline releases a compute pipeline.
	DestroyComputePipeline(id ComputePipelineID)

	// CreateBindGroup binds actual resources to a bind group layout.
	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// === Command Recording and Execution ===

	// CreateCommandEncoder starts recording a command sequence.
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Submit executes a finished command buffer. Commands within one
	// buffer run in recording order.
	Submit(cmd CommandBuffer) error

	// WaitIdle waits for all submitted work to complete.
	WaitIdle() error

	// Close releases the device. Devices borrowed from a host are not
	// destroyed, only detached.
	Close()
}

// CommandEncoder records one command sequence.
//
// Recording errors (unknown IDs, nested passes) are latched and reported
// by Finish; the encoder is single-use.
type CommandEncoder interface {
	// BeginComputePass begins a compute pass.
	// The pass must be ended before any other command is recorded.
	BeginComputePass(label string) ComputePassEncoder

	// CopyBufferToBuffer records a buffer-to-buffer copy.
	CopyBufferToBuffer(src BufferID, srcOffset uint64, dst BufferID, dstOffset uint64, size uint64)

	// Finish ends recording and returns the command buffer.
	Finish() (CommandBuffer, error)

	// Discard abandons recording.
	Discard()
}

// CommandBuffer is a finished, submittable command sequence.
type CommandBuffer interface {
	// Label returns the debug label given to the encoder.
	Label() string
}

// ComputePassEncoder records compute commands.
//
// Usage:
//  1. Obtain encoder from CommandEncoder.BeginComputePass()
//  2. Set pipeline and bind groups
//  3. Dispatch compute workgroups
//  4. Call End() to finish recording
//
// The encoder is single-use and cannot be reused after End().
type ComputePassEncoder interface {
	// SetPipeline sets the active compute pipeline.
	SetPipeline(pipeline ComputePipelineID)

	// SetBindGroup sets a bind group at the specified index.
	SetBindGroup(index uint32, group BindGroupID)

	// Dispatch dispatches compute workgroups.
	// x, y, z are the number of workgroups in each dimension.
	Dispatch(x, y, z uint32)

	// End finishes the compute pass.
	End()
}
