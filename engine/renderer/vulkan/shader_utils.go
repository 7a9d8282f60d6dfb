package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"golang.org/x/crypto/blake2b"

	"github.com/spaghettifunk/prism/engine/assets/loaders"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/shadercache"
)

const shaderEntryPoint = "main\x00"

var _ shadercache.ModuleFactory = (*ShaderModuleFactory)(nil)

type moduleEntry struct {
	handle vk.ShaderModule
	refs   int
}

/**
 * @brief Creates the shader modules of cached pipelines on a logical device.
 * Identical SPIR-V shares one module; it is destroyed with its last pipeline.
 */
type ShaderModuleFactory struct {
	Device    vk.Device
	Allocator *vk.AllocationCallbacks

	modules map[[blake2b.Size256]byte]*moduleEntry
	handles map[vk.ShaderModule][blake2b.Size256]byte
}

func NewShaderModuleFactory(device vk.Device, allocator *vk.AllocationCallbacks) *ShaderModuleFactory {
	return &ShaderModuleFactory{
		Device:    device,
		Allocator: allocator,
		modules:   make(map[[blake2b.Size256]byte]*moduleEntry),
		handles:   make(map[vk.ShaderModule][blake2b.Size256]byte),
	}
}

// CreateModule returns a vk.ShaderModule for the SPIR-V words in spirv.
func (f *ShaderModuleFactory) CreateModule(stage metadata.ShaderStage, spirv []byte) (interface{}, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		err := fmt.Errorf("%s shader: SPIR-V of %d bytes is not word aligned", stage, len(spirv))
		core.LogError(err.Error())
		return nil, err
	}
	sum := blake2b.Sum256(spirv)
	if e, ok := f.modules[sum]; ok {
		e.refs++
		return e.handle, nil
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(spirv)),
		PCode:    loaders.BytesToBytecode(spirv),
	}
	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(f.Device, &createInfo, f.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create %s shader module: %s", stage, resultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	f.modules[sum] = &moduleEntry{handle: handle, refs: 1}
	f.handles[handle] = sum
	return handle, nil
}

/**
 * @brief Builds the shader stage part of a graphics pipeline create info.
 * Invalid pipelines yield nothing.
 */
func StageCreateInfos(p *shadercache.Pipeline) []vk.PipelineShaderStageCreateInfo {
	if !p.IsValid() {
		return nil
	}
	stages := p.Stages()
	infos := make([]vk.PipelineShaderStageCreateInfo, 0, len(stages))
	for _, s := range stages {
		handle, ok := s.Module.(vk.ShaderModule)
		if !ok {
			continue
		}
		infos = append(infos, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stageFlagBit(s.Stage),
			Module: handle,
			PName:  shaderEntryPoint,
		})
	}
	return infos
}

// ReleaseModule drops one reference to a module returned by CreateModule.
func (f *ShaderModuleFactory) ReleaseModule(module interface{}) {
	handle, ok := module.(vk.ShaderModule)
	if !ok {
		return
	}
	sum, ok := f.handles[handle]
	if !ok {
		core.LogWarn("release of unknown shader module %v", handle)
		return
	}
	e := f.modules[sum]
	e.refs--
	if e.refs > 0 {
		return
	}
	vk.DestroyShaderModule(f.Device, handle, f.Allocator)
	delete(f.modules, sum)
	delete(f.handles, handle)
}

/**
 * @brief Drops the references held by the stages of p. Only for pipelines
 * built outside a ShaderCache; the cache releases its own modules.
 */
func (f *ShaderModuleFactory) Destroy(p *shadercache.Pipeline) {
	for _, s := range p.Stages() {
		f.ReleaseModule(s.Module)
	}
}

// Len is the number of live shader modules.
func (f *ShaderModuleFactory) Len() int {
	return len(f.modules)
}

func stageFlagBit(stage metadata.ShaderStage) vk.ShaderStageFlagBits {
	switch stage {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageVertexBit
	case metadata.ShaderStageTessControl:
		return vk.ShaderStageTessellationControlBit
	case metadata.ShaderStageTessEval:
		return vk.ShaderStageTessellationEvaluationBit
	case metadata.ShaderStageGeometry:
		return vk.ShaderStageGeometryBit
	case metadata.ShaderStageFragment:
		return vk.ShaderStageFragmentBit
	}
	return 0
}

// the codes vkCreateShaderModule can return
func resultString(result vk.Result) string {
	switch result {
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY A host memory allocation has failed."
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY A device memory allocation has failed."
	case vk.ErrorInvalidShaderNv:
		return "VK_ERROR_INVALID_SHADER_NV One or more shaders failed to compile or link."
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}
