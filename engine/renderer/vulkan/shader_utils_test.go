package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func TestStageFlagBit(t *testing.T) {
	assert.Equal(t, vk.ShaderStageVertexBit, stageFlagBit(metadata.ShaderStageVertex))
	assert.Equal(t, vk.ShaderStageTessellationControlBit, stageFlagBit(metadata.ShaderStageTessControl))
	assert.Equal(t, vk.ShaderStageTessellationEvaluationBit, stageFlagBit(metadata.ShaderStageTessEval))
	assert.Equal(t, vk.ShaderStageGeometryBit, stageFlagBit(metadata.ShaderStageGeometry))
	assert.Equal(t, vk.ShaderStageFragmentBit, stageFlagBit(metadata.ShaderStageFragment))
}

func TestCreateModuleRejectsMisalignedCode(t *testing.T) {
	f := NewShaderModuleFactory(nil, nil)
	_, err := f.CreateModule(metadata.ShaderStageVertex, []byte{0x03, 0x02, 0x23})
	assert.Error(t, err)
	_, err = f.CreateModule(metadata.ShaderStageVertex, nil)
	assert.Error(t, err)
	assert.Zero(t, f.Len())
}

func TestInvalidPipelineHasNoStages(t *testing.T) {
	assert.Nil(t, StageCreateInfos(nil))

	f := NewShaderModuleFactory(nil, nil)
	f.Destroy(nil)
	assert.Zero(t, f.Len())
}

func TestReleaseModuleIgnoresForeignHandles(t *testing.T) {
	f := NewShaderModuleFactory(nil, nil)
	f.ReleaseModule(nil)
	f.ReleaseModule(42)
	f.ReleaseModule(vk.NullShaderModule)
	assert.Zero(t, f.Len())
}

func TestResultString(t *testing.T) {
	assert.Contains(t, resultString(vk.ErrorOutOfDeviceMemory), "VK_ERROR_OUT_OF_DEVICE_MEMORY")
	assert.Equal(t, "VkResult(-3)", resultString(vk.ErrorInitializationFailed))
}
