package codegen

// Canned stages for the shadow depth programs. Outgoing variables need the
// following stage enabled by BeginProgram.

func OutputParaboloidDepthVertex(vs *StageGenerator) error {
	vs.AddIncoming("attr_pos", "vec3")
	vs.AddInclude("shadowMapping.glsllib")
	vs.AddUniform("modelViewProjection", "mat4")
	vs.AddUniform("cameraProperties", "vec2")
	if err := vs.AddOutgoing("world_pos", "vec4"); err != nil {
		return err
	}
	vs.Append("void main() {\n" +
		"   ParaboloidMapResult data = VertexParaboloidDepth( attr_pos, modelViewProjection );\n" +
		"   gl_Position = data.m_Position;\n" +
		"   world_pos = data.m_WorldPos;\n" +
		"}")
	return nil
}

// OutputParaboloidDepthTessEval appends to a main body the caller opened.
func OutputParaboloidDepthTessEval(tes *StageGenerator) error {
	tes.AddInclude("shadowMapping.glsllib")
	tes.AddUniform("modelViewProjection", "mat4")
	if err := tes.AddOutgoing("world_pos", "vec4"); err != nil {
		return err
	}
	tes.Append("   ParaboloidMapResult data = VertexParaboloidDepth( vec3(pos.xyz), modelViewProjection );\n" +
		"   gl_Position = data.m_Position;\n" +
		"   world_pos = data.m_WorldPos;")
	return nil
}

func OutputParaboloidDepthFragment(fs *StageGenerator) {
	fs.AddInclude("shadowMappingFragment.glsllib")
	fs.AddUniform("modelViewProjection", "mat4")
	fs.AddUniform("cameraProperties", "vec2")
	fs.Append("void main() {\n" +
		"   gl_FragDepth = FragmentParaboloidDepth( world_pos, modelViewProjection, cameraProperties );\n" +
		"}")
}

func OutputCubeFaceDepthVertex(vs *StageGenerator) error {
	vs.AddIncoming("attr_pos", "vec3")
	vs.AddUniform("modelMatrix", "mat4")
	vs.AddUniform("modelViewProjection", "mat4")
	if err := vs.AddOutgoing("raw_pos", "vec4"); err != nil {
		return err
	}
	if err := vs.AddOutgoing("world_pos", "vec4"); err != nil {
		return err
	}
	vs.Append("void main() {\n" +
		"   world_pos = modelMatrix * vec4( attr_pos, 1.0 );\n" +
		"   world_pos /= world_pos.w;\n" +
		"   gl_Position = modelViewProjection * vec4( attr_pos, 1.0 );\n" +
		"   raw_pos = vec4( attr_pos, 1.0 );\n" +
		"}")
	return nil
}

// OutputCubeFaceDepthGeometry renders the six cube faces as layers in one pass.
func OutputCubeFaceDepthGeometry(gs *StageGenerator) error {
	gs.Append("layout(triangles) in;\n" +
		"layout(triangle_strip, max_vertices = 18) out;")
	for _, mv := range []string{"shadow_mv0", "shadow_mv1", "shadow_mv2", "shadow_mv3", "shadow_mv4", "shadow_mv5"} {
		gs.AddUniform(mv, "mat4")
	}
	gs.AddUniform("projection", "mat4")
	gs.AddUniform("modelMatrix", "mat4")
	if err := gs.AddOutgoing("world_pos", "vec4"); err != nil {
		return err
	}
	gs.Append("void main() {\n" +
		"   mat4 layerMVP[6];\n" +
		"   layerMVP[0] = projection * shadow_mv0;\n" +
		"   layerMVP[1] = projection * shadow_mv1;\n" +
		"   layerMVP[2] = projection * shadow_mv2;\n" +
		"   layerMVP[3] = projection * shadow_mv3;\n" +
		"   layerMVP[4] = projection * shadow_mv4;\n" +
		"   layerMVP[5] = projection * shadow_mv5;\n" +
		"   for (int i = 0; i < 6; ++i)\n" +
		"   {\n" +
		"      gl_Layer = i;\n" +
		"      for(int j = 0; j < 3; ++j)\n" +
		"      {\n" +
		"         world_pos = modelMatrix * raw_pos[j];\n" +
		"         world_pos /= world_pos.w;\n" +
		"         gl_Position = layerMVP[j] * raw_pos[j];\n" +
		"         world_pos.w = gl_Position.w;\n" +
		"         EmitVertex();\n" +
		"      }\n" +
		"      EndPrimitive();\n" +
		"   }\n" +
		"}")
	return nil
}

func OutputCubeFaceDepthFragment(fs *StageGenerator) {
	fs.AddUniform("cameraPosition", "vec3")
	fs.AddUniform("cameraProperties", "vec2")
	fs.Append("void main() {\n" +
		"    vec3 camPos = vec3( cameraPosition.x, cameraPosition.y, -cameraPosition.z );\n" +
		"    float dist = length( world_pos.xyz - camPos );\n" +
		"    dist = (dist - cameraProperties.x) / (cameraProperties.y - cameraProperties.x);\n" +
		"    fragOutput = vec4(dist, dist, dist, 1.0);\n" +
		"}")
}
