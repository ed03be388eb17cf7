package shaders

// Capture vertex shader GLSL source (for reference)
//
// #version 450
//
// layout(location = 0) out vec2 uv;
//
// // Full-screen triangle strip: four vertices indexed by
// // gl_VertexIndex, UVs spanning {0..1} across the quad.
// vec2 positions[4] = vec2[](
//     vec2(-1.0, -1.0), vec2(1.0, -1.0), vec2(-1.0, 1.0), vec2(1.0, 1.0)
// );
//
// void main() {
//     vec2 pos = positions[gl_VertexIndex];
//     gl_Position = vec4(pos, 0.0, 1.0);
//     uv = pos * 0.5 + 0.5;
// }

// CaptureVertexSPV positions the full-screen quad the capture is drawn
// onto.
var CaptureVertexSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}

// Capture fragment shader GLSL source (for reference)
//
// #version 450
//
// layout(location = 0) in vec2 uv;
// layout(location = 0) out vec4 outColor;
//
// layout(binding = 0) uniform sampler2D capture;
//
// layout(push_constant) uniform PushConstants {
//     float maxBrightness;
// } pc;
//
// // Set when the surface is not HDR linear-sRGB and the OETF must be
// // re-applied before presentation.
// layout(constant_id = 0) const bool applyOETF = false;
//
// float srgbOETF(float c) {
//     return c <= 0.0031308 ? 12.92 * c : 1.055 * pow(c, 1.0 / 2.4) - 0.055;
// }
//
// void main() {
//     vec3 color = texture(capture, uv).rgb / pc.maxBrightness;
//     if (applyOETF) {
//         color = vec3(srgbOETF(color.r), srgbOETF(color.g), srgbOETF(color.b));
//     }
//     outColor = vec4(color, 1.0);
// }

// CaptureFragmentSPV samples the HDR capture, normalises by the
// monitor's max brightness, and optionally re-applies the sRGB OETF
// via a specialisation constant when the surface is not HDR-native.
var CaptureFragmentSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}

// Selection vertex shader GLSL source (for reference)
//
// #version 450
//
// layout(location = 0) in vec2 inPosition;
// layout(location = 1) in float inMovable;
// layout(location = 0) out vec4 fragColor;
//
// layout(push_constant) uniform PushConstants {
//     vec2 selectionStart;
//     vec2 selectionEnd;
// } pc;
//
// // The 10-vertex "picture frame" strip: non-movable vertices stay at
// // the screen corners baked into the vertex buffer; movable vertices
// // snap to the selection corners carried in the push constant.
// void main() {
//     vec2 pos = inPosition;
//     if (inMovable > 0.5) {
//         pos.x = inPosition.x < 0.0 ? min(pc.selectionStart.x, pc.selectionEnd.x)
//                                    : max(pc.selectionStart.x, pc.selectionEnd.x);
//         pos.y = inPosition.y < 0.0 ? min(pc.selectionStart.y, pc.selectionEnd.y)
//                                    : max(pc.selectionStart.y, pc.selectionEnd.y);
//     }
//     gl_Position = vec4(pos, 0.0, 1.0);
//     fragColor = vec4(0.0, 0.0, 0.0, 0.5);
// }

// SelectionVertexSPV positions the picture-frame quad that shades
// everything outside the selection.
var SelectionVertexSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}

// Selection fragment shader GLSL source (for reference)
//
// #version 450
//
// layout(location = 0) in vec4 fragColor;
// layout(location = 0) out vec4 outColor;
//
// void main() {
//     outColor = fragColor;
// }

// SelectionFragmentSPV passes the semi-transparent shade colour
// through for source-alpha blending.
var SelectionFragmentSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}

// Line vertex shader GLSL source (for reference)
//
// #version 450
//
// layout(location = 0) out vec4 fragColor;
//
// layout(push_constant) uniform PushConstants {
//     vec2 start;
//     vec2 end;
//     vec4 color;
// } pc;
//
// void main() {
//     gl_Position = vec4(gl_VertexIndex == 0 ? pc.start : pc.end, 0.0, 1.0);
//     fragColor = pc.color;
// }

// LineVertexSPV emits one line segment from the push-constant
// endpoints; the border and crosshair guides are drawn as repeated
// draws with different constants.
var LineVertexSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}

// Line fragment shader GLSL source (for reference)
//
// #version 450
//
// layout(location = 0) in vec4 fragColor;
// layout(location = 0) out vec4 outColor;
//
// void main() {
//     outColor = fragColor;
// }

// LineFragmentSPV passes the line colour through.
var LineFragmentSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}
