package shaders

// Tonemap compute shader GLSL source (for reference)
//
// #version 450
//
// layout(local_size_x = 8, local_size_y = 8) in;
//
// layout(binding = 0, rgba16f) uniform readonly image2D hdrImage;
// layout(binding = 1, rgba8) uniform writeonly image2D sdrImage;
//
// layout(push_constant) uniform PushConstants {
//     float whitepoint;
// } pc;
//
// float srgbOETF(float c) {
//     return c <= 0.0031308 ? 12.92 * c : 1.055 * pow(c, 1.0 / 2.4) - 0.055;
// }
//
// void main() {
//     ivec2 coord = ivec2(gl_GlobalInvocationID.xy);
//     ivec2 size = imageSize(hdrImage);
//     if (coord.x >= size.x || coord.y >= size.y) {
//         return;
//     }
//     vec4 texel = imageLoad(hdrImage, coord);
//     vec3 linear = clamp(texel.rgb, vec3(0.0), vec3(pc.whitepoint)) / pc.whitepoint;
//     vec3 encoded = vec3(srgbOETF(linear.r), srgbOETF(linear.g), srgbOETF(linear.b));
//     imageStore(sdrImage, coord, vec4(encoded, 1.0));
// }

// TonemapComputeSPV is the compiled HDR->SDR tonemap shader
// (internal/gpu's Tonemapper): clamp to whitepoint, normalise, apply
// the sRGB OETF, write opaque RGBA8.
var TonemapComputeSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}
