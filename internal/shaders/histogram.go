package shaders

// Histogram compute shader GLSL source (for reference)
//
// #version 450
//
// layout(local_size_x = 16, local_size_y = 16) in;
//
// layout(binding = 0, rgba16f) uniform readonly image2D hdrImage;
// layout(binding = 1) buffer HistogramBuffer {
//     uint bins[256];
// } histogram;
//
// layout(push_constant) uniform PushConstants {
//     uint width;
//     uint height;
//     float binWidth;
// } pc;
//
// void main() {
//     uint x = gl_GlobalInvocationID.x;
//     uint y = gl_GlobalInvocationID.y;
//     if (x >= pc.width || y >= pc.height) {
//         return;
//     }
//     vec4 texel = imageLoad(hdrImage, ivec2(x, y));
//     atomicAdd(histogram.bins[min(uint(texel.r / pc.binWidth), 255u)], 1u);
//     atomicAdd(histogram.bins[min(uint(texel.g / pc.binWidth), 255u)], 1u);
//     atomicAdd(histogram.bins[min(uint(texel.b / pc.binWidth), 255u)], 1u);
// }

// HistogramComputeSPV is the compiled 256-bin histogram shader
// (internal/gpu's Histogram Generator): one atomic increment per
// colour component per pixel, so a W x H image contributes 3*W*H
// samples in total.
var HistogramComputeSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}
