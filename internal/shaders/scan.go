// Package shaders embeds the compute and graphics shaders used by the
// internal/gpu package. GLSL source is kept as a comment above each
// binary for reference; regenerate with:
//
//	glslc -fshader-stage=<stage> <name>.glsl -o <name>.spv
package shaders

// Image scan compute shader GLSL source (for reference)
//
// #version 450
// #extension GL_KHR_shader_subgroup_arithmetic : require
//
// layout(local_size_x = 256) in;
//
// layout(binding = 0, rgba16f) uniform readonly image2D hdrImage;
// layout(binding = 1) buffer ScanBuffer {
//     float16_t values[];
// } scanBuffer;
//
// layout(push_constant) uniform PushConstants {
//     uint width;
//     uint height;
// } pc;
//
// void main() {
//     uint y = gl_GlobalInvocationID.y;
//     uint x = gl_GlobalInvocationID.x;
//     float localMax = 0.0;
//     if (x < pc.width && y < pc.height) {
//         vec4 texel = imageLoad(hdrImage, ivec2(x, y));
//         localMax = max(texel.r, max(texel.g, texel.b));
//     }
//     float subgroupMax = subgroupMax(localMax);
//     if (subgroupElect()) {
//         uint outputsPerRow = (pc.width + gl_SubgroupSize - 1) / gl_SubgroupSize;
//         uint index = y * outputsPerRow + (x / gl_SubgroupSize);
//         scanBuffer.values[index] = float16_t(subgroupMax);
//     }
// }

// ImageScanComputeSPV is the compiled image-pass reduction shader
// (internal/gpu's imagePass): one subgroup-cooperative maximum per
// subgroup of pixels, written to the scan buffer's read half.
var ImageScanComputeSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}

// Buffer scan compute shader GLSL source (for reference)
//
// #version 450
// #extension GL_KHR_shader_subgroup_arithmetic : require
//
// layout(local_size_x = 1024) in;
//
// layout(binding = 0) buffer ReadBuffer {
//     float16_t values[];
// } readBuffer;
// layout(binding = 1) buffer WriteBuffer {
//     float16_t values[];
// } writeBuffer;
//
// layout(push_constant) uniform PushConstants {
//     uint inputLength;
// } pc;
//
// // One slot per subgroup; 1024 threads over the minimum subgroup
// // width of 8 gives at most 128 subgroups.
// shared float subgroupMaxima[128];
//
// void main() {
//     uint blockSize = gl_WorkGroupSize.x * gl_SubgroupSize;
//     uint base = gl_WorkGroupID.x * blockSize;
//     float v = 0.0;
//     for (uint i = 0; i < gl_SubgroupSize; i++) {
//         uint index = base + i * gl_WorkGroupSize.x + gl_LocalInvocationID.x;
//         if (index < pc.inputLength) {
//             v = max(v, float(readBuffer.values[index]));
//         }
//     }
//     v = subgroupMax(v);
//     if (subgroupElect()) {
//         subgroupMaxima[gl_SubgroupID] = v;
//     }
//     barrier();
//     if (gl_LocalInvocationID.x == 0) {
//         float m = 0.0;
//         for (uint i = 0; i < gl_NumSubgroups; i++) {
//             m = max(m, subgroupMaxima[i]);
//         }
//         writeBuffer.values[gl_WorkGroupID.x] = float16_t(m);
//     }
// }

// BufferScanComputeSPV is the compiled buffer-pass reduction shader
// (internal/gpu's bufferPass): each thread folds gl_SubgroupSize
// strided elements, subgroups collapse cooperatively, and one value
// per workgroup is written, shrinking the input by 1024*subgroupSize
// per dispatch until one value remains.
var BufferScanComputeSPV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	// Placeholder. Compile the GLSL above with glslc to produce the
	// real binary.
}
