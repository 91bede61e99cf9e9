package operators

// WGSL compute shaders for the built-in kernels. Element-wise shaders use
// gpu.WorkgroupSize invocations per workgroup.

// reluShader applies ReLU activation: result = max(0, x).
const reluShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = max(0.0, input[idx]);
    }
}
`

// elementwiseAddShader adds y to x, repeating y over the dimensions of x
// outside [axis, axis+rank(y)): result = x + y[(idx / post) % n].
const elementwiseAddShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> y: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    n: u32,
    post: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = x[idx] + y[(idx / params.post) % params.n];
    }
}
`

// batchNormShader applies inference-mode batch normalization per channel:
// result = (x - mean[c]) * scale[c] / sqrt(variance[c] + epsilon) + bias[c].
// Input layout: [batch, channels, spatial...].
const batchNormShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read> scale: array<f32>;
@group(0) @binding(2) var<storage, read> bias: array<f32>;
@group(0) @binding(3) var<storage, read> mean: array<f32>;
@group(0) @binding(4) var<storage, read> variance: array<f32>;
@group(0) @binding(5) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    channels: u32,
    spatial: u32,
    epsilon: f32,
}
@group(0) @binding(6) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        let c = (idx / params.spatial) % params.channels;
        let inv_std = inverseSqrt(variance[c] + params.epsilon);
        result[idx] = (input[idx] - mean[c]) * scale[c] * inv_std + bias[c];
    }
}
`

// conv2dWorkgroup is the x/y workgroup edge of conv2dShader.
const conv2dWorkgroup = 8

// conv2dShader performs 2D convolution.
// Input shape: [batch, in_channels, height, width].
// Filter shape: [out_channels, in_channels, kH, kW].
// Output shape: [batch, out_channels, out_height, out_width].
const conv2dShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read> kernel: array<f32>;
@group(0) @binding(2) var<storage, read_write> output: array<f32>;

struct Params {
    batch: u32,
    in_channels: u32,
    in_height: u32,
    in_width: u32,
    out_channels: u32,
    kernel_h: u32,
    kernel_w: u32,
    stride: u32,
    padding: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let out_width = (params.in_width + 2u * params.padding - params.kernel_w) / params.stride + 1u;
    let out_height = (params.in_height + 2u * params.padding - params.kernel_h) / params.stride + 1u;

    let b = global_id.z / params.out_channels;
    let oc = global_id.z % params.out_channels;
    let oh = global_id.y;
    let ow = global_id.x;

    if (b >= params.batch || oh >= out_height || ow >= out_width) {
        return;
    }

    var sum: f32 = 0.0;

    for (var ic: u32 = 0u; ic < params.in_channels; ic = ic + 1u) {
        for (var kh: u32 = 0u; kh < params.kernel_h; kh = kh + 1u) {
            for (var kw: u32 = 0u; kw < params.kernel_w; kw = kw + 1u) {
                let ih = oh * params.stride + kh;
                let iw = ow * params.stride + kw;

                // Out-of-range taps wrap around and fail the bounds check.
                let ih_pad = ih - params.padding;
                let iw_pad = iw - params.padding;

                if (ih_pad < params.in_height && iw_pad < params.in_width) {
                    let in_idx = b * params.in_channels * params.in_height * params.in_width +
                                 ic * params.in_height * params.in_width +
                                 ih_pad * params.in_width +
                                 iw_pad;

                    let k_idx = oc * params.in_channels * params.kernel_h * params.kernel_w +
                                ic * params.kernel_h * params.kernel_w +
                                kh * params.kernel_w +
                                kw;

                    sum = sum + input[in_idx] * kernel[k_idx];
                }
            }
        }
    }

    let out_idx = b * params.out_channels * out_height * out_width +
                  oc * out_height * out_width +
                  oh * out_width +
                  ow;
    output[out_idx] = sum;
}
`
