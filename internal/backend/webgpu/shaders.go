//go:build windows

package webgpu

// WGSL compute shaders for the fused kernels.
// Using string constants instead of embed for simplicity.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// maxWorkgroupsPerDim is the WebGPU limit on workgroups along one dimension.
const maxWorkgroupsPerDim = 65535

// flatIndex lets 1D kernels run on a 2D grid of workgroups, so element
// counts are not capped at maxWorkgroupsPerDim*workgroupSize.
const flatIndex = `
fn flat_index(gid: vec3<u32>, nwg: vec3<u32>) -> u32 {
    return gid.y * nwg.x * 256u + gid.x;
}
`

// seq2colShader windows an (M, N) sequence into (M, N*(2*nW+1)).
const seq2colShader = flatIndex + `
@group(0) @binding(0) var<storage, read> seq: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    M: u32,
    N: u32,
    nW: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    let window = 2u * params.nW + 1u;
    let cols = params.N * window;
    if (idx >= params.M * cols) {
        return;
    }
    let i = idx / cols;
    let r = idx % cols;
    let w = r / params.N;
    let c = r % params.N;
    let j = i32(i) + i32(w) - i32(params.nW);
    if (j < 0 || j >= i32(params.M)) {
        result[idx] = 0.0;
    } else {
        result[idx] = seq[u32(j) * params.N + c];
    }
}
`

// backpropSeq2colShader sums every window slot a row was copied into.
const backpropSeq2colShader = flatIndex + `
@group(0) @binding(0) var<storage, read> dY: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    M: u32,
    N: u32,
    nW: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.M * params.N) {
        return;
    }
    let j = i32(idx / params.N);
    let c = idx % params.N;
    let window = 2u * params.nW + 1u;
    var sum: f32 = 0.0;
    for (var w: u32 = 0u; w < window; w = w + 1u) {
        let i = j + i32(params.nW) - i32(w);
        if (i >= 0 && i < i32(params.M)) {
            sum = sum + dY[u32(i) * params.N * window + w * params.N + c];
        }
    }
    result[idx] = sum;
}
`

// poolShader sums (or averages) the rows of each segment, one thread per (b, c).
const poolShader = flatIndex + `
@group(0) @binding(0) var<storage, read> X: array<f32>;
@group(0) @binding(1) var<storage, read> starts: array<i32>;
@group(0) @binding(2) var<storage, read> lengths: array<i32>;
@group(0) @binding(3) var<storage, read_write> result: array<f32>;

struct Params {
    B: u32,
    N: u32,
    mean: u32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.B * params.N) {
        return;
    }
    let b = idx / params.N;
    let c = idx % params.N;
    let start = u32(starts[b]);
    let n = u32(lengths[b]);
    var sum: f32 = 0.0;
    for (var r: u32 = 0u; r < n; r = r + 1u) {
        sum = sum + X[(start + r) * params.N + c];
    }
    if (params.mean != 0u && n > 0u) {
        sum = sum / f32(n);
    }
    result[idx] = sum;
}
`

// maxPoolShader takes per-column segment maxima and their row offsets.
const maxPoolShader = flatIndex + `
@group(0) @binding(0) var<storage, read> X: array<f32>;
@group(0) @binding(1) var<storage, read> starts: array<i32>;
@group(0) @binding(2) var<storage, read> lengths: array<i32>;
@group(0) @binding(3) var<storage, read_write> maxes: array<f32>;
@group(0) @binding(4) var<storage, read_write> which: array<i32>;

struct Params {
    B: u32,
    N: u32,
}
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.B * params.N) {
        return;
    }
    let b = idx / params.N;
    let c = idx % params.N;
    let start = u32(starts[b]);
    let n = u32(lengths[b]);
    var best = X[start * params.N + c];
    var arg: i32 = 0;
    for (var r: u32 = 1u; r < n; r = r + 1u) {
        let v = X[(start + r) * params.N + c];
        if (v > best) {
            best = v;
            arg = i32(r);
        }
    }
    maxes[idx] = best;
    which[idx] = arg;
}
`

// backpropPoolShader broadcasts segment gradients back to their rows.
// rows maps every output row to its segment.
const backpropPoolShader = flatIndex + `
@group(0) @binding(0) var<storage, read> d: array<f32>;
@group(0) @binding(1) var<storage, read> rows: array<i32>;
@group(0) @binding(2) var<storage, read> lengths: array<i32>;
@group(0) @binding(3) var<storage, read_write> result: array<f32>;

struct Params {
    total: u32,
    N: u32,
    mean: u32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.total * params.N) {
        return;
    }
    let r = idx / params.N;
    let c = idx % params.N;
    let b = u32(rows[r]);
    var g = d[b * params.N + c];
    if (params.mean != 0u) {
        g = g / f32(lengths[b]);
    }
    result[idx] = g;
}
`

// backpropMaxPoolShader routes segment gradients to the argmax rows.
const backpropMaxPoolShader = flatIndex + `
@group(0) @binding(0) var<storage, read> d: array<f32>;
@group(0) @binding(1) var<storage, read> which: array<i32>;
@group(0) @binding(2) var<storage, read> rows: array<i32>;
@group(0) @binding(3) var<storage, read> starts: array<i32>;
@group(0) @binding(4) var<storage, read_write> result: array<f32>;

struct Params {
    total: u32,
    N: u32,
}
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.total * params.N) {
        return;
    }
    let r = idx / params.N;
    let c = idx % params.N;
    let b = u32(rows[r]);
    let src = b * params.N + c;
    if (i32(r) - starts[b] == which[src]) {
        result[idx] = d[src];
    } else {
        result[idx] = 0.0;
    }
}
`

// reluShader performs ReLU activation: result = max(0, x).
const reluShader = flatIndex + `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx < params.size) {
        result[idx] = select(0.0, input[idx], input[idx] > 0.0);
    }
}
`

// reluInplaceShader overwrites x with max(0, x).
const reluInplaceShader = flatIndex + `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx < params.size) {
        data[idx] = select(0.0, data[idx], data[idx] > 0.0);
    }
}
`

// reluBackwardShader computes dX = dY * (Y > 0).
const reluBackwardShader = flatIndex + `
@group(0) @binding(0) var<storage, read> dY: array<f32>;
@group(0) @binding(1) var<storage, read> Y: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx < params.size) {
        result[idx] = select(0.0, dY[idx], Y[idx] > 0.0);
    }
}
`

// reluBackwardInplaceShader masks dY by Y > 0 in place.
const reluBackwardInplaceShader = flatIndex + `
@group(0) @binding(0) var<storage, read_write> dY: array<f32>;
@group(0) @binding(1) var<storage, read> Y: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx < params.size) {
        dY[idx] = select(0.0, dY[idx], Y[idx] > 0.0);
    }
}
`

// mishShader computes x * tanh(softplus(x)), identity above the threshold.
const mishShader = flatIndex + `
@group(0) @binding(0) var<storage, read> X: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    threshold: f32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.size) {
        return;
    }
    let x = X[idx];
    if (x >= params.threshold) {
        result[idx] = x;
    } else {
        result[idx] = x * tanh(log(1.0 + exp(x)));
    }
}
`

// mishBackwardShader computes dY * e^x * omega / delta^2.
const mishBackwardShader = flatIndex + `
@group(0) @binding(0) var<storage, read> dY: array<f32>;
@group(0) @binding(1) var<storage, read> X: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    threshold: f32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.size) {
        return;
    }
    let x = X[idx];
    if (x >= params.threshold) {
        result[idx] = dY[idx];
        return;
    }
    let e = exp(x);
    let e2 = e * e;
    let e3 = e2 * e;
    let omega = 4.0 * (x + 1.0) + 4.0 * e2 + e3 + e * (4.0 * x + 6.0);
    let delta = 2.0 * e + e2 + 2.0;
    result[idx] = dY[idx] * e * omega / (delta * delta);
}
`

// maxoutShader reduces (B, O, P) over its pieces, one thread per (b, o).
const maxoutShader = flatIndex + `
@group(0) @binding(0) var<storage, read> X: array<f32>;
@group(0) @binding(1) var<storage, read_write> best: array<f32>;
@group(0) @binding(2) var<storage, read_write> which: array<i32>;

struct Params {
    size: u32,
    P: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.size) {
        return;
    }
    let base = idx * params.P;
    var arg: u32 = 0u;
    for (var p: u32 = 1u; p < params.P; p = p + 1u) {
        if (X[base + p] > X[base + arg]) {
            arg = p;
        }
    }
    best[idx] = X[base + arg];
    which[idx] = i32(arg);
}
`

// maxoutBackwardShader routes (B, O) gradients to the winning piece.
const maxoutBackwardShader = flatIndex + `
@group(0) @binding(0) var<storage, read> dY: array<f32>;
@group(0) @binding(1) var<storage, read> which: array<i32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    P: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.size) {
        return;
    }
    let bo = idx / params.P;
    let p = idx % params.P;
    result[idx] = select(0.0, dY[bo], which[bo] == i32(p));
}
`

// hashShader computes MurmurHash3 x86_128 of each 8-byte id.
// ids holds every uint64 as its (low, high) 32-bit words.
const hashShader = flatIndex + `
@group(0) @binding(0) var<storage, read> ids: array<u32>;
@group(0) @binding(1) var<storage, read_write> result: array<u32>;

struct Params {
    size: u32,
    seed: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

fn rotl(x: u32, r: u32) -> u32 {
    return (x << r) | (x >> (32u - r));
}

fn fmix(v: u32) -> u32 {
    var h = v;
    h ^= h >> 16u;
    h *= 0x85ebca6bu;
    h ^= h >> 13u;
    h *= 0xc2b2ae35u;
    h ^= h >> 16u;
    return h;
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.size) {
        return;
    }
    var h1 = params.seed;
    var h2 = params.seed;
    var h3 = params.seed;
    var h4 = params.seed;

    var k2 = ids[2u * idx + 1u];
    k2 *= 0xab0e9789u;
    k2 = rotl(k2, 16u);
    k2 *= 0x38b34ae5u;
    h2 ^= k2;

    var k1 = ids[2u * idx];
    k1 *= 0x239b961bu;
    k1 = rotl(k1, 15u);
    k1 *= 0xab0e9789u;
    h1 ^= k1;

    h1 ^= 8u;
    h2 ^= 8u;
    h3 ^= 8u;
    h4 ^= 8u;

    h1 += h2 + h3 + h4;
    h2 += h1;
    h3 += h1;
    h4 += h1;

    h1 = fmix(h1);
    h2 = fmix(h2);
    h3 = fmix(h3);
    h4 = fmix(h4);

    h1 += h2 + h3 + h4;
    h2 += h1;
    h3 += h1;
    h4 += h1;

    result[4u * idx] = h1;
    result[4u * idx + 1u] = h2;
    result[4u * idx + 2u] = h3;
    result[4u * idx + 3u] = h4;
}
`

// scatterAddShader adds inputs[i] into out[ids[i]]. Each thread owns one
// output element and scans every id.
const scatterAddShader = flatIndex + `
@group(0) @binding(0) var<storage, read_write> dst: array<f32>;
@group(0) @binding(1) var<storage, read> ids: array<i32>;
@group(0) @binding(2) var<storage, read> inputs: array<f32>;

struct Params {
    rows: u32,
    width: u32,
    count: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.rows * params.width) {
        return;
    }
    let r = i32(idx / params.width);
    let c = idx % params.width;
    var acc: f32 = 0.0;
    for (var i: u32 = 0u; i < params.count; i = i + 1u) {
        if (ids[i] == r) {
            acc = acc + inputs[i * params.width + c];
        }
    }
    dst[idx] = dst[idx] + acc;
}
`

// adamShader applies one fused Adam step and zeroes the gradient.
const adamShader = flatIndex + `
@group(0) @binding(0) var<storage, read_write> weights: array<f32>;
@group(0) @binding(1) var<storage, read_write> gradient: array<f32>;
@group(0) @binding(2) var<storage, read_write> mom1: array<f32>;
@group(0) @binding(3) var<storage, read_write> mom2: array<f32>;

struct Params {
    size: u32,
    one_minus_beta1: f32,
    one_minus_beta2: f32,
    eps: f32,
    learn_rate: f32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.size) {
        return;
    }
    let g = gradient[idx];
    let m = mom1[idx] + params.one_minus_beta1 * (g - mom1[idx]);
    let v = mom2[idx] + params.one_minus_beta2 * (g * g - mom2[idx]);
    mom1[idx] = m;
    mom2[idx] = v;
    weights[idx] = weights[idx] - params.learn_rate * m / (sqrt(v) + params.eps);
    gradient[idx] = 0.0;
}
`

// sumSquaresShader writes one partial sum of squares per workgroup.
// Threads stride over the input, so any size fits a fixed grid.
const sumSquaresShader = `
@group(0) @binding(0) var<storage, read> data: array<f32>;
@group(0) @binding(1) var<storage, read_write> partials: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

var<workgroup> shared_data: array<f32, 256>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>,
        @builtin(local_invocation_id) lid: vec3<u32>,
        @builtin(workgroup_id) wid: vec3<u32>,
        @builtin(num_workgroups) nwg: vec3<u32>) {
    let stride = nwg.x * 256u;
    var sum: f32 = 0.0;
    for (var i = gid.x; i < params.size; i = i + stride) {
        sum = sum + data[i] * data[i];
    }
    shared_data[lid.x] = sum;
    workgroupBarrier();

    for (var s = 128u; s > 0u; s = s >> 1u) {
        if (lid.x < s) {
            shared_data[lid.x] = shared_data[lid.x] + shared_data[lid.x + s];
        }
        workgroupBarrier();
    }

    if (lid.x == 0u) {
        partials[wid.x] = shared_data[0];
    }
}
`

// scaleShader multiplies a buffer in place by a scalar.
const scaleShader = flatIndex + `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

struct Params {
    size: u32,
    scale: f32,
}
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx < params.size) {
        data[idx] = data[idx] * params.scale;
    }
}
`

// normalInitShader fills a buffer with N(0, scale^2) samples using a PCG hash
// of (seed, index) and the Box-Muller transform.
const normalInitShader = flatIndex + `
@group(0) @binding(0) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    seed: u32,
    scale: f32,
}
@group(0) @binding(1) var<uniform> params: Params;

fn pcg(v: u32) -> u32 {
    let state = v * 747796405u + 2891336453u;
    let word = ((state >> ((state >> 28u) + 4u)) ^ state) * 277803737u;
    return (word >> 22u) ^ word;
}

// uniform01 maps a hash to the open interval (0, 1).
fn uniform01(h: u32) -> f32 {
    return (f32(h >> 8u) + 0.5) / 16777216.0;
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let idx = flat_index(gid, nwg);
    if (idx >= params.size) {
        return;
    }
    let h1 = pcg(idx ^ pcg(params.seed));
    let h2 = pcg(h1 ^ 0x9e3779b9u);
    let u1 = uniform01(h1);
    let u2 = uniform01(h2);
    let z = sqrt(-2.0 * log(u1)) * cos(6.283185307 * u2);
    result[idx] = z * params.scale;
}
`

// gemmShader computes C[b] = op(A[b]) @ op(B[b]) for row-major storage.
// A is stored (K, M) when transA is set, B is stored (N, K) when transB is set.
const gemmShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    batch: u32,
    M: u32,
    K: u32,
    N: u32,
    transA: u32,
    transB: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let batch_idx = global_id.z;
    let row = global_id.y;
    let col = global_id.x;

    if (batch_idx >= params.batch || row >= params.M || col >= params.N) {
        return;
    }

    let a_batch_offset = batch_idx * params.M * params.K;
    let b_batch_offset = batch_idx * params.K * params.N;
    let c_batch_offset = batch_idx * params.M * params.N;

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        var a_idx = a_batch_offset + row * params.K + k;
        if (params.transA != 0u) {
            a_idx = a_batch_offset + k * params.M + row;
        }
        var b_idx = b_batch_offset + k * params.N + col;
        if (params.transB != 0u) {
            b_idx = b_batch_offset + col * params.K + k;
        }
        sum = sum + a[a_idx] * b[b_idx];
    }

    let c_idx = c_batch_offset + row * params.N + col;
    result[c_idx] = sum;
}
`
