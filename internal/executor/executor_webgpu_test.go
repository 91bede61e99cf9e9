//go:build windows

package executor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpuops/internal/gpu/webgpu"
)

const (
	refChannels = 2
	refHeight   = 4
	refWidth    = 4
	refEpsilon  = 1e-5
)

var (
	refScale    = []float32{2, 0.5}
	refBias     = []float32{0.1, -0.2}
	refMean     = []float32{1, -1}
	refVariance = []float32{4, 0.25}
	refAddY     = []float32{0.5, -0.5}
)

func yamlList(values []float32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// shadedNet runs every shader: conv2d, batch_norm, elementwise_add and relu.
func shadedNet(filter []float32) string {
	return fmt.Sprintf(`
name: shaded
vars:
  - {name: image, shape: [1, %[1]d, %[2]d, %[3]d]}
  - {name: conv_w, shape: [%[1]d, %[1]d, 3, 3], persistable: true, data: %[4]s}
  - {name: bn_scale, shape: [%[1]d], persistable: true, data: %[5]s}
  - {name: bn_bias, shape: [%[1]d], persistable: true, data: %[6]s}
  - {name: bn_mean, shape: [%[1]d], persistable: true, data: %[7]s}
  - {name: bn_var, shape: [%[1]d], persistable: true, data: %[8]s}
  - {name: add_y, shape: [%[1]d], persistable: true, data: %[9]s}
ops:
  - type: feed
    inputs: {X: [feed]}
    outputs: {Out: [image]}
    attrs: {col: 0}
  - type: conv2d
    inputs: {Input: [image], Filter: [conv_w]}
    outputs: {Output: [conv_out]}
    attrs: {strides: [1, 1], paddings: [1, 1], dilations: [1, 1], groups: 1}
  - type: batch_norm
    inputs: {X: [conv_out], Scale: [bn_scale], Bias: [bn_bias], Mean: [bn_mean], Variance: [bn_var]}
    outputs: {Y: [bn_out]}
    attrs: {epsilon: 0.00001}
  - type: elementwise_add
    inputs: {X: [bn_out], Y: [add_y]}
    outputs: {Out: [sum]}
    attrs: {axis: 1}
  - type: relu
    inputs: {X: [sum]}
    outputs: {Out: [relu_out]}
  - type: fetch
    inputs: {X: [relu_out]}
    outputs: {Out: [fetch]}
    attrs: {col: 0}
`, refChannels, refHeight, refWidth, yamlList(filter), yamlList(refScale), yamlList(refBias),
		yamlList(refMean), yamlList(refVariance), yamlList(refAddY))
}

// shadedReference computes shadedNet on the CPU: a 3x3 convolution with
// padding 1 and stride 1, then batch norm, the per-channel add and relu.
func shadedReference(image, filter []float32) []float32 {
	c, h, w := refChannels, refHeight, refWidth
	out := make([]float32, c*h*w)
	for oc := 0; oc < c; oc++ {
		for oh := 0; oh < h; oh++ {
			for ow := 0; ow < w; ow++ {
				var sum float64
				for ic := 0; ic < c; ic++ {
					for kh := 0; kh < 3; kh++ {
						for kw := 0; kw < 3; kw++ {
							ih, iw := oh+kh-1, ow+kw-1
							if ih < 0 || ih >= h || iw < 0 || iw >= w {
								continue
							}
							sum += float64(image[(ic*h+ih)*w+iw]) * float64(filter[((oc*c+ic)*3+kh)*3+kw])
						}
					}
				}

				v := (sum-float64(refMean[oc]))*float64(refScale[oc])/math.Sqrt(float64(refVariance[oc])+refEpsilon) +
					float64(refBias[oc]) + float64(refAddY[oc])
				out[(oc*h+oh)*w+ow] = float32(math.Max(0, v))
			}
		}
	}
	return out
}

func TestWebGPUPredictMatchesReference(t *testing.T) {
	if !webgpu.IsAvailable() {
		t.Skip("WebGPU not available")
	}

	image := make([]float32, refChannels*refHeight*refWidth)
	for i := range image {
		image[i] = float32(i%7) - 3
	}
	filter := make([]float32, refChannels*refChannels*9)
	for i := range filter {
		filter[i] = float32(i%5)*0.25 - 0.5
	}
	want := shadedReference(image, filter)

	for _, maxBatch := range []int{0, 1} {
		t.Run(fmt.Sprintf("maxBatch=%d", maxBatch), func(t *testing.T) {
			dev, err := webgpu.New(webgpu.Options{MaxBatch: maxBatch})
			require.NoError(t, err)
			t.Cleanup(dev.Release)
			e := newExecutor(t, dev, shadedNet(filter))

			results, err := e.Predict(context.Background(), map[string][]float32{"feed": image})
			require.NoError(t, err)
			require.Len(t, results["fetch"], len(want))
			assert.InDeltaSlice(t, want, results["fetch"], 1e-4)

			// A second pass reuses the compiled pipelines and uploaded weights.
			again, err := e.Predict(context.Background(), map[string][]float32{"feed": image})
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, again["fetch"], 1e-4)
		})
	}
}
