// Package kernel implements the stereo mixdown inner loops (§4.5):
// add, scale, copy-scaled, and add-scaled over separate left/right
// planar buffers. Go has no portable SIMD intrinsics, so — as is
// idiomatic for Go DSP code (grounded on the pack's
// justyntemme-vst3go/pkg/dsp/mix style of small, allocation-free,
// loop-per-sample helpers) — these are written as unrolled scalar
// loops the compiler can auto-vectorize, processed in 64-sample blocks
// (16 lanes of width 4, mirroring the SIMD lane width and unroll
// factor named in §4.5) with a scalar tail for any remainder.
package kernel

const (
	// laneWidth mirrors the SIMD lane width named in spec.md §4.5.
	laneWidth = 4
	// unrollLanes mirrors the 16-lane / 64-sample-per-iteration unroll
	// factor named in spec.md §4.5.
	unrollLanes  = 16
	unrollSamples = laneWidth * unrollLanes
)

// Add performs dst += src, in place, per channel.
func Add(dstL, dstR, srcL, srcR []float32) {
	n := minLen(dstL, dstR, srcL, srcR)
	i := 0
	for ; i+unrollSamples <= n; i += unrollSamples {
		for j := 0; j < unrollSamples; j++ {
			dstL[i+j] += srcL[i+j]
			dstR[i+j] += srcR[i+j]
		}
	}
	for ; i < n; i++ {
		dstL[i] += srcL[i]
		dstR[i] += srcR[i]
	}
}

// Mul scales dst in place by gain, per channel.
func Mul(dstL, dstR []float32, gain float32) {
	n := minLen(dstL, dstR)
	i := 0
	for ; i+unrollSamples <= n; i += unrollSamples {
		for j := 0; j < unrollSamples; j++ {
			dstL[i+j] *= gain
			dstR[i+j] *= gain
		}
	}
	for ; i < n; i++ {
		dstL[i] *= gain
		dstR[i] *= gain
	}
}

// CopyScaled writes dst = src * gain, per channel, overwriting dst.
func CopyScaled(dstL, dstR, srcL, srcR []float32, gain float32) {
	n := minLen(dstL, dstR, srcL, srcR)
	i := 0
	for ; i+unrollSamples <= n; i += unrollSamples {
		for j := 0; j < unrollSamples; j++ {
			dstL[i+j] = srcL[i+j] * gain
			dstR[i+j] = srcR[i+j] * gain
		}
	}
	for ; i < n; i++ {
		dstL[i] = srcL[i] * gain
		dstR[i] = srcR[i] * gain
	}
}

// AddScaled performs dst += src * gain, per channel.
func AddScaled(dstL, dstR, srcL, srcR []float32, gain float32) {
	n := minLen(dstL, dstR, srcL, srcR)
	i := 0
	for ; i+unrollSamples <= n; i += unrollSamples {
		for j := 0; j < unrollSamples; j++ {
			dstL[i+j] += srcL[i+j] * gain
			dstR[i+j] += srcR[i+j] * gain
		}
	}
	for ; i < n; i++ {
		dstL[i] += srcL[i] * gain
		dstR[i] += srcR[i] * gain
	}
}

// Zero clears a stereo pair to silence.
func Zero(l, r []float32) {
	for i := range l {
		l[i] = 0
	}
	for i := range r {
		r[i] = 0
	}
}

func minLen(bufs ...[]float32) int {
	n := len(bufs[0])
	for _, b := range bufs[1:] {
		if len(b) < n {
			n = len(b)
		}
	}
	return n
}
