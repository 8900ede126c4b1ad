// Package moremath provides the float semantics the WebAssembly numeric
// instructions need and Go's math package doesn't quite give: min/max that
// propagate NaN and respect signed zero, and nearest-ties-to-even rounding
// (spec.md §4.4, f32.min/f32.max/f32.nearest families and their f64
// counterparts).
package moremath

import "math"

// WasmCompatMin doesn't comply with the Wasm spec, so we borrow from the
// original with a change that either one of NaN results in NaN even if
// another is -Inf.
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L74-L91
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax doesn't comply with the Wasm spec, so we borrow from the
// original with a change that either one of NaN results in NaN even if
// another is Inf.
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L42-L59
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatNearestF32 rounds to the nearest integer, ties to even, unlike
// math.Round which rounds ties away from zero.
func WasmCompatNearestF32(f float32) float32 {
	if f != 0 {
		ceil := float32(math.Ceil(float64(f)))
		floor := float32(math.Floor(float64(f)))
		distToCeil := ceil - f
		distToFloor := f - floor
		h := ceil / 2
		if distToCeil < distToFloor {
			f = ceil
		} else if distToCeil == distToFloor && float32(math.Mod(float64(h), 2)) == 0 {
			f = ceil
		} else {
			f = floor
		}
	}
	return f
}

// WasmCompatNearestF64 is WasmCompatNearestF32 for float64.
func WasmCompatNearestF64(f float64) float64 {
	if f != 0 {
		ceil := math.Ceil(f)
		floor := math.Floor(f)
		distToCeil := ceil - f
		distToFloor := f - floor
		h := ceil / 2
		if distToCeil < distToFloor {
			f = ceil
		} else if distToCeil == distToFloor && math.Mod(h, 2) == 0 {
			f = ceil
		} else {
			f = floor
		}
	}
	return f
}
