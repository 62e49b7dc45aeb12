// Package phi defines the golden-ratio constant family used for similarity
// thresholds across the engine.
//
// Every threshold in the pattern layer derives from these constants. Define
// them once here; never redeclare φ elsewhere.
package phi

import "math"

// Phi is the golden ratio, 1.6180339887498948...
var Phi = (1 + math.Sqrt(5)) / 2

// Inv is 1/φ ≈ 0.618, the default cluster / dedup threshold.
var Inv = Phi - 1

// Inv2 is 1/φ² ≈ 0.382, the default similarity floor for pattern matching.
var Inv2 = 2 - Phi

// Inv3 is 1/φ³ ≈ 0.236, the deep-uncertainty marker.
var Inv3 = Inv2 * Inv

// MaxConfidence caps pattern confidence at 1/φ. A pattern never fully
// trusts itself.
var MaxConfidence = Inv
