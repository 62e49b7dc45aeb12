// Package distance provides the distance metrics used by the vector index.
//
// Three metrics are supported: cosine distance (1 - cosine similarity),
// Euclidean (L2) distance, and negative dot product. All of them follow the
// "smaller is closer" convention, so the calling code can treat them
// uniformly and expose similarity as 1 - distance.
//
// The package uses runtime CPU detection to dispatch the dot-product kernel
// to Gonum's BLAS implementation (SIMD) where the hardware supports it, with
// a pure Go fallback everywhere else.
package distance

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/blas/gonum"
)

func init() {
	if cpuid.CPU.Has(cpuid.AVX2) {
		dotKernel = dotProductGonum
		log.Println("semvec compute engine: Gonum (SIMD) dot-product kernel")
	} else {
		log.Println("semvec compute engine: pure Go dot-product kernel")
	}
}

// Metric identifies a distance function.
type Metric string

const (
	// Cosine is 1 - cosine similarity. Zero-magnitude vectors yield the
	// degenerate distance 1.0 (similarity 0).
	Cosine Metric = "cosine"
	// Euclidean is the L2 distance.
	Euclidean Metric = "euclidean"
	// DotProduct is the negated dot product, so that larger dot products
	// sort as smaller distances.
	DotProduct Metric = "dot_product"
)

// Func computes the distance between two vectors of equal length.
type Func func(v1, v2 []float32) (float64, error)

// ErrLengthMismatch is returned when the two vectors differ in length.
var ErrLengthMismatch = errors.New("distance: vectors must have the same length")

// dotKernel is the dot-product implementation selected at init time.
var dotKernel = dotProductGo

var gonumEngine = gonum.Implementation{}

// --- Kernels ---

func dotProductGo(v1, v2 []float32) float64 {
	var sum float32
	for i := range v1 {
		sum += v1[i] * v2[i]
	}
	return float64(sum)
}

func dotProductGonum(v1, v2 []float32) float64 {
	return float64(gonumEngine.Sdot(len(v1), v1, 1, v2, 1))
}

// --- Metric implementations ---

func cosineDistance(v1, v2 []float32) (float64, error) {
	if len(v1) != len(v2) {
		return 0, ErrLengthMismatch
	}
	dot := dotKernel(v1, v2)
	n1 := dotKernel(v1, v1)
	n2 := dotKernel(v2, v2)
	if n1 == 0 || n2 == 0 {
		return 1.0, nil
	}
	sim := dot / (math.Sqrt(n1) * math.Sqrt(n2))
	if sim > 1.0 {
		sim = 1.0
	}
	if sim < -1.0 {
		sim = -1.0
	}
	return 1.0 - sim, nil
}

func euclideanDistance(v1, v2 []float32) (float64, error) {
	if len(v1) != len(v2) {
		return 0, ErrLengthMismatch
	}
	var sum float64
	for i := range v1 {
		diff := float64(v1[i] - v2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}

func negativeDotProduct(v1, v2 []float32) (float64, error) {
	if len(v1) != len(v2) {
		return 0, ErrLengthMismatch
	}
	return -dotKernel(v1, v2), nil
}

// metricFuncs maps each metric to its implementation.
var metricFuncs = map[Metric]Func{
	Cosine:     cosineDistance,
	Euclidean:  euclideanDistance,
	DotProduct: negativeDotProduct,
}

// GetFunc returns the distance function for the given metric.
// It returns an error if the metric is not supported.
func GetFunc(metric Metric) (Func, error) {
	fn, ok := metricFuncs[metric]
	if !ok {
		return nil, fmt.Errorf("metric '%s' not supported", metric)
	}
	return fn, nil
}

// Similarity converts a distance into the similarity reported to callers.
//
// For cosine the result is the true cosine similarity. The other metrics
// inherit the same 1 - distance convention for API uniformity even though it
// is not a normalized similarity for them; this is a documented limitation.
func Similarity(dist float64) float64 {
	return 1.0 - dist
}
