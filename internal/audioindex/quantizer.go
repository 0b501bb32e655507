package audioindex

import (
	"fmt"
	"path/filepath"

	"github.com/quaverlab/quaver/internal/artifact"
)

// Quantizer maps a frames × D descriptor matrix onto a codeword-count
// histogram of fixed length K. Training the centroids happens outside
// this engine; the trained codebook is consumed as an artifact.
type Quantizer interface {
	Quantize(frames [][]float64) ([]float64, error)
}

// Codebook is the persisted quantizer: centroid matrix plus the
// per-dimension normalization constants. The same constants apply at
// index time and at query time; they travel with the centroids so the
// two can never drift apart.
type Codebook struct {
	Centroids [][]float64
	Mean      []float64
	Std       []float64
}

// K reports the codebook size.
func (c *Codebook) K() int { return len(c.Centroids) }

// Quantize normalizes every frame with the stored mean/std and counts
// nearest-centroid assignments. The matrix must be non-empty and
// rectangular with the codebook's descriptor width.
func (c *Codebook) Quantize(frames [][]float64) ([]float64, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: empty frame matrix", ErrInvalidHistogram)
	}
	dim := len(c.Mean)
	hist := make([]float64, c.K())
	scaled := make([]float64, dim)
	for i, frame := range frames {
		if len(frame) != dim {
			return nil, fmt.Errorf("%w: frame %d has %d dims, codebook expects %d", ErrInvalidHistogram, i, len(frame), dim)
		}
		for d, x := range frame {
			std := c.Std[d]
			if std == 0 {
				std = 1
			}
			scaled[d] = (x - c.Mean[d]) / std
		}
		hist[c.nearest(scaled)]++
	}
	return hist, nil
}

// nearest returns the centroid index with minimum squared distance.
// Ties go to the lower index.
func (c *Codebook) nearest(frame []float64) int {
	best, bestDist := 0, -1.0
	for j, centroid := range c.Centroids {
		var dist float64
		for d, x := range frame {
			diff := x - centroid[d]
			dist += diff * diff
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

// SaveCodebook atomically replaces the codebook artifact in dir.
func SaveCodebook(dir string, cb *Codebook) error {
	return artifact.Save(filepath.Join(dir, CodebookFile), cb)
}

// LoadCodebook reads the codebook artifact from dir.
func LoadCodebook(dir string) (*Codebook, error) {
	var cb Codebook
	if err := artifact.Load(filepath.Join(dir, CodebookFile), &cb); err != nil {
		return nil, err
	}
	return &cb, nil
}
