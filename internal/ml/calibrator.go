package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"sync"
	"time"

	"market-intel-bot/internal/logging"
)

// Training hyperparameters. The model is a small logistic regression over
// the fixed feature vector; it calibrates rule confidence, it does not
// replace it.
const (
	learningRate = 0.01
	epochs       = 300
	l2Penalty    = 0.001

	// MinSamples is the fewest labeled trades worth fitting on
	MinSamples = 20
)

// ErrNotEnoughData means fewer than MinSamples labeled examples were given
var ErrNotEnoughData = errors.New("ml: not enough training samples")

// Sample is one labeled trade outcome
type Sample struct {
	Features []float64 `json:"features"`
	Label    float64   `json:"label"` // 1 win, 0 loss
}

// Model is a trained logistic calibrator. Zero value predicts nothing until
// Fit or Load succeeds.
type Model struct {
	mu sync.RWMutex

	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	Samples   int       `json:"samples"`
	TrainedAt time.Time `json:"trained_at"`

	logger *logging.Logger
}

// NewModel creates an untrained model
func NewModel(logger *logging.Logger) *Model {
	return &Model{logger: logger.WithComponent("ml")}
}

// Fit trains the calibrator with standardized features and L2-regularized
// gradient descent. Deterministic: no shuffling, fixed epoch count.
func (m *Model) Fit(samples []Sample) error {
	if len(samples) < MinSamples {
		return ErrNotEnoughData
	}
	dim := len(samples[0].Features)
	for _, s := range samples {
		if len(s.Features) != dim {
			return errors.New("ml: inconsistent feature dimensions")
		}
	}

	mean, scale := standardization(samples, dim)
	weights := make([]float64, dim)
	bias := 0.0

	for epoch := 0; epoch < epochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for _, s := range samples {
			z := bias
			for j := 0; j < dim; j++ {
				z += weights[j] * norm(s.Features[j], mean[j], scale[j])
			}
			err := sigmoid(z) - s.Label
			for j := 0; j < dim; j++ {
				gradW[j] += err * norm(s.Features[j], mean[j], scale[j])
			}
			gradB += err
		}
		n := float64(len(samples))
		for j := 0; j < dim; j++ {
			weights[j] -= learningRate * (gradW[j]/n + l2Penalty*weights[j])
		}
		bias -= learningRate * gradB / n
	}

	m.mu.Lock()
	m.Weights = weights
	m.Bias = bias
	m.Mean = mean
	m.Scale = scale
	m.Samples = len(samples)
	m.TrainedAt = time.Now().UTC()
	m.mu.Unlock()

	m.logger.Info("calibrator trained", "samples", len(samples), "features", dim)
	return nil
}

// Predict returns the win probability for a feature vector; ok is false when
// the model is untrained or the dimensions do not match.
func (m *Model) Predict(features []float64) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Weights) == 0 || len(features) != len(m.Weights) {
		return 0, false
	}
	z := m.Bias
	for j, w := range m.Weights {
		z += w * norm(features[j], m.Mean[j], m.Scale[j])
	}
	return sigmoid(z), true
}

// Trained reports whether the model carries fitted weights
func (m *Model) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Weights) > 0
}

// Save writes the model weights to a JSON file
func (m *Model) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads previously saved weights; a missing file leaves the model
// untrained without error.
func (m *Model) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var loaded Model
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	m.mu.Lock()
	m.Weights = loaded.Weights
	m.Bias = loaded.Bias
	m.Mean = loaded.Mean
	m.Scale = loaded.Scale
	m.Samples = loaded.Samples
	m.TrainedAt = loaded.TrainedAt
	m.mu.Unlock()
	return nil
}

func standardization(samples []Sample, dim int) (mean, scale []float64) {
	mean = make([]float64, dim)
	scale = make([]float64, dim)
	n := float64(len(samples))
	for _, s := range samples {
		for j := 0; j < dim; j++ {
			mean[j] += s.Features[j]
		}
	}
	for j := 0; j < dim; j++ {
		mean[j] /= n
	}
	for _, s := range samples {
		for j := 0; j < dim; j++ {
			d := s.Features[j] - mean[j]
			scale[j] += d * d
		}
	}
	for j := 0; j < dim; j++ {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func norm(v, mean, scale float64) float64 {
	return (v - mean) / scale
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
