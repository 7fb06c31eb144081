package ml

import (
	"path/filepath"
	"testing"

	"market-intel-bot/internal/logging"
)

// separableSamples builds a trivially separable set: wins have feature[0]
// high, losses low
func separableSamples(n int) []Sample {
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			samples = append(samples, Sample{Features: []float64{5, 1}, Label: 1})
		} else {
			samples = append(samples, Sample{Features: []float64{-5, 1}, Label: 0})
		}
	}
	return samples
}

func TestFitAndPredictSeparable(t *testing.T) {
	m := NewModel(logging.Default())
	if err := m.Fit(separableSamples(40)); err != nil {
		t.Fatalf("fit: %v", err)
	}

	win, ok := m.Predict([]float64{5, 1})
	if !ok {
		t.Fatal("predict not ok after fit")
	}
	loss, _ := m.Predict([]float64{-5, 1})
	if win <= loss {
		t.Errorf("win prob %v should exceed loss prob %v", win, loss)
	}
	if win < 0.6 {
		t.Errorf("win prob %v too low for separable data", win)
	}
}

func TestFitRejectsTooFewSamples(t *testing.T) {
	m := NewModel(logging.Default())
	if err := m.Fit(separableSamples(5)); err != ErrNotEnoughData {
		t.Errorf("err = %v, want ErrNotEnoughData", err)
	}
	if m.Trained() {
		t.Error("model should stay untrained")
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	m := NewModel(logging.Default())
	m.Fit(separableSamples(40))
	if _, ok := m.Predict([]float64{1, 2, 3}); ok {
		t.Error("mismatched dimensions should not predict")
	}
}

func TestUntrainedPredictNotOK(t *testing.T) {
	m := NewModel(logging.Default())
	if _, ok := m.Predict([]float64{1, 2}); ok {
		t.Error("untrained model should not predict")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	m := NewModel(logging.Default())
	m.Fit(separableSamples(40))
	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewModel(logging.Default())
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Trained() {
		t.Fatal("loaded model should be trained")
	}

	a, _ := m.Predict([]float64{5, 1})
	b, _ := loaded.Predict([]float64{5, 1})
	if a != b {
		t.Errorf("loaded model predicts %v, original %v", b, a)
	}
}

func TestLoadMissingFileIsNoop(t *testing.T) {
	m := NewModel(logging.Default())
	if err := m.Load(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if m.Trained() {
		t.Error("model should stay untrained")
	}
}
