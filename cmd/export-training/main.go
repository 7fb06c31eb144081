package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"market-intel-bot/internal/journal"
	"market-intel-bot/internal/ml"
)

// Exports labeled samples from the trade journal for offline model work.
func main() {
	var (
		dataDir = flag.String("data", "data", "data directory holding the trade journal")
		out     = flag.String("out", "training-data.json", "output file (.json or .csv)")
	)
	flag.Parse()

	jr := journal.New(journal.DefaultConfig(), "", func() bool { return false })
	path := filepath.Join(*dataDir, "trade-journal.json")
	if err := jr.Load(path); err != nil {
		fmt.Printf("Failed to load %s: %v\n", path, err)
		os.Exit(1)
	}

	samples := jr.TrainingData()
	stats := jr.Stats()
	fmt.Printf("%d trades, %d labeled samples (%.1f%% win rate)\n",
		stats.Total, len(samples), stats.WinRate)

	if len(samples) == 0 {
		fmt.Println("Nothing to export")
		return
	}

	var err error
	if filepath.Ext(*out) == ".csv" {
		err = writeCSV(*out, samples)
	} else {
		err = writeJSON(*out, samples)
	}
	if err != nil {
		fmt.Printf("Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}

func writeJSON(path string, samples []ml.Sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// writeCSV emits one row per sample: label first, then the feature vector
func writeCSV(path string, samples []ml.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, s := range samples {
		row := make([]string, 0, len(s.Features)+1)
		row = append(row, strconv.FormatFloat(s.Label, 'f', 0, 64))
		for _, v := range s.Features {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
