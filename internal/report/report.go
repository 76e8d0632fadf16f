// Package report renders check results: the summary text file the
// downstream tooling consumes, an optional HTML chart page, and an
// optional speed trace PNG.
package report

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ferrous-data/condition.report/internal/aggregate"
	"github.com/ferrous-data/condition.report/internal/units"
)

// SummaryPath derives the summary file path for a merged capture: the
// merged file's stem followed by the compact window start, .txt extension,
// in the same directory.
func SummaryPath(mergedPath string, windowStart time.Time) string {
	dir := filepath.Dir(mergedPath)
	stem := strings.TrimSuffix(filepath.Base(mergedPath), filepath.Ext(mergedPath))
	return filepath.Join(dir, stem+windowStart.Format(units.CompactTimeLayout)+".txt")
}

// WriteSummary writes one slot value per line followed by a terminating
// blank line. An existing file at path is overwritten.
func WriteSummary(path string, sum *aggregate.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, v := range sum.Values {
		fmt.Fprintln(w, v.String())
	}
	fmt.Fprintln(w)

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write summary file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close summary file: %w", err)
	}

	return nil
}

// LogSpeedStats prints the speed trace statistics for one car's window.
func LogSpeedStats(unit, car string, sum *aggregate.Summary) {
	s := sum.Stats
	if s.Count == 0 {
		log.Printf("%s car %s: no frames in window", unit, car)
		return
	}
	log.Printf("%s car %s: %d frames, speed mean=%.2f std=%.2f min=%.2f max=%.2f p50=%.2f p95=%.2f",
		unit, car, s.Count, s.Mean, s.Std, s.Min, s.Max, s.P50, s.P95)
}
