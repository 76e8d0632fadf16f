// Package check drives a complete condition check over the configured
// capture directory: merge car files, scan the time window, reduce the
// channel tables and emit summary files, reports and run records.
package check

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ferrous-data/condition.report/internal/aggregate"
	"github.com/ferrous-data/condition.report/internal/carfile"
	"github.com/ferrous-data/condition.report/internal/config"
	"github.com/ferrous-data/condition.report/internal/db"
	"github.com/ferrous-data/condition.report/internal/frame"
	"github.com/ferrous-data/condition.report/internal/profile"
	"github.com/ferrous-data/condition.report/internal/report"
	"github.com/ferrous-data/condition.report/internal/timeutil"
	"github.com/ferrous-data/condition.report/internal/units"
)

// Options selects the optional outputs of a run.
type Options struct {
	HTML  bool   // render a chart page next to each summary
	Plot  bool   // render a speed trace PNG next to each summary
	Store *db.DB // nil disables run persistence
}

// Result totals one full run across all configured objects.
type Result struct {
	Cars       int // merged car files seen
	Checked    int // cars reduced and summarised
	Empty      int // cars with no frames inside the window
	Failed     int // cars skipped after an error
	ScanErrors int // frame diagnostics across all cars
}

// Runner executes checks for every object in a loaded configuration.
type Runner struct {
	cfg   *config.Config
	loc   *time.Location
	clock timeutil.Clock
	opts  Options
}

func NewRunner(cfg *config.Config, opts Options) (*Runner, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}
	return &Runner{cfg: cfg, loc: loc, clock: timeutil.RealClock{}, opts: opts}, nil
}

// SetClock replaces the run timestamp source. Tests use this for
// deterministic run records.
func (r *Runner) SetClock(clock timeutil.Clock) {
	r.clock = clock
}

// Run checks every configured object. Failures on a single car are
// logged and counted; configuration and store failures abort the run.
func (r *Runner) Run() (*Result, error) {
	res := &Result{}
	for i := range r.cfg.Objects {
		if err := r.runObject(r.cfg.Objects[i], res); err != nil {
			return res, err
		}
	}
	log.Printf("check complete: %d cars, %d checked, %d empty, %d failed, %d scan errors",
		res.Cars, res.Checked, res.Empty, res.Failed, res.ScanErrors)
	return res, nil
}

func (r *Runner) runObject(obj config.Object, res *Result) error {
	table, err := profile.Lookup(obj.Unit)
	if err != nil {
		return err
	}
	start, end, err := obj.Window(r.loc)
	if err != nil {
		return fmt.Errorf("window for %s: %w", obj.Unit, err)
	}

	// Each family keeps its captures in its own subdirectory, so two units
	// monitoring the same car never collide on merge or summary names.
	unitDir := filepath.Join(r.cfg.DataDir, table.Name)
	merged, err := carfile.Merge(unitDir, strings.ToLower(table.Name), obj.EffectiveFrameOffset())
	if errors.Is(err, carfile.ErrNoData) || errors.Is(err, carfile.ErrNoDir) {
		log.Printf("%s: no capture files under %s", table.Name, unitDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("merge %s captures: %w", table.Name, err)
	}

	for _, path := range merged {
		res.Cars++
		if err := r.runCar(obj, table, path, start, end, res); err != nil {
			var se *storeError
			if errors.As(err, &se) {
				return err
			}
			log.Printf("%s car %s: %v", table.Name, carName(path), err)
			res.Failed++
		}
	}

	return nil
}

func (r *Runner) runCar(obj config.Object, table profile.Table, path string, start, end time.Time, res *Result) error {
	car := carName(path)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open merged capture: %w", err)
	}
	defer f.Close()

	scanner, err := frame.NewScanner(frame.ScanConfig{
		FrameSize:   obj.EffectiveFrameSize(table),
		FrameOffset: obj.EffectiveFrameOffset(),
		TimeOffset:  obj.EffectiveTimeOffset(table),
		Start:       start,
		End:         end,
		Loc:         r.loc,
	})
	if err != nil {
		return fmt.Errorf("configure scanner: %w", err)
	}

	frames, diags, err := scanner.Scan(f)
	if err != nil {
		return fmt.Errorf("scan %s: %w", filepath.Base(path), err)
	}
	for _, d := range diags {
		log.Printf("%s car %s: %v", table.Name, car, d)
	}
	res.ScanErrors += len(diags)

	if len(frames) == 0 {
		log.Printf("%s car %s: no frames in window, skipping", table.Name, car)
		res.Empty++
		return nil
	}

	sum, err := aggregate.Reduce(table, frames)
	if err != nil {
		return err
	}
	report.LogSpeedStats(table.Name, car, sum)

	sumPath := report.SummaryPath(path, start)
	if err := report.WriteSummary(sumPath, sum); err != nil {
		return err
	}
	log.Printf("%s car %s: wrote %s (%d values)", table.Name, car, sumPath, len(sum.Values))

	stem := strings.TrimSuffix(sumPath, ".txt")
	if r.opts.HTML {
		if err := report.RenderHTML(stem+".html", table.Name, car, sum); err != nil {
			return err
		}
	}
	if r.opts.Plot {
		if err := report.RenderSpeedPlot(stem+".png", table.Name, car, sum); err != nil {
			return err
		}
	}

	if r.opts.Store != nil {
		if err := r.persist(table, car, path, start, end, len(frames), diags, sum); err != nil {
			return &storeError{err}
		}
	}

	res.Checked++
	return nil
}

func (r *Runner) persist(table profile.Table, car, path string, start, end time.Time, frameCount int, diags []frame.ScanError, sum *aggregate.Summary) error {
	rec := db.RunRecord{
		Unit:        table.Name,
		Car:         car,
		SourceFile:  filepath.Base(path),
		WindowStart: start.Unix(),
		WindowEnd:   end.Unix(),
		FrameCount:  frameCount,
		ErrorCount:  len(diags),
		CreatedAt:   r.clock.Now().UTC(),
	}

	kinds := table.SlotKinds()
	values := make([]db.RunValue, 0, len(sum.Values))
	for i, v := range sum.Values {
		rv := db.RunValue{Slot: i, Label: sum.Labels[i], Kind: kinds[i], Number: v.Number}
		if v.IsEvent() {
			rv.Time = v.Time.Format(units.TimeLayout)
		}
		values = append(values, rv)
	}

	scanErrs := make([]db.RunScanError, 0, len(diags))
	for _, d := range diags {
		scanErrs = append(scanErrs, db.RunScanError{
			FrameIndex: d.FrameIndex,
			ByteOffset: d.ByteOffset,
			Reason:     frame.Reason(d.Err),
		})
	}

	runID, err := r.opts.Store.SaveRun(rec, values, scanErrs)
	if err != nil {
		return fmt.Errorf("save run for %s car %s: %w", table.Name, car, err)
	}
	log.Printf("%s car %s: run %s saved", table.Name, car, runID)

	return nil
}

func carName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), carfile.MergedSuffix)
}

// storeError marks persistence failures, which abort the whole run.
type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }
