// Package config loads the check run description: where the capture files
// live, which unit families to process, and the time window for each.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ferrous-data/condition.report/internal/frame"
	"github.com/ferrous-data/condition.report/internal/profile"
	"github.com/ferrous-data/condition.report/internal/units"
)

// DefaultConfigPath is where the CLI looks for the run description when no
// flag is given.
const DefaultConfigPath = "carcheck.json"

// Config is the root run description. DataDir holds one capture
// subdirectory per unit family. Times are wall-clock strings in the
// configured timezone; an empty timezone means the host's.
type Config struct {
	DataDir  string   `json:"data_dir"`
	Timezone string   `json:"timezone,omitempty"`
	Objects  []Object `json:"objects"`
}

// Object selects one unit family and its scan window. Frame geometry
// fields are optional: a zero frame size and nil offsets inherit the
// family defaults, while explicit zeros (no capture preamble, timestamp
// at byte 0) remain expressible through the pointer fields.
type Object struct {
	Unit        string `json:"unit"`
	FrameSize   int    `json:"frame_size,omitempty"`
	TimeOffset  *int   `json:"time_offset,omitempty"`
	FrameOffset *int   `json:"frame_offset,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// EffectiveFrameSize returns the configured frame size or the family
// default.
func (o Object) EffectiveFrameSize(t profile.Table) int {
	if o.FrameSize > 0 {
		return o.FrameSize
	}
	return t.FrameSize
}

// EffectiveTimeOffset returns the configured timestamp offset or the
// family default.
func (o Object) EffectiveTimeOffset(t profile.Table) int {
	if o.TimeOffset != nil {
		return *o.TimeOffset
	}
	return t.TimeOffset
}

// EffectiveFrameOffset returns the configured capture preamble length or
// the shared default.
func (o Object) EffectiveFrameOffset() int {
	if o.FrameOffset != nil {
		return *o.FrameOffset
	}
	return frame.DEFAULT_FRAME_OFFSET
}

// Window parses the object's start and end times in loc.
func (o Object) Window(loc *time.Location) (time.Time, time.Time, error) {
	start, err := units.ParseWindowTime(o.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := units.ParseWindowTime(o.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_time: %w", err)
	}
	return start, end, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return units.LoadLocation(c.Timezone)
}

// Load reads and validates a run description from a JSON file. The file
// must carry a .json extension and stay under the size cap.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the run description against the family registry: every
// unit must resolve, every window must parse and be ordered, and the frame
// geometry must cover what the family's channel table reads.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Timezone != "" && !units.IsTimezoneValid(c.Timezone) {
		return fmt.Errorf("unknown timezone %q", c.Timezone)
	}
	if len(c.Objects) == 0 {
		return fmt.Errorf("objects is empty")
	}

	loc, err := c.Location()
	if err != nil {
		return err
	}

	for i, o := range c.Objects {
		table, err := profile.Lookup(o.Unit)
		if err != nil {
			return fmt.Errorf("objects[%d]: %w", i, err)
		}

		size := o.EffectiveFrameSize(table)
		if size < table.FrameSize {
			return fmt.Errorf("objects[%d]: frame_size %d below the %d bytes %s reads",
				i, size, table.FrameSize, table.Name)
		}
		timeOff := o.EffectiveTimeOffset(table)
		if timeOff < 0 || timeOff+frame.TIME_FIELD_SIZE > size {
			return fmt.Errorf("objects[%d]: time_offset %d does not fit a %d byte frame", i, timeOff, size)
		}
		if o.EffectiveFrameOffset() < 0 {
			return fmt.Errorf("objects[%d]: negative frame_offset", i)
		}

		start, end, err := o.Window(loc)
		if err != nil {
			return fmt.Errorf("objects[%d]: %w", i, err)
		}
		if end.Before(start) {
			return fmt.Errorf("objects[%d]: end_time %s before start_time %s", i, o.EndTime, o.StartTime)
		}
	}
	return nil
}
