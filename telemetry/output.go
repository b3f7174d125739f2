package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// Output file names.
const (
	StatsFileName    = "stats.csv"
	WindowsFileName  = "windows.csv"
	PerfFileName     = "perf.csv"
	BookmarkFileName = "bookmarks.csv"
	SummaryFileName  = "summary.csv"
	ConfigFileName   = "config.yaml"
)

// ConfigWriter is implemented by the run configuration.
type ConfigWriter interface {
	WriteYAML(path string) error
}

// csvFile appends gocsv rows, writing the header with the first batch.
type csvFile struct {
	name          string
	f             *os.File
	headerWritten bool
}

func (c *csvFile) write(rows any) error {
	var err error
	if !c.headerWritten {
		err = gocsv.Marshal(rows, c.f)
		c.headerWritten = true
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, c.f)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", c.name, err)
	}
	return nil
}

// OutputManager handles structured run output with CSV logging.
// Methods are called from barrier observers and are not safe for
// concurrent use.
type OutputManager struct {
	dir       string
	stats     *csvFile
	windows   *csvFile
	perf      *csvFile
	bookmarks *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, target := range []struct {
		dst  **csvFile
		name string
	}{
		{&om.stats, StatsFileName},
		{&om.windows, WindowsFileName},
		{&om.perf, PerfFileName},
		{&om.bookmarks, BookmarkFileName},
	} {
		f, err := os.Create(filepath.Join(dir, target.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", target.name, err)
		}
		*target.dst = &csvFile{name: target.name, f: f}
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg ConfigWriter) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, ConfigFileName))
}

// WriteRecords appends closed tick records to stats.csv.
func (om *OutputManager) WriteRecords(records ...Record) error {
	if om == nil || len(records) == 0 {
		return nil
	}
	return om.stats.write(records)
}

// WriteWindow appends a window aggregate to windows.csv.
func (om *OutputManager) WriteWindow(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return om.windows.write([]WindowStats{stats})
}

// WritePerf appends the per-phase rows of a perf window to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd, workers int) error {
	if om == nil {
		return nil
	}
	return om.perf.write(stats.ToCSV(windowEnd, workers))
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	return om.bookmarks.write([]Bookmark{b})
}

// WriteSummary writes the run summary to summary.csv.
func (om *OutputManager) WriteSummary(rows []SummaryRow) error {
	if om == nil || len(rows) == 0 {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, SummaryFileName))
	if err != nil {
		return fmt.Errorf("creating %s: %w", SummaryFileName, err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", SummaryFileName, err)
	}
	return f.Close()
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, c := range []*csvFile{om.stats, om.windows, om.perf, om.bookmarks} {
		if c == nil || c.f == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.f = nil
	}
	return firstErr
}

// ReadRecords loads a stats.csv written by OutputManager.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}
