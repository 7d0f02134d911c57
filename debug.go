package livetiming

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"justapengu.in/livetiming/internal/telemetry"
	"justapengu.in/livetiming/pkg/udp"
)

// Debugger builds a zip of the current live timing state, for attaching to bug reports.
type Debugger struct {
	liveTiming *LiveTiming
	stats      *telemetry.Statistics
	config     *Config
	logger     Logger
}

func NewDebugger(liveTiming *LiveTiming, stats *telemetry.Statistics, config *Config, logger Logger) *Debugger {
	return &Debugger{liveTiming: liveTiming, stats: stats, config: config, logger: logger}
}

func (d *Debugger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Disposition", fmt.Sprintf(`attachment;filename="livetiming_debug_bundle_%s.zip"`, time.Now().Format("2006-01-02_15_04")))
	w.Header().Add("Content-Type", "application/zip")

	if err := d.BuildDebugInfo(w); err != nil {
		d.logger.WithError(err).Error("Could not build debug information")
		http.Error(w, "Could not build debug information", http.StatusInternalServerError)
		return
	}
}

type debugFile struct {
	filename string
	data     interface{}
}

func (d *Debugger) BuildDebugInfo(w io.Writer) (err error) {
	z := zip.NewWriter(w)
	defer func() {
		closeErr := z.Close()

		if err == nil {
			err = closeErr
		}
	}()

	standings := d.liveTiming.Drivers.Standings()
	lapTimings := make(map[udp.CarIndex]LapTiming, len(standings))

	for _, line := range standings {
		if timing, ok := d.liveTiming.CarLapTiming(line.CarIndex); ok {
			lapTimings[line.CarIndex] = timing
		}
	}

	files := []debugFile{
		{"session.json", d.liveTiming.SessionState()},
		{"standings.json", standings},
		{"lap_timing.json", lapTimings},
	}

	if summary, ok := d.liveTiming.RaceEngineerSummary(); ok {
		files = append(files, debugFile{"race_engineer.json", summary})
	}

	if d.stats != nil {
		files = append(files, debugFile{"telemetry_statistics.json", d.stats.Snapshot()})
	}

	if d.config != nil {
		files = append(files, debugFile{"config.json", d.config})
	}

	for _, file := range files {
		if err := d.addJSONFileToZip(z, file.filename, file.data); err != nil {
			return errors.Wrapf(err, "could not add %s to debug bundle", file.filename)
		}
	}

	return nil
}

func (d *Debugger) addJSONFileToZip(z *zip.Writer, filename string, data interface{}) error {
	f, err := z.Create(filename)

	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")

	return enc.Encode(data)
}
