// Command lapreplay feeds recorded lap snapshots, one JSON object per line, through a lap timing
// tracker and prints the resulting lap history.
package main

import (
	"bufio"
	"flag"
	"io"
	"os"

	"github.com/dimchansky/utfbom"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"justapengu.in/livetiming/pkg/laptiming"
)

var (
	inputPath string
	verbose   bool
)

func init() {
	flag.StringVar(&inputPath, "f", "-", "snapshot file, - for stdin")
	flag.BoolVar(&verbose, "v", false, "log every lap as it completes")
}

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var in io.Reader = os.Stdin

	if inputPath != "-" {
		f, err := os.Open(inputPath)

		if err != nil {
			logger.WithError(err).Fatalf("Could not open %s", inputPath)
		}

		defer f.Close()

		in = f
	}

	tracker, err := replay(in, laptiming.NewTracker(), logger)

	if err != nil {
		logger.WithError(err).Fatal("Could not replay snapshots")
	}

	render(os.Stdout, tracker)
}

// replay ingests every snapshot line. Lines that are not valid JSON are skipped with a warning.
func replay(r io.Reader, t *laptiming.Tracker, logger logrus.FieldLogger) (*laptiming.Tracker, error) {
	scanner := bufio.NewScanner(utfbom.SkipOnly(r))
	line := 0

	for scanner.Scan() {
		line++

		b := scanner.Bytes()

		if len(b) == 0 {
			continue
		}

		snapshot, err := laptiming.DecodeSnapshot(b)

		if err != nil {
			logger.WithError(err).Warnf("Skipping line %d", line)
			continue
		}

		update := t.Ingest(snapshot)

		if lap := update.CompletedLap; lap != nil {
			logger.Debugf("Lap %d: %s (%s)", lap.LapNumber, laptiming.FormatLapTime(int64(lap.LapTime)), lap.DeltaToBest)
		}
	}

	if err := scanner.Err(); err != nil {
		return t, errors.Wrapf(err, "could not read line %d", line+1)
	}

	return t, nil
}

func formatDelta(delta laptiming.Delta) string {
	if !delta.Available {
		return "-"
	}

	return laptiming.FormatDelta(delta.Millis)
}

func formatTime(ms laptiming.Millis) string {
	return laptiming.FormatLapTime(int64(ms))
}

func render(w io.Writer, tracker *laptiming.Tracker) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Lap", "Time", "S1", "S2", "S3", "Delta"})

	best := tracker.Best()

	for _, lap := range tracker.History() {
		lapTime := formatTime(lap.LapTime)

		if lap.LapNumber == best.LapNumber && lap.LapTime == best.LapTime {
			lapTime += " *"
		}

		t.AppendRow(table.Row{
			lap.LapNumber,
			lapTime,
			formatTime(lap.Sector1),
			formatTime(lap.Sector2),
			formatTime(lap.Sector3),
			formatDelta(lap.DeltaToBest),
		})
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{"Best", formatTime(best.LapTime), formatTime(best.Sector1), formatTime(best.Sector2), formatTime(best.Sector3), ""})
	t.AppendFooter(table.Row{"Ideal", formatTime(best.IdealLap()), "", "", "", ""})

	t.Render()
}
