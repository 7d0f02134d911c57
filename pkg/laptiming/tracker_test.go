package laptiming

import (
	"encoding/json"
	"testing"
)

func TestDeriveSector3(t *testing.T) {
	sectorTests := []struct {
		name     string
		lap      Millis
		s1, s2   Millis
		expected Millis
	}{
		{name: "all known", lap: 90000, s1: 30000, s2: 30000, expected: 30000},
		{name: "sectors equal lap", lap: 60000, s1: 30000, s2: 30000, expected: 0},
		{name: "sectors exceed lap", lap: 50000, s1: 30000, s2: 30000, expected: 0},
		{name: "no lap", lap: 0, s1: 30000, s2: 30000, expected: 0},
		{name: "no sector 1", lap: 90000, s1: 0, s2: 30000, expected: 0},
		{name: "no sector 2", lap: 90000, s1: 30000, s2: 0, expected: 0},
		{name: "negative sector", lap: 90000, s1: -1, s2: 30000, expected: 0},
	}

	for _, test := range sectorTests {
		t.Run(test.name, func(t *testing.T) {
			if got := DeriveSector3(test.lap, test.s1, test.s2); got != test.expected {
				t.Errorf("expected %d, got %d", test.expected, got)
			}
		})
	}
}

func TestTrackerPassesThroughCurrentLap(t *testing.T) {
	tracker := NewTracker()

	update := tracker.Ingest(LapSnapshot{
		CurrentLapNumber: 1,
		CurrentLapTime:   12345,
		Sector1Time:      0,
	})

	if update.CurrentLapNumber != 1 || update.CurrentLapTime != 12345 {
		t.Errorf("current lap fields not passed through: %+v", update)
	}

	if update.Sector3.Known() {
		t.Errorf("sector 3 should be calculating, got %d", update.Sector3)
	}

	if update.Sector1Delta.Available || update.Sector2Delta.Available || update.Sector3Delta.Available || update.LastLapDelta.Available {
		t.Errorf("no deltas should be available on the first tick: %+v", update)
	}

	if update.CompletedLap != nil {
		t.Errorf("no lap should have completed")
	}
}

func TestTrackerBestLap(t *testing.T) {
	tracker := NewTracker()

	laps := []struct {
		lapTime       Millis
		expectedBest  Millis
		expectedDelta Delta
	}{
		{lapTime: 91000, expectedBest: 91000, expectedDelta: Delta{}},
		{lapTime: 89000, expectedBest: 89000, expectedDelta: Delta{Millis: -2000, Available: true}},
		{lapTime: 90000, expectedBest: 89000, expectedDelta: Delta{Millis: 1000, Available: true}},
	}

	for i, lap := range laps {
		update := tracker.Ingest(LapSnapshot{
			CurrentLapNumber: i + 2,
			LastLapTime:      lap.lapTime,
		})

		if update.Best.LapTime != lap.expectedBest {
			t.Errorf("lap %d: expected best %d, got %d", i+1, lap.expectedBest, update.Best.LapTime)
		}

		if update.LastLapDelta != lap.expectedDelta {
			t.Errorf("lap %d: expected delta %+v, got %+v", i+1, lap.expectedDelta, update.LastLapDelta)
		}

		if update.CompletedLap == nil {
			t.Fatalf("lap %d: expected a completed lap", i+1)
		}

		if update.CompletedLap.DeltaToBest != lap.expectedDelta {
			t.Errorf("lap %d: history delta %+v, expected %+v", i+1, update.CompletedLap.DeltaToBest, lap.expectedDelta)
		}
	}

	if best := tracker.Best(); best.LapNumber != 2 {
		t.Errorf("expected best lap number 2, got %d", best.LapNumber)
	}
}

func TestTrackerCompletesLapsWithoutLapNumbers(t *testing.T) {
	tracker := NewTracker()

	for _, payload := range []string{
		`{"last_lap_time_in_ms": 91000}`,
		`{"last_lap_time_in_ms": 91000}`,
		`{"last_lap_time_in_ms": 89000}`,
		`{"last_lap_time_in_ms": 89000}`,
		`{"last_lap_time_in_ms": 90000}`,
	} {
		snapshot, err := DecodeSnapshot([]byte(payload))

		if err != nil {
			t.Fatal(err)
		}

		tracker.Ingest(snapshot)
	}

	history := tracker.History()

	if len(history) != 3 {
		t.Fatalf("expected 3 completed laps, got %d: %+v", len(history), history)
	}

	for i, entry := range history {
		if entry.LapNumber != i+1 {
			t.Errorf("entry %d: expected lap number %d, got %d", i, i+1, entry.LapNumber)
		}
	}

	if best := tracker.Best(); best.LapTime != 89000 || best.LapNumber != 2 {
		t.Errorf("expected best lap 89000 on lap 2, got %+v", best)
	}
}

func TestTrackerNewLastLapAtSameLapNumber(t *testing.T) {
	tracker := NewTracker()

	tracker.Ingest(LapSnapshot{CurrentLapNumber: 5, LastLapTime: 91000})
	update := tracker.Ingest(LapSnapshot{CurrentLapNumber: 5, LastLapTime: 88000})

	if update.CompletedLap == nil {
		t.Fatal("a new last lap time should complete a lap")
	}

	if update.Best.LapTime != 88000 {
		t.Errorf("expected best lap of 88000, got %d", update.Best.LapTime)
	}

	if update.LastLapDelta != (Delta{Millis: -3000, Available: true}) {
		t.Errorf("unexpected last lap delta: %+v", update.LastLapDelta)
	}

	history := tracker.History()

	if len(history) != 2 || history[0].LapNumber != 4 || history[1].LapNumber != 5 {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestTrackerCompletedLapNumber(t *testing.T) {
	lapNumberTests := []struct {
		name       string
		currentLap int
		expected   int
	}{
		{name: "lap number from the feed", currentLap: 4, expected: 3},
		{name: "missing lap number", currentLap: 0, expected: 1},
		{name: "first lap", currentLap: 1, expected: 1},
	}

	for _, test := range lapNumberTests {
		t.Run(test.name, func(t *testing.T) {
			tracker := NewTracker()

			update := tracker.Ingest(LapSnapshot{CurrentLapNumber: test.currentLap, LastLapTime: 90000})

			if update.CompletedLap == nil {
				t.Fatal("expected a completed lap")
			}

			if update.CompletedLap.LapNumber != test.expected || update.Best.LapNumber != test.expected {
				t.Errorf("expected lap number %d, got %d (best %d)", test.expected, update.CompletedLap.LapNumber, update.Best.LapNumber)
			}
		})
	}
}

func TestTrackerSectorBestWithoutLapCompletion(t *testing.T) {
	tracker := NewTracker()

	tracker.Ingest(LapSnapshot{CurrentLapNumber: 1, CurrentLapTime: 31000, Sector1Time: 31000})

	update := tracker.Ingest(LapSnapshot{CurrentLapNumber: 1, CurrentLapTime: 40000, Sector1Time: 29500})

	if update.Best.Sector1 != 29500 {
		t.Errorf("expected best sector 1 of 29500, got %d", update.Best.Sector1)
	}

	if update.Best.LapTime.Known() {
		t.Errorf("best lap should not be set, got %d", update.Best.LapTime)
	}

	if !update.Sector1Delta.Available || update.Sector1Delta.Millis != 0 {
		t.Errorf("new best sector should have a zero delta, got %+v", update.Sector1Delta)
	}

	if tracker.LapsCompleted() != 0 {
		t.Errorf("expected no completed laps")
	}
}

func TestTrackerSectorDeltas(t *testing.T) {
	tracker := NewTracker()

	tracker.Ingest(LapSnapshot{CurrentLapNumber: 1, Sector1Time: 30000, Sector2Time: 31000})
	update := tracker.Ingest(LapSnapshot{CurrentLapNumber: 2, Sector1Time: 30500, Sector2Time: 30000, LastLapTime: 95000})

	if update.Sector1Delta != (Delta{Millis: 500, Available: true}) {
		t.Errorf("unexpected sector 1 delta: %+v", update.Sector1Delta)
	}

	if update.Sector2Delta != (Delta{Millis: 0, Available: true}) {
		t.Errorf("unexpected sector 2 delta: %+v", update.Sector2Delta)
	}

	// 95000 - 30500 - 30000
	if update.Sector3 != 34500 {
		t.Errorf("expected sector 3 estimate of 34500, got %d", update.Sector3)
	}

	// completed lap 1 gave a real sector 3 of 95000 - 30000 - 31000
	if update.Best.Sector3 != 34000 {
		t.Errorf("expected best sector 3 of 34000, got %d", update.Best.Sector3)
	}

	if update.Sector3Delta != (Delta{Millis: 500, Available: true}) {
		t.Errorf("unexpected sector 3 delta: %+v", update.Sector3Delta)
	}
}

func TestTrackerHistoryOrdering(t *testing.T) {
	tracker := NewTracker()

	lapTimes := []Millis{92000, 91000, 93000, 90500, 90600}

	for i, lapTime := range lapTimes {
		currentLap := i + 2

		// several ticks per lap, the first carrying the newly completed lap
		for tick := 0; tick < 3; tick++ {
			tracker.Ingest(LapSnapshot{
				CurrentLapNumber: currentLap,
				CurrentLapTime:   Millis(tick * 1000),
				LastLapTime:      lapTime,
			})
		}
	}

	history := tracker.History()

	if len(history) != len(lapTimes) {
		t.Fatalf("expected %d history entries, got %d", len(lapTimes), len(history))
	}

	for i, entry := range history {
		if entry.LapNumber != i+1 {
			t.Errorf("entry %d: expected lap number %d, got %d", i, i+1, entry.LapNumber)
		}

		if entry.LapTime != lapTimes[i] {
			t.Errorf("entry %d: expected lap time %d, got %d", i, lapTimes[i], entry.LapTime)
		}
	}

	if best := tracker.Best(); best.LapTime != 90500 || best.LapNumber != 4 {
		t.Errorf("unexpected best: %+v", best)
	}
}

func TestTrackerHistoryUsesCompletedLapSectors(t *testing.T) {
	tracker := NewTracker()

	tracker.Ingest(LapSnapshot{CurrentLapNumber: 1, CurrentLapTime: 30000, Sector1Time: 30000})
	tracker.Ingest(LapSnapshot{CurrentLapNumber: 1, CurrentLapTime: 61000, Sector1Time: 30000, Sector2Time: 31000})

	// the game zeroes the sectors as the new lap starts
	update := tracker.Ingest(LapSnapshot{CurrentLapNumber: 2, CurrentLapTime: 100, LastLapTime: 90000})

	if update.CompletedLap == nil {
		t.Fatal("expected a completed lap")
	}

	expected := LapHistoryEntry{LapNumber: 1, LapTime: 90000, Sector1: 30000, Sector2: 31000, Sector3: 29000}

	if *update.CompletedLap != expected {
		t.Errorf("expected %+v, got %+v", expected, *update.CompletedLap)
	}

	if update.Best.Sector3 != 29000 {
		t.Errorf("expected best sector 3 of 29000, got %d", update.Best.Sector3)
	}

	if update.Best.IdealLap() != 90000 {
		t.Errorf("expected ideal lap of 90000, got %d", update.Best.IdealLap())
	}
}

func TestTrackerHistoryFallsBackToSnapshotSectors(t *testing.T) {
	tracker := NewTracker()

	update := tracker.Ingest(LapSnapshot{CurrentLapNumber: 2, LastLapTime: 90000, Sector1Time: 30000, Sector2Time: 30000})

	if update.CompletedLap == nil || update.CompletedLap.Sector3 != 30000 {
		t.Errorf("expected derived sector 3 of 30000, got %+v", update.CompletedLap)
	}

	if update.Sector3 != 30000 {
		t.Errorf("expected current sector 3 estimate of 30000, got %d", update.Sector3)
	}
}

func TestTrackerNegativeInputIsUnavailable(t *testing.T) {
	tracker := NewTracker()

	update := tracker.Ingest(LapSnapshot{CurrentLapNumber: 3, CurrentLapTime: -10, Sector1Time: -1, Sector2Time: -1, LastLapTime: -1})

	if update.CompletedLap != nil {
		t.Error("negative last lap time must not complete a lap")
	}

	if update.CurrentLapTime != 0 || update.Best.Sector1 != 0 || update.Sector1Delta.Available {
		t.Errorf("negative values should be unavailable: %+v", update)
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker()

	tracker.Ingest(LapSnapshot{CurrentLapNumber: 2, Sector1Time: 30000, LastLapTime: 90000})
	tracker.Reset()

	if tracker.LapsCompleted() != 0 || tracker.Best() != (BestRecord{}) {
		t.Errorf("tracker was not reset: %+v", tracker.Best())
	}

	update := tracker.Ingest(LapSnapshot{CurrentLapNumber: 2, LastLapTime: 95000})

	if update.CompletedLap == nil || update.LastLapDelta.Available {
		t.Errorf("first lap after a reset has no delta: %+v", update)
	}
}

func TestHistoryIsACopy(t *testing.T) {
	tracker := NewTracker()
	tracker.Ingest(LapSnapshot{CurrentLapNumber: 2, LastLapTime: 90000})

	history := tracker.History()
	history[0].LapTime = 1

	if tracker.History()[0].LapTime != 90000 {
		t.Error("history entries must not be mutable from outside the tracker")
	}
}

func TestDeltaJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Delta
		B Delta
	}{
		A: Delta{Millis: -1500, Available: true},
		B: Delta{},
	})

	if err != nil {
		t.Fatal(err)
	}

	if string(b) != `{"A":-1500,"B":null}` {
		t.Errorf("unexpected json: %s", string(b))
	}

	var out struct {
		A Delta
		B Delta
	}

	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}

	if out.A != (Delta{Millis: -1500, Available: true}) || out.B.Available {
		t.Errorf("unexpected decoded deltas: %+v", out)
	}
}
