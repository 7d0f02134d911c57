package laptiming

import (
	"encoding/json"
)

// Millis is a duration in milliseconds. Zero or negative values mean the time is not available yet.
type Millis int64

func (m Millis) Known() bool {
	return m > 0
}

func (m Millis) String() string {
	return FormatLapTime(int64(m))
}

// Delta is a signed difference to a best time. Available is false when there was nothing to compare against.
type Delta struct {
	Millis    int64
	Available bool
}

func NewDelta(current, best Millis) Delta {
	if !current.Known() || !best.Known() {
		return Delta{}
	}

	return Delta{Millis: int64(current - best), Available: true}
}

func (d Delta) String() string {
	if !d.Available {
		return ""
	}

	return FormatDelta(d.Millis)
}

func (d Delta) MarshalJSON() ([]byte, error) {
	if !d.Available {
		return []byte("null"), nil
	}

	return json.Marshal(d.Millis)
}

func (d *Delta) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Delta{}
		return nil
	}

	if err := json.Unmarshal(b, &d.Millis); err != nil {
		return err
	}

	d.Available = true

	return nil
}

type LapSnapshot struct {
	CurrentLapNumber int    `json:"current_lap_num"`
	CurrentLapTime   Millis `json:"current_lap_time_in_ms"`
	Sector1Time      Millis `json:"sector1_time_in_ms"`
	Sector2Time      Millis `json:"sector2_time_in_ms"`
	LastLapTime      Millis `json:"last_lap_time_in_ms"`
}

type BestRecord struct {
	LapTime   Millis `json:"BestLapTime"`
	LapNumber int    `json:"BestLapNumber"`
	Sector1   Millis `json:"BestSector1"`
	Sector2   Millis `json:"BestSector2"`
	Sector3   Millis `json:"BestSector3"`
}

// IdealLap is the sum of the best sectors, or 0 until all three have been seen.
func (b BestRecord) IdealLap() Millis {
	if !b.Sector1.Known() || !b.Sector2.Known() || !b.Sector3.Known() {
		return 0
	}

	return b.Sector1 + b.Sector2 + b.Sector3
}

type LapHistoryEntry struct {
	LapNumber   int    `json:"LapNumber"`
	LapTime     Millis `json:"LapTime"`
	Sector1     Millis `json:"Sector1"`
	Sector2     Millis `json:"Sector2"`
	Sector3     Millis `json:"Sector3"`
	DeltaToBest Delta  `json:"DeltaToBest"`
}

type LapUpdate struct {
	CurrentLapNumber int    `json:"CurrentLapNumber"`
	CurrentLapTime   Millis `json:"CurrentLapTime"`
	Sector1          Millis `json:"Sector1"`
	Sector2          Millis `json:"Sector2"`

	// Sector3 is 0 while it cannot be derived ("calculating").
	Sector3 Millis `json:"Sector3"`

	LastLapTime  Millis `json:"LastLapTime"`
	LastLapDelta Delta  `json:"LastLapDelta"`

	Best BestRecord `json:"Best"`

	Sector1Delta Delta `json:"Sector1Delta"`
	Sector2Delta Delta `json:"Sector2Delta"`
	Sector3Delta Delta `json:"Sector3Delta"`

	// CompletedLap is only set on the update that completed a lap.
	CompletedLap *LapHistoryEntry `json:"CompletedLap,omitempty"`
}

// DeriveSector3 returns lap - s1 - s2, or 0 if any operand is unknown or the result is not a valid duration.
func DeriveSector3(lap, s1, s2 Millis) Millis {
	if !lap.Known() || !s1.Known() || !s2.Known() {
		return 0
	}

	s3 := lap - s1 - s2

	if s3 <= 0 {
		return 0
	}

	return s3
}

// Tracker reconstructs best laps, best sectors and lap history from a stream of lap snapshots.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	best    BestRecord
	history []LapHistoryEntry

	// lap number reported when the most recent lap completion was observed
	completedAt int

	// sectors last seen for the lap in progress
	inProgressLap     int
	inProgressSector1 Millis
	inProgressSector2 Millis
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Reset returns the tracker to its initial state, as at the start of a new session.
func (t *Tracker) Reset() {
	*t = Tracker{}
}

func (t *Tracker) Best() BestRecord {
	return t.best
}

// History returns the completed laps, oldest first.
func (t *Tracker) History() []LapHistoryEntry {
	out := make([]LapHistoryEntry, len(t.history))
	copy(out, t.history)

	return out
}

func (t *Tracker) LapsCompleted() int {
	return len(t.history)
}

func (t *Tracker) Ingest(snapshot LapSnapshot) LapUpdate {
	snapshot = sanitise(snapshot)

	update := LapUpdate{
		CurrentLapNumber: snapshot.CurrentLapNumber,
		CurrentLapTime:   snapshot.CurrentLapTime,
		Sector1:          snapshot.Sector1Time,
		Sector2:          snapshot.Sector2Time,
		Sector3:          DeriveSector3(snapshot.LastLapTime, snapshot.Sector1Time, snapshot.Sector2Time),
		LastLapTime:      snapshot.LastLapTime,
	}

	if t.isLapCompletion(snapshot) {
		entry := t.completeLap(snapshot)

		update.LastLapDelta = entry.DeltaToBest
		update.CompletedLap = &entry

		// crossing the line is the only real observation of sector 3
		updateBest(&t.best.Sector3, entry.Sector3)
	} else if len(t.history) > 0 {
		update.LastLapDelta = t.history[len(t.history)-1].DeltaToBest
	}

	t.rememberSectors(snapshot)

	updateBest(&t.best.Sector1, snapshot.Sector1Time)
	updateBest(&t.best.Sector2, snapshot.Sector2Time)
	updateBest(&t.best.Sector3, update.Sector3)

	update.Sector1Delta = NewDelta(snapshot.Sector1Time, t.best.Sector1)
	update.Sector2Delta = NewDelta(snapshot.Sector2Time, t.best.Sector2)
	update.Sector3Delta = NewDelta(update.Sector3, t.best.Sector3)

	update.Best = t.best

	return update
}

// isLapCompletion reports whether the snapshot carries a last lap time not yet recorded.
// Feeds without lap numbers are recognised by the last lap time changing.
func (t *Tracker) isLapCompletion(snapshot LapSnapshot) bool {
	if !snapshot.LastLapTime.Known() {
		return false
	}

	if len(t.history) == 0 {
		return true
	}

	return snapshot.CurrentLapNumber != t.completedAt || snapshot.LastLapTime != t.history[len(t.history)-1].LapTime
}

// completedLapNumber is the number of the lap that has just finished. When the feed's lap number
// is missing or does not move forward, laps are numbered on from the previous completion.
func (t *Tracker) completedLapNumber(snapshot LapSnapshot) int {
	lapNumber := snapshot.CurrentLapNumber - 1

	previous := 0

	if len(t.history) > 0 {
		previous = t.history[len(t.history)-1].LapNumber
	}

	if lapNumber < 1 || lapNumber <= previous {
		return previous + 1
	}

	return lapNumber
}

func (t *Tracker) completeLap(snapshot LapSnapshot) LapHistoryEntry {
	lapNumber := t.completedLapNumber(snapshot)

	// the delta is against the best before this lap, so a new best lap reads negative
	delta := NewDelta(snapshot.LastLapTime, t.best.LapTime)

	if !t.best.LapTime.Known() || snapshot.LastLapTime < t.best.LapTime {
		t.best.LapTime = snapshot.LastLapTime
		t.best.LapNumber = lapNumber
	}

	s1, s2 := snapshot.Sector1Time, snapshot.Sector2Time

	inProgress := t.inProgressLap == snapshot.CurrentLapNumber-1 || t.inProgressLap == snapshot.CurrentLapNumber

	if inProgress && (t.inProgressSector1.Known() || t.inProgressSector2.Known()) {
		s1, s2 = t.inProgressSector1, t.inProgressSector2
	}

	entry := LapHistoryEntry{
		LapNumber:   lapNumber,
		LapTime:     snapshot.LastLapTime,
		Sector1:     s1,
		Sector2:     s2,
		Sector3:     DeriveSector3(snapshot.LastLapTime, s1, s2),
		DeltaToBest: delta,
	}

	t.history = append(t.history, entry)
	t.completedAt = snapshot.CurrentLapNumber

	// sectors seen from here on belong to the next lap
	t.inProgressLap = snapshot.CurrentLapNumber
	t.inProgressSector1 = 0
	t.inProgressSector2 = 0

	return entry
}

func (t *Tracker) rememberSectors(snapshot LapSnapshot) {
	if snapshot.CurrentLapNumber != t.inProgressLap {
		t.inProgressLap = snapshot.CurrentLapNumber
		t.inProgressSector1 = 0
		t.inProgressSector2 = 0
	}

	if snapshot.Sector1Time.Known() {
		t.inProgressSector1 = snapshot.Sector1Time
	}

	if snapshot.Sector2Time.Known() {
		t.inProgressSector2 = snapshot.Sector2Time
	}
}

func updateBest(best *Millis, current Millis) {
	if current.Known() && (!best.Known() || current < *best) {
		*best = current
	}
}

func sanitise(snapshot LapSnapshot) LapSnapshot {
	for _, m := range []*Millis{&snapshot.CurrentLapTime, &snapshot.Sector1Time, &snapshot.Sector2Time, &snapshot.LastLapTime} {
		if *m < 0 {
			*m = 0
		}
	}

	if snapshot.CurrentLapNumber < 0 {
		snapshot.CurrentLapNumber = 0
	}

	return snapshot
}
