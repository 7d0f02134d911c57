package livetiming

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"justapengu.in/livetiming/internal/telemetry"
	"justapengu.in/livetiming/pkg/laptiming"
	"justapengu.in/livetiming/pkg/udp"
)

func NewLiveTimingDriver(carIndex udp.CarIndex) *LiveTimingDriver {
	return &LiveTimingDriver{
		LiveTimingDriverData: LiveTimingDriverData{
			CarIndex:     carIndex,
			Abbreviation: telemetry.DriverAbbreviation("", carIndex),
		},
		tracker: laptiming.NewTracker(),
	}
}

type LiveTimingDriverData struct {
	CarIndex     udp.CarIndex `json:"CarIndex"`
	Name         string       `json:"Name"`
	Abbreviation string       `json:"Abbreviation"`
	TeamID       uint8        `json:"TeamID"`
	RaceNumber   uint8        `json:"RaceNumber"`
	AIControlled bool         `json:"AIControlled"`

	Position          int              `json:"Position"`
	GridPosition      int              `json:"GridPosition"`
	IsInPits          bool             `json:"IsInPits"`
	PitStatus         udp.PitStatus    `json:"PitStatus"`
	NumPitStops       int              `json:"NumPitStops"`
	Sector            int              `json:"Sector"`
	LapInvalid        bool             `json:"LapInvalid"`
	Penalties         int              `json:"Penalties"`
	DeltaToCarInFront laptiming.Millis `json:"DeltaToCarInFront"`
	DeltaToRaceLeader laptiming.Millis `json:"DeltaToRaceLeader"`
	LastSeen          time.Time        `json:"LastSeen"`

	Timing        laptiming.LapUpdate `json:"Timing"`
	LapsCompleted int                 `json:"LapsCompleted"`

	Telemetry *udp.CarTelemetry `json:"Telemetry,omitempty"`
	Status    *udp.CarStatus    `json:"Status,omitempty"`
}

type LiveTimingDriver struct {
	LiveTimingDriverData

	tracker *laptiming.Tracker

	mutex sync.RWMutex
}

// SetParticipant updates the driver's identity. Identity survives session resets.
func (ltd *LiveTimingDriver) SetParticipant(participant udp.Participant) {
	ltd.mutex.Lock()
	defer ltd.mutex.Unlock()

	ltd.Name = participant.Name
	ltd.Abbreviation = participant.Abbreviation
	ltd.TeamID = participant.TeamID
	ltd.RaceNumber = participant.RaceNumber
	ltd.AIControlled = participant.AIControlled
}

func (ltd *LiveTimingDriver) SetTelemetry(carTelemetry udp.CarTelemetry) {
	ltd.mutex.Lock()
	defer ltd.mutex.Unlock()

	ltd.Telemetry = &carTelemetry
}

func (ltd *LiveTimingDriver) SetStatus(carStatus udp.CarStatus) {
	ltd.mutex.Lock()
	defer ltd.mutex.Unlock()

	ltd.Status = &carStatus
}

// UpdateLapData applies a car's lap data. Lap data whose lap number is behind the lap being timed is
// rejected with ErrLapNumberRegression and leaves the driver unchanged.
func (ltd *LiveTimingDriver) UpdateLapData(lapData *udp.CarLapData, seen time.Time) (laptiming.LapUpdate, error) {
	ltd.mutex.Lock()
	defer ltd.mutex.Unlock()

	if err := ltd.checkLapNumber(lapData.Snapshot); err != nil {
		return ltd.Timing, err
	}

	ltd.Position = int(lapData.Position)
	ltd.GridPosition = int(lapData.GridPosition)
	ltd.IsInPits = lapData.InPits
	ltd.PitStatus = lapData.PitStatus
	ltd.NumPitStops = int(lapData.NumPitStops)
	ltd.Sector = int(lapData.Sector)
	ltd.LapInvalid = lapData.LapInvalid
	ltd.Penalties = int(lapData.Penalties)
	ltd.DeltaToCarInFront = lapData.DeltaToCarInFront
	ltd.DeltaToRaceLeader = lapData.DeltaToRaceLeader
	ltd.LastSeen = seen

	return ltd.ingest(lapData.Snapshot), nil
}

func (ltd *LiveTimingDriver) IngestSnapshot(snapshot laptiming.LapSnapshot, seen time.Time) (laptiming.LapUpdate, error) {
	ltd.mutex.Lock()
	defer ltd.mutex.Unlock()

	if err := ltd.checkLapNumber(snapshot); err != nil {
		return ltd.Timing, err
	}

	ltd.LastSeen = seen

	return ltd.ingest(snapshot), nil
}

// checkLapNumber must be called with the mutex held.
func (ltd *LiveTimingDriver) checkLapNumber(snapshot laptiming.LapSnapshot) error {
	if current := ltd.Timing.CurrentLapNumber; snapshot.CurrentLapNumber > 0 && snapshot.CurrentLapNumber < current {
		return errors.Wrapf(ErrLapNumberRegression, "car %d lap %d to %d", ltd.CarIndex, current, snapshot.CurrentLapNumber)
	}

	return nil
}

func (ltd *LiveTimingDriver) ingest(snapshot laptiming.LapSnapshot) laptiming.LapUpdate {
	update := ltd.tracker.Ingest(snapshot)

	ltd.Timing = update
	ltd.LapsCompleted = ltd.tracker.LapsCompleted()

	return update
}

func (ltd *LiveTimingDriver) History() []laptiming.LapHistoryEntry {
	ltd.mutex.RLock()
	defer ltd.mutex.RUnlock()

	return ltd.tracker.History()
}

func (ltd *LiveTimingDriver) Best() laptiming.BestRecord {
	ltd.mutex.RLock()
	defer ltd.mutex.RUnlock()

	return ltd.tracker.Best()
}

func (ltd *LiveTimingDriver) Data() LiveTimingDriverData {
	ltd.mutex.RLock()
	defer ltd.mutex.RUnlock()

	return ltd.LiveTimingDriverData
}

// ClearSessionInfo resets the tracker and all per-session data, keeping the driver's identity.
func (ltd *LiveTimingDriver) ClearSessionInfo() {
	ltd.mutex.Lock()
	defer ltd.mutex.Unlock()

	ltd.tracker.Reset()

	ltd.LiveTimingDriverData = LiveTimingDriverData{
		CarIndex:     ltd.CarIndex,
		Name:         ltd.Name,
		Abbreviation: ltd.Abbreviation,
		TeamID:       ltd.TeamID,
		RaceNumber:   ltd.RaceNumber,
		AIControlled: ltd.AIControlled,
	}
}

func (ltd *LiveTimingDriver) MarshalJSON() ([]byte, error) {
	ltd.mutex.RLock()
	defer ltd.mutex.RUnlock()

	return json.Marshal(ltd.LiveTimingDriverData)
}

type DriverMap struct {
	Drivers                     map[udp.CarIndex]*LiveTimingDriver `json:"Drivers"`
	CarIndexesInPositionalOrder []udp.CarIndex                     `json:"CarIndexesInPositionalOrder"`

	driverSortLessFunc driverSortLessFunc

	rwMutex sync.RWMutex
}

type driverSortLessFunc func(driverA, driverB LiveTimingDriverData) bool

// positionalOrder sorts by race position. Cars without a position yet go last, by car index.
func positionalOrder(driverA, driverB LiveTimingDriverData) bool {
	switch {
	case driverA.Position == 0 && driverB.Position == 0:
		return driverA.CarIndex < driverB.CarIndex
	case driverA.Position == 0:
		return false
	case driverB.Position == 0:
		return true
	case driverA.Position == driverB.Position:
		return driverA.CarIndex < driverB.CarIndex
	default:
		return driverA.Position < driverB.Position
	}
}

func NewDriverMap(driverSortLessFunc driverSortLessFunc) *DriverMap {
	return &DriverMap{
		Drivers:            make(map[udp.CarIndex]*LiveTimingDriver),
		driverSortLessFunc: driverSortLessFunc,
	}
}

func (d *DriverMap) Each(fn func(carIndex udp.CarIndex, driver *LiveTimingDriver) error) error {
	d.rwMutex.RLock()
	defer d.rwMutex.RUnlock()

	for _, carIndex := range d.CarIndexesInPositionalOrder {
		driver, ok := d.Drivers[carIndex]

		if !ok {
			continue
		}

		if err := fn(carIndex, driver); err != nil {
			return err
		}
	}

	return nil
}

func (d *DriverMap) Get(carIndex udp.CarIndex) (*LiveTimingDriver, bool) {
	d.rwMutex.RLock()
	defer d.rwMutex.RUnlock()

	driver, ok := d.Drivers[carIndex]

	return driver, ok
}

// GetOrAdd returns the driver in the given slot, creating it if the slot has not been seen yet.
func (d *DriverMap) GetOrAdd(carIndex udp.CarIndex) *LiveTimingDriver {
	if driver, ok := d.Get(carIndex); ok {
		return driver
	}

	d.rwMutex.Lock()
	defer d.rwMutex.Unlock()

	if driver, ok := d.Drivers[carIndex]; ok {
		return driver
	}

	driver := NewLiveTimingDriver(carIndex)

	d.Drivers[carIndex] = driver
	d.CarIndexesInPositionalOrder = append(d.CarIndexesInPositionalOrder, carIndex)

	return driver
}

func (d *DriverMap) Len() int {
	d.rwMutex.RLock()
	defer d.rwMutex.RUnlock()

	return len(d.Drivers)
}

func (d *DriverMap) Sort() {
	d.rwMutex.Lock()
	defer d.rwMutex.Unlock()

	data := make(map[udp.CarIndex]LiveTimingDriverData, len(d.Drivers))

	for carIndex, driver := range d.Drivers {
		data[carIndex] = driver.Data()
	}

	sort.SliceStable(d.CarIndexesInPositionalOrder, func(i, j int) bool {
		return d.driverSortLessFunc(data[d.CarIndexesInPositionalOrder[i]], data[d.CarIndexesInPositionalOrder[j]])
	})
}

// Standings returns a copy of every driver's data in positional order.
func (d *DriverMap) Standings() []LiveTimingDriverData {
	standings := make([]LiveTimingDriverData, 0, d.Len())

	_ = d.Each(func(_ udp.CarIndex, driver *LiveTimingDriver) error {
		standings = append(standings, driver.Data())
		return nil
	})

	return standings
}

func (d *DriverMap) ClearSessionInfo() {
	d.rwMutex.RLock()
	defer d.rwMutex.RUnlock()

	for _, driver := range d.Drivers {
		driver.ClearSessionInfo()
	}
}

func (d *DriverMap) Del(carIndex udp.CarIndex) {
	d.rwMutex.Lock()
	defer d.rwMutex.Unlock()

	delete(d.Drivers, carIndex)

	for index, idx := range d.CarIndexesInPositionalOrder {
		if idx == carIndex {
			d.CarIndexesInPositionalOrder = append(d.CarIndexesInPositionalOrder[:index], d.CarIndexesInPositionalOrder[index+1:]...)
			break
		}
	}
}
