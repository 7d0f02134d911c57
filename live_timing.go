package livetiming

import (
	"sync"
	"time"

	"github.com/hako/durafmt"
	"github.com/pkg/errors"

	"justapengu.in/livetiming/internal/telemetry"
	"justapengu.in/livetiming/pkg/laptiming"
	"justapengu.in/livetiming/pkg/udp"
)

type Logger = telemetry.Logger

type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusWarning      ConnectionStatus = "warning"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"

	connectedThreshold = 2 * time.Second
	warningThreshold   = 5 * time.Second
)

// ErrLapNumberRegression is returned when a snapshot's lap number is lower than the lap already being timed.
var ErrLapNumberRegression = errors.New("lap number went backwards")

type LiveTimingConfig struct {
	BroadcastStandings bool `json:"broadcast_standings" yaml:"broadcast_standings"`
	BroadcastTelemetry bool `json:"broadcast_telemetry" yaml:"broadcast_telemetry"`

	RaceEngineer RaceEngineerConfig `json:"race_engineer" yaml:"race_engineer"`
}

// LiveTiming owns a lap timing tracker for every car in the session and pushes
// updates to a Broadcaster as telemetry arrives.
type LiveTiming struct {
	config      LiveTimingConfig
	broadcaster Broadcaster
	logger      Logger

	Drivers *DriverMap

	// engineer is nil when the race engineer is disabled
	engineer *RaceEngineer

	sessionInfo      udp.SessionInfo
	sessionUID       uint64
	sessionStartTime time.Time
	playerCarIndex   udp.CarIndex
	lastPacket       time.Time

	mutex sync.RWMutex

	now func() time.Time
}

func NewLiveTiming(config LiveTimingConfig, broadcaster Broadcaster, logger Logger) *LiveTiming {
	if broadcaster == nil {
		broadcaster = NilBroadcaster{}
	}

	lt := &LiveTiming{
		config:      config,
		broadcaster: broadcaster,
		logger:      logger,
		Drivers:     NewDriverMap(positionalOrder),
		now:         time.Now,
	}

	if config.RaceEngineer.Enabled {
		lt.engineer = NewRaceEngineer(config.RaceEngineer, logger)
		lt.engineer.now = func() time.Time {
			return lt.now()
		}
	}

	return lt
}

// LapTiming is the lap timing state of a single car.
type LapTiming struct {
	CarIndex      udp.CarIndex                `json:"CarIndex"`
	Name          string                      `json:"Name"`
	Abbreviation  string                      `json:"Abbreviation"`
	Update        laptiming.LapUpdate         `json:"Update"`
	Best          laptiming.BestRecord        `json:"Best"`
	IdealLap      laptiming.Millis            `json:"IdealLap"`
	History       []laptiming.LapHistoryEntry `json:"History"`
	LapsCompleted int                         `json:"LapsCompleted"`
}

// SessionState describes the current session and the health of the telemetry feed.
type SessionState struct {
	SessionInfo      udp.SessionInfo  `json:"SessionInfo"`
	PlayerCarIndex   udp.CarIndex     `json:"PlayerCarIndex"`
	SessionStartTime time.Time        `json:"SessionStartTime"`
	LastPacket       time.Time        `json:"LastPacket"`
	ConnectionStatus ConnectionStatus `json:"ConnectionStatus"`
	NumCars          int              `json:"NumCars"`
}

func (lt *LiveTiming) UDPCallback(message udp.Message) {
	var err error

	if _, isError := message.(udp.ServerError); !isError {
		lt.mutex.Lock()
		lt.lastPacket = lt.now()
		lt.mutex.Unlock()
	}

	switch m := message.(type) {
	case udp.NewSession:
		err = lt.OnNewSession(m)
	case udp.SessionInfo:
		err = lt.OnSessionInfo(m)
	case udp.LapData:
		err = lt.OnLapData(m)
	case udp.Telemetry:
		err = lt.OnCarTelemetry(m)
	case udp.Status:
		err = lt.OnCarStatus(m)
	case udp.Participants:
		err = lt.OnParticipants(m)
	case udp.ServerError:
		lt.logger.WithError(m).Error("telemetry receiver error")
	default:
		lt.logger.Debugf("Unhandled live timing message: %T", message)
	}

	if err != nil {
		lt.logger.WithError(err).Errorf("Could not handle live timing event: %d", message.Event())
	}
}

func (lt *LiveTiming) OnNewSession(newSession udp.NewSession) error {
	lt.mutex.Lock()

	if !lt.sessionStartTime.IsZero() {
		lt.logger.Infof("Session %x ended after %s", lt.sessionUID, durafmt.Parse(lt.now().Sub(lt.sessionStartTime).Round(time.Second)))
	}

	lt.sessionUID = newSession.SessionUID
	lt.sessionStartTime = lt.now()
	lt.playerCarIndex = newSession.PlayerCarIndex
	lt.sessionInfo = udp.SessionInfo{SessionUID: newSession.SessionUID}

	lt.mutex.Unlock()

	lt.Drivers.ClearSessionInfo()
	lt.Drivers.Sort()

	if lt.engineer != nil {
		lt.engineer.Reset()
	}

	lt.logger.Infof("New session %x started, player car index: %d", newSession.SessionUID, newSession.PlayerCarIndex)

	return lt.broadcaster.Send(Message{MessageType: messageTypeSessionUpdate, Body: lt.SessionState()})
}

func (lt *LiveTiming) OnSessionInfo(sessionInfo udp.SessionInfo) error {
	lt.mutex.Lock()
	changed := lt.sessionInfo != sessionInfo
	lt.sessionInfo = sessionInfo
	lt.mutex.Unlock()

	if !changed {
		return nil
	}

	return lt.broadcaster.Send(Message{MessageType: messageTypeSessionUpdate, Body: lt.SessionState()})
}

func (lt *LiveTiming) OnLapData(lapData udp.LapData) error {
	lt.mutex.Lock()
	lt.playerCarIndex = lapData.PlayerCarIndex
	lt.mutex.Unlock()

	now := lt.now()

	for _, car := range lapData.Cars {
		driver := lt.Drivers.GetOrAdd(car.CarIndex)

		update, err := driver.UpdateLapData(car, now)

		if err != nil {
			lapNumberRegressionsMetric.Inc()
			lt.logger.WithError(err).Warn("Ignoring lap data")
			continue
		}

		if update.CompletedLap != nil {
			lt.onLapCompleted(driver, *update.CompletedLap)
		}

		if car.CarIndex == lapData.PlayerCarIndex {
			if err := lt.broadcaster.Send(Message{MessageType: messageTypeLapDataUpdate, Body: lt.lapTiming(driver)}); err != nil {
				return err
			}

			if lt.engineer != nil {
				if err := lt.sendAlerts(lt.engineer.OnLap(car, update)); err != nil {
					return err
				}
			}
		}
	}

	lt.Drivers.Sort()

	if lt.config.BroadcastStandings {
		return lt.broadcaster.Send(Message{MessageType: messageTypeStandingsUpdate, Body: lt.Drivers.Standings()})
	}

	return nil
}

// IngestPlayerSnapshot feeds a snapshot from outside the telemetry feed to the player's tracker.
func (lt *LiveTiming) IngestPlayerSnapshot(snapshot laptiming.LapSnapshot) (LapTiming, error) {
	lt.mutex.Lock()
	lt.lastPacket = lt.now()
	playerCarIndex := lt.playerCarIndex
	lt.mutex.Unlock()

	driver := lt.Drivers.GetOrAdd(playerCarIndex)

	update, err := driver.IngestSnapshot(snapshot, lt.now())

	if err != nil {
		lapNumberRegressionsMetric.Inc()
		return lt.lapTiming(driver), err
	}

	if update.CompletedLap != nil {
		lt.onLapCompleted(driver, *update.CompletedLap)
	}

	timing := lt.lapTiming(driver)

	if err := lt.broadcaster.Send(Message{MessageType: messageTypeLapDataUpdate, Body: timing}); err != nil {
		return timing, err
	}

	if lt.engineer != nil {
		return timing, lt.sendAlerts(lt.engineer.OnLap(nil, update))
	}

	return timing, nil
}

func (lt *LiveTiming) sendAlerts(alerts []Alert) error {
	for _, alert := range alerts {
		if err := lt.broadcaster.Send(Message{MessageType: messageTypeAlert, Body: alert}); err != nil {
			return err
		}
	}

	return nil
}

func (lt *LiveTiming) onLapCompleted(driver *LiveTimingDriver, lap laptiming.LapHistoryEntry) {
	lapsCompletedMetric.Inc()

	data := driver.Data()

	lt.logger.Infof(
		"Car %d (%s) completed lap %d: %s (%s) S1 %s S2 %s S3 %s",
		data.CarIndex, data.Abbreviation, lap.LapNumber,
		laptiming.FormatLapTime(int64(lap.LapTime)), lap.DeltaToBest,
		laptiming.FormatLapTime(int64(lap.Sector1)), laptiming.FormatLapTime(int64(lap.Sector2)), laptiming.FormatLapTime(int64(lap.Sector3)),
	)
}

func (lt *LiveTiming) OnCarTelemetry(carTelemetry udp.Telemetry) error {
	var player *udp.CarTelemetry

	for i, car := range carTelemetry.Cars {
		if car.CarIndex == carTelemetry.PlayerCarIndex {
			player = &carTelemetry.Cars[i]
		}

		if driver, ok := lt.Drivers.Get(car.CarIndex); ok {
			driver.SetTelemetry(car)
		}
	}

	var err error

	switch {
	case lt.config.BroadcastTelemetry:
		err = lt.broadcaster.Send(Message{MessageType: messageTypeCarTelemetryUpdate, Body: carTelemetry.Cars})
	case player != nil:
		err = lt.broadcaster.Send(Message{MessageType: messageTypeCarTelemetryUpdate, Body: player})
	}

	if err != nil || player == nil || lt.engineer == nil {
		return err
	}

	return lt.sendAlerts(lt.engineer.OnTelemetry(*player))
}

// OnCarStatus stores every car's status and broadcasts the player's.
func (lt *LiveTiming) OnCarStatus(status udp.Status) error {
	var player *udp.CarStatus

	for i, car := range status.Cars {
		if car.CarIndex == status.PlayerCarIndex {
			player = &status.Cars[i]
		}

		if driver, ok := lt.Drivers.Get(car.CarIndex); ok {
			driver.SetStatus(car)
		}
	}

	if player == nil {
		return nil
	}

	if err := lt.broadcaster.Send(Message{MessageType: messageTypeCarStatusUpdate, Body: player}); err != nil {
		return err
	}

	if lt.engineer == nil {
		return nil
	}

	return lt.sendAlerts(lt.engineer.OnStatus(*player))
}

// RaceEngineerSummary returns the race engineer's recent alerts, or false if it is disabled.
func (lt *LiveTiming) RaceEngineerSummary() (RaceEngineerSummary, bool) {
	if lt.engineer == nil {
		return RaceEngineerSummary{}, false
	}

	return lt.engineer.Summary(), true
}

func (lt *LiveTiming) OnParticipants(participants udp.Participants) error {
	for _, participant := range participants {
		lt.Drivers.GetOrAdd(participant.CarIndex).SetParticipant(participant)
	}

	return nil
}

func (lt *LiveTiming) lapTiming(driver *LiveTimingDriver) LapTiming {
	data := driver.Data()
	best := driver.Best()

	return LapTiming{
		CarIndex:      data.CarIndex,
		Name:          data.Name,
		Abbreviation:  data.Abbreviation,
		Update:        data.Timing,
		Best:          best,
		IdealLap:      best.IdealLap(),
		History:       driver.History(),
		LapsCompleted: data.LapsCompleted,
	}
}

// PlayerLapTiming returns the lap timing of the player's car, if it has been seen.
func (lt *LiveTiming) PlayerLapTiming() (LapTiming, bool) {
	lt.mutex.RLock()
	playerCarIndex := lt.playerCarIndex
	lt.mutex.RUnlock()

	return lt.CarLapTiming(playerCarIndex)
}

func (lt *LiveTiming) CarLapTiming(carIndex udp.CarIndex) (LapTiming, bool) {
	driver, ok := lt.Drivers.Get(carIndex)

	if !ok {
		return LapTiming{}, false
	}

	return lt.lapTiming(driver), true
}

func (lt *LiveTiming) ConnectionStatus() ConnectionStatus {
	lt.mutex.RLock()
	lastPacket := lt.lastPacket
	lt.mutex.RUnlock()

	return connectionStatus(lastPacket, lt.now())
}

func connectionStatus(lastPacket, now time.Time) ConnectionStatus {
	if lastPacket.IsZero() {
		return ConnectionStatusDisconnected
	}

	switch since := now.Sub(lastPacket); {
	case since < connectedThreshold:
		return ConnectionStatusConnected
	case since < warningThreshold:
		return ConnectionStatusWarning
	default:
		return ConnectionStatusDisconnected
	}
}

func (lt *LiveTiming) SessionState() SessionState {
	lt.mutex.RLock()
	state := SessionState{
		SessionInfo:      lt.sessionInfo,
		PlayerCarIndex:   lt.playerCarIndex,
		SessionStartTime: lt.sessionStartTime,
		LastPacket:       lt.lastPacket,
	}
	lt.mutex.RUnlock()

	state.ConnectionStatus = connectionStatus(state.LastPacket, lt.now())
	state.NumCars = lt.Drivers.Len()

	return state
}

// InitialMessages is the current state, sent to websocket clients when they connect.
func (lt *LiveTiming) InitialMessages() []Message {
	messages := []Message{
		{MessageType: messageTypeSessionUpdate, Body: lt.SessionState()},
		{MessageType: messageTypeStandingsUpdate, Body: lt.Drivers.Standings()},
	}

	if timing, ok := lt.PlayerLapTiming(); ok {
		messages = append(messages, Message{MessageType: messageTypeLapDataUpdate, Body: timing})
	}

	return messages
}
