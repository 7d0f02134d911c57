package udp

import (
	"justapengu.in/livetiming/internal/telemetry"
	"justapengu.in/livetiming/pkg/laptiming"
)

type Event uint8

const (
	EventNewSession   Event = 50
	EventCarTelemetry Event = 53
	EventParticipants Event = 54
	EventCarStatus    Event = 55
	EventSessionInfo  Event = 59
	EventError        Event = 60
	EventLapData      Event = 73
)

type Message interface {
	Event() Event
}

type ServerError struct {
	error
}

func NewServerError(err error) ServerError {
	return ServerError{error: err}
}

func (ServerError) Event() Event {
	return EventError
}

type CarIndex = telemetry.CarIndex

type NewSession struct {
	SessionUID     uint64   `json:"SessionUID"`
	PlayerCarIndex CarIndex `json:"PlayerCarIndex"`
}

func (NewSession) Event() Event {
	return EventNewSession
}

type SessionInfo struct {
	SessionUID       uint64 `json:"SessionUID"`
	SessionType      string `json:"SessionType"`
	TrackID          int8   `json:"TrackID"`
	TotalLaps        uint8  `json:"TotalLaps"`
	TrackLength      uint16 `json:"TrackLength"`
	Weather          string `json:"Weather"`
	TrackTemperature int8   `json:"TrackTemperature"`
	AirTemperature   int8   `json:"AirTemperature"`
	SessionTimeLeft  uint16 `json:"SessionTimeLeft"`
}

func (SessionInfo) Event() Event {
	return EventSessionInfo
}

type PitStatus = telemetry.PitStatus

type CarLapData struct {
	CarIndex CarIndex `json:"CarIndex"`

	Snapshot laptiming.LapSnapshot `json:"Snapshot"`

	Position          uint8            `json:"Position"`
	GridPosition      uint8            `json:"GridPosition"`
	InPits            bool             `json:"InPits"`
	PitStatus         PitStatus        `json:"PitStatus"`
	NumPitStops       uint8            `json:"NumPitStops"`
	Sector            uint8            `json:"Sector"`
	LapInvalid        bool             `json:"LapInvalid"`
	Penalties         uint8            `json:"Penalties"`
	DeltaToCarInFront laptiming.Millis `json:"DeltaToCarInFront"`
	DeltaToRaceLeader laptiming.Millis `json:"DeltaToRaceLeader"`
}

type LapData struct {
	PlayerCarIndex CarIndex      `json:"PlayerCarIndex"`
	Cars           []*CarLapData `json:"Cars"`
}

func (LapData) Event() Event {
	return EventLapData
}

type CarTelemetry = telemetry.CarTelemetry

type Telemetry struct {
	PlayerCarIndex CarIndex       `json:"PlayerCarIndex"`
	Cars           []CarTelemetry `json:"Cars"`
}

func (Telemetry) Event() Event {
	return EventCarTelemetry
}

type CarStatus = telemetry.CarStatus

type Status struct {
	PlayerCarIndex CarIndex    `json:"PlayerCarIndex"`
	Cars           []CarStatus `json:"Cars"`
}

func (Status) Event() Event {
	return EventCarStatus
}

type Participant = telemetry.Participant

type Participants []Participant

func (Participants) Event() Event {
	return EventParticipants
}
