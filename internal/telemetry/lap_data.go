package telemetry

import (
	"justapengu.in/livetiming/pkg/laptiming"
)

type CarIndex uint8

type PitStatus uint8

const (
	PitStatusNone    PitStatus = 0
	PitStatusPitting PitStatus = 1
	PitStatusInPits  PitStatus = 2
)

func (s PitStatus) String() string {
	switch s {
	case PitStatusNone:
		return "None"
	case PitStatusPitting:
		return "Pitting"
	case PitStatusInPits:
		return "In Pit Area"
	default:
		return "Unknown"
	}
}

// lapDataWire is the per car lap data layout, 57 bytes.
type lapDataWire struct {
	LastLapTimeInMS              uint32
	CurrentLapTimeInMS           uint32
	Sector1TimeMSPart            uint16
	Sector1TimeMinutesPart       uint8
	Sector2TimeMSPart            uint16
	Sector2TimeMinutesPart       uint8
	DeltaToCarInFrontMSPart      uint16
	DeltaToCarInFrontMinutesPart uint8
	DeltaToRaceLeaderMSPart      uint16
	DeltaToRaceLeaderMinutesPart uint8
	LapDistance                  float32
	TotalDistance                float32
	SafetyCarDelta               float32
	CarPosition                  uint8
	CurrentLapNum                uint8
	PitStatus                    uint8
	NumPitStops                  uint8
	Sector                       uint8
	CurrentLapInvalid            uint8
	Penalties                    uint8
	TotalWarnings                uint8
	CornerCuttingWarnings        uint8
	NumUnservedDriveThroughPens  uint8
	NumUnservedStopGoPens        uint8
	GridPosition                 uint8
	DriverStatus                 uint8
	ResultStatus                 uint8
	PitLaneTimerActive           uint8
	PitLaneTimeInLaneInMS        uint16
	PitStopTimerInMS             uint16
	PitStopShouldServePen        uint8
	SpeedTrapFastestSpeed        float32
	SpeedTrapFastestLap          uint8
}

func splitTime(minutes uint8, ms uint16) laptiming.Millis {
	return laptiming.Millis(int64(minutes)*60000 + int64(ms))
}

type CarLapData struct {
	CarIndex CarIndex

	Snapshot laptiming.LapSnapshot

	Position          uint8
	GridPosition      uint8
	PitStatus         PitStatus
	NumPitStops       uint8
	Sector            uint8
	LapInvalid        bool
	Penalties         uint8
	DriverStatus      uint8
	ResultStatus      uint8
	LapDistance       float32
	DeltaToCarInFront laptiming.Millis
	DeltaToRaceLeader laptiming.Millis
}

// Active reports whether the slot is in use. Unused slots are sent with a zero result status.
func (c CarLapData) Active() bool {
	return c.ResultStatus != 0
}

func ReadLapData(p *Packet) ([]CarLapData, error) {
	cars := make([]CarLapData, 0, MaxNumCarsInPacket)

	for i := 0; i < MaxNumCarsInPacket; i++ {
		var wire lapDataWire

		if err := p.Read(&wire); err != nil {
			return nil, err
		}

		cars = append(cars, CarLapData{
			CarIndex: CarIndex(i),
			Snapshot: laptiming.LapSnapshot{
				CurrentLapNumber: int(wire.CurrentLapNum),
				CurrentLapTime:   laptiming.Millis(wire.CurrentLapTimeInMS),
				Sector1Time:      splitTime(wire.Sector1TimeMinutesPart, wire.Sector1TimeMSPart),
				Sector2Time:      splitTime(wire.Sector2TimeMinutesPart, wire.Sector2TimeMSPart),
				LastLapTime:      laptiming.Millis(wire.LastLapTimeInMS),
			},
			Position:          wire.CarPosition,
			GridPosition:      wire.GridPosition,
			PitStatus:         PitStatus(wire.PitStatus),
			NumPitStops:       wire.NumPitStops,
			Sector:            wire.Sector,
			LapInvalid:        wire.CurrentLapInvalid == 1,
			Penalties:         wire.Penalties,
			DriverStatus:      wire.DriverStatus,
			ResultStatus:      wire.ResultStatus,
			LapDistance:       wire.LapDistance,
			DeltaToCarInFront: splitTime(wire.DeltaToCarInFrontMinutesPart, wire.DeltaToCarInFrontMSPart),
			DeltaToRaceLeader: splitTime(wire.DeltaToRaceLeaderMinutesPart, wire.DeltaToRaceLeaderMSPart),
		})
	}

	return cars, nil
}

type LapDataPacketHandler struct {
	plugin Plugin
}

func NewLapDataPacketHandler(plugin Plugin) *LapDataPacketHandler {
	return &LapDataPacketHandler{plugin: plugin}
}

func (h LapDataPacketHandler) OnPacket(header PacketHeader, p *Packet) error {
	cars, err := ReadLapData(p)

	if err != nil {
		return err
	}

	return h.plugin.OnLapData(header, cars)
}

func (h LapDataPacketHandler) PacketID() PacketID {
	return PacketIDLapData
}
