package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultPort is the port the game sends UDP telemetry to unless configured otherwise.
	DefaultPort = 20777

	PacketFormat2024 = 2024

	MaxNumCarsInPacket = 22
)

var (
	ErrShortPacket       = errors.New("telemetry: packet is too short")
	ErrUnsupportedFormat = errors.New("telemetry: unsupported packet format")
)

type PacketID uint8

const (
	PacketIDMotion              PacketID = 0
	PacketIDSession             PacketID = 1
	PacketIDLapData             PacketID = 2
	PacketIDEvent               PacketID = 3
	PacketIDParticipants        PacketID = 4
	PacketIDCarSetups           PacketID = 5
	PacketIDCarTelemetry        PacketID = 6
	PacketIDCarStatus           PacketID = 7
	PacketIDFinalClassification PacketID = 8
	PacketIDLobbyInfo           PacketID = 9
	PacketIDCarDamage           PacketID = 10
	PacketIDSessionHistory      PacketID = 11
	PacketIDTyreSets            PacketID = 12
	PacketIDMotionEx            PacketID = 13
	PacketIDTimeTrial           PacketID = 14
)

var packetIDNames = map[PacketID]string{
	PacketIDMotion:              "motion",
	PacketIDSession:             "session",
	PacketIDLapData:             "lap_data",
	PacketIDEvent:               "event",
	PacketIDParticipants:        "participants",
	PacketIDCarSetups:           "car_setups",
	PacketIDCarTelemetry:        "car_telemetry",
	PacketIDCarStatus:           "car_status",
	PacketIDFinalClassification: "final_classification",
	PacketIDLobbyInfo:           "lobby_info",
	PacketIDCarDamage:           "car_damage",
	PacketIDSessionHistory:      "session_history",
	PacketIDTyreSets:            "tyre_sets",
	PacketIDMotionEx:            "motion_ex",
	PacketIDTimeTrial:           "time_trial",
}

func (id PacketID) String() string {
	if name, ok := packetIDNames[id]; ok {
		return name
	}

	return fmt.Sprintf("unknown_%d", uint8(id))
}

// PacketHeader is the 29 byte header at the start of every packet.
type PacketHeader struct {
	PacketFormat            uint16
	GameYear                uint8
	GameMajorVersion        uint8
	GameMinorVersion        uint8
	PacketVersion           uint8
	PacketID                PacketID
	SessionUID              uint64
	SessionTime             float32
	FrameIdentifier         uint32
	OverallFrameIdentifier  uint32
	PlayerCarIndex          uint8
	SecondaryPlayerCarIndex uint8
}

func ReadHeader(p *Packet) (PacketHeader, error) {
	var header PacketHeader

	if err := p.Read(&header); err != nil {
		return header, err
	}

	if header.PacketFormat != PacketFormat2024 {
		return header, ErrUnsupportedFormat
	}

	return header, nil
}
