package livetiming

import (
	"justapengu.in/livetiming/internal/telemetry"
	"justapengu.in/livetiming/pkg/udp"
)

type LiveTimingAdapter struct {
	*LiveTiming
}

func NewLiveTimingAdapter(liveTiming *LiveTiming) telemetry.Plugin {
	return &LiveTimingAdapter{
		LiveTiming: liveTiming,
	}
}

func (l *LiveTimingAdapter) Init(logger telemetry.Logger) error {
	l.LiveTiming.logger = logger

	if l.LiveTiming.engineer != nil {
		l.LiveTiming.engineer.logger = logger
	}

	return nil
}

func (l *LiveTimingAdapter) OnNewSession(header telemetry.PacketHeader) error {
	l.LiveTiming.UDPCallback(udp.NewSession{
		SessionUID:     header.SessionUID,
		PlayerCarIndex: udp.CarIndex(header.PlayerCarIndex),
	})

	return nil
}

func convertSessionInfoToUDP(session telemetry.SessionInfo) udp.SessionInfo {
	return udp.SessionInfo{
		SessionUID:       session.SessionUID,
		SessionType:      session.SessionType.String(),
		TrackID:          session.TrackID,
		TotalLaps:        session.TotalLaps,
		TrackLength:      session.TrackLength,
		Weather:          session.Weather.String(),
		TrackTemperature: session.TrackTemperature,
		AirTemperature:   session.AirTemperature,
		SessionTimeLeft:  session.SessionTimeLeft,
	}
}

func (l *LiveTimingAdapter) OnSessionInfo(session telemetry.SessionInfo) error {
	l.LiveTiming.UDPCallback(convertSessionInfoToUDP(session))

	return nil
}

func (l *LiveTimingAdapter) OnLapData(header telemetry.PacketHeader, cars []telemetry.CarLapData) error {
	lapData := udp.LapData{
		PlayerCarIndex: udp.CarIndex(header.PlayerCarIndex),
	}

	for _, car := range cars {
		if !car.Active() {
			continue
		}

		lapData.Cars = append(lapData.Cars, &udp.CarLapData{
			CarIndex:          car.CarIndex,
			Snapshot:          car.Snapshot,
			Position:          car.Position,
			GridPosition:      car.GridPosition,
			InPits:            car.PitStatus != telemetry.PitStatusNone,
			PitStatus:         car.PitStatus,
			NumPitStops:       car.NumPitStops,
			Sector:            car.Sector,
			LapInvalid:        car.LapInvalid,
			Penalties:         car.Penalties,
			DeltaToCarInFront: car.DeltaToCarInFront,
			DeltaToRaceLeader: car.DeltaToRaceLeader,
		})
	}

	l.LiveTiming.UDPCallback(lapData)

	return nil
}

func (l *LiveTimingAdapter) OnCarTelemetry(header telemetry.PacketHeader, cars []telemetry.CarTelemetry) error {
	l.LiveTiming.UDPCallback(udp.Telemetry{
		PlayerCarIndex: udp.CarIndex(header.PlayerCarIndex),
		Cars:           cars,
	})

	return nil
}

func (l *LiveTimingAdapter) OnCarStatus(header telemetry.PacketHeader, cars []telemetry.CarStatus) error {
	l.LiveTiming.UDPCallback(udp.Status{
		PlayerCarIndex: udp.CarIndex(header.PlayerCarIndex),
		Cars:           cars,
	})

	return nil
}

func (l *LiveTimingAdapter) OnParticipants(_ telemetry.PacketHeader, participants []telemetry.Participant) error {
	l.LiveTiming.UDPCallback(udp.Participants(participants))

	return nil
}
