package telemetry

type SessionType uint8

const (
	SessionTypeUnknown SessionType = iota
	SessionTypePractice1
	SessionTypePractice2
	SessionTypePractice3
	SessionTypeShortPractice
	SessionTypeQualifying1
	SessionTypeQualifying2
	SessionTypeQualifying3
	SessionTypeShortQualifying
	SessionTypeOneShotQualifying
	SessionTypeSprintShootout1
	SessionTypeSprintShootout2
	SessionTypeSprintShootout3
	SessionTypeShortSprintShootout
	SessionTypeOneShotSprintShootout
	SessionTypeRace
	SessionTypeRace2
	SessionTypeRace3
	SessionTypeTimeTrial
)

var sessionTypeNames = map[SessionType]string{
	SessionTypeUnknown:               "Unknown",
	SessionTypePractice1:             "Practice 1",
	SessionTypePractice2:             "Practice 2",
	SessionTypePractice3:             "Practice 3",
	SessionTypeShortPractice:         "Short Practice",
	SessionTypeQualifying1:           "Qualifying 1",
	SessionTypeQualifying2:           "Qualifying 2",
	SessionTypeQualifying3:           "Qualifying 3",
	SessionTypeShortQualifying:       "Short Qualifying",
	SessionTypeOneShotQualifying:     "One Shot Qualifying",
	SessionTypeSprintShootout1:       "Sprint Shootout 1",
	SessionTypeSprintShootout2:       "Sprint Shootout 2",
	SessionTypeSprintShootout3:       "Sprint Shootout 3",
	SessionTypeShortSprintShootout:   "Short Sprint Shootout",
	SessionTypeOneShotSprintShootout: "One Shot Sprint Shootout",
	SessionTypeRace:                  "Race",
	SessionTypeRace2:                 "Race 2",
	SessionTypeRace3:                 "Race 3",
	SessionTypeTimeTrial:             "Time Trial",
}

func (s SessionType) String() string {
	if name, ok := sessionTypeNames[s]; ok {
		return name
	}

	return sessionTypeNames[SessionTypeUnknown]
}

type Weather uint8

var weatherNames = []string{"Clear", "Light Cloud", "Overcast", "Light Rain", "Heavy Rain", "Storm"}

func (w Weather) String() string {
	if int(w) < len(weatherNames) {
		return weatherNames[w]
	}

	return "Unknown"
}

// sessionWire is the leading part of the session packet. The remainder (marshal zones, forecasts, assists) is not read.
type sessionWire struct {
	Weather          uint8
	TrackTemperature int8
	AirTemperature   int8
	TotalLaps        uint8
	TrackLength      uint16
	SessionType      uint8
	TrackID          int8
	Formula          uint8
	SessionTimeLeft  uint16
	SessionDuration  uint16
}

type SessionInfo struct {
	SessionUID       uint64
	SessionType      SessionType
	TrackID          int8
	TotalLaps        uint8
	TrackLength      uint16
	Weather          Weather
	TrackTemperature int8
	AirTemperature   int8
	SessionTimeLeft  uint16
	SessionDuration  uint16
}

func ReadSession(header PacketHeader, p *Packet) (SessionInfo, error) {
	var wire sessionWire

	if err := p.Read(&wire); err != nil {
		return SessionInfo{}, err
	}

	return SessionInfo{
		SessionUID:       header.SessionUID,
		SessionType:      SessionType(wire.SessionType),
		TrackID:          wire.TrackID,
		TotalLaps:        wire.TotalLaps,
		TrackLength:      wire.TrackLength,
		Weather:          Weather(wire.Weather),
		TrackTemperature: wire.TrackTemperature,
		AirTemperature:   wire.AirTemperature,
		SessionTimeLeft:  wire.SessionTimeLeft,
		SessionDuration:  wire.SessionDuration,
	}, nil
}

type SessionPacketHandler struct {
	plugin Plugin
}

func NewSessionPacketHandler(plugin Plugin) *SessionPacketHandler {
	return &SessionPacketHandler{plugin: plugin}
}

func (h SessionPacketHandler) OnPacket(header PacketHeader, p *Packet) error {
	session, err := ReadSession(header, p)

	if err != nil {
		return err
	}

	return h.plugin.OnSessionInfo(session)
}

func (h SessionPacketHandler) PacketID() PacketID {
	return PacketIDSession
}
