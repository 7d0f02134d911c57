package telemetry

// carTelemetryWire is the per car telemetry layout, 60 bytes.
type carTelemetryWire struct {
	Speed                   uint16
	Throttle                float32
	Steer                   float32
	Brake                   float32
	Clutch                  uint8
	Gear                    int8
	EngineRPM               uint16
	DRS                     uint8
	RevLightsPercent        uint8
	RevLightsBitValue       uint16
	BrakesTemperature       [4]uint16
	TyresSurfaceTemperature [4]uint8
	TyresInnerTemperature   [4]uint8
	EngineTemperature       uint16
	TyresPressure           [4]float32
	SurfaceType             [4]uint8
}

// CarTelemetry wheel arrays are ordered rear left, rear right, front left, front right.
type CarTelemetry struct {
	CarIndex CarIndex `json:"CarIndex"`

	SpeedKPH          uint16     `json:"Speed"`
	Throttle          float32    `json:"Throttle"`
	Steer             float32    `json:"Steer"`
	Brake             float32    `json:"Brake"`
	Clutch            uint8      `json:"Clutch"`
	Gear              int8       `json:"Gear"`
	EngineRPM         uint16     `json:"EngineRPM"`
	DRS               bool       `json:"DRS"`
	RevLightsPercent  uint8      `json:"RevLightsPercent"`
	BrakesTemperature [4]uint16  `json:"BrakesTemperature"`
	TyresSurfaceTemp  [4]uint8   `json:"TyresSurfaceTemperature"`
	TyresInnerTemp    [4]uint8   `json:"TyresInnerTemperature"`
	EngineTemperature uint16     `json:"EngineTemperature"`
	TyresPressure     [4]float32 `json:"TyresPressure"`
}

func ReadCarTelemetry(p *Packet) ([]CarTelemetry, error) {
	cars := make([]CarTelemetry, 0, MaxNumCarsInPacket)

	for i := 0; i < MaxNumCarsInPacket; i++ {
		var wire carTelemetryWire

		if err := p.Read(&wire); err != nil {
			return nil, err
		}

		cars = append(cars, CarTelemetry{
			CarIndex:          CarIndex(i),
			SpeedKPH:          wire.Speed,
			Throttle:          wire.Throttle,
			Steer:             wire.Steer,
			Brake:             wire.Brake,
			Clutch:            wire.Clutch,
			Gear:              wire.Gear,
			EngineRPM:         wire.EngineRPM,
			DRS:               wire.DRS == 1,
			RevLightsPercent:  wire.RevLightsPercent,
			BrakesTemperature: wire.BrakesTemperature,
			TyresSurfaceTemp:  wire.TyresSurfaceTemperature,
			TyresInnerTemp:    wire.TyresInnerTemperature,
			EngineTemperature: wire.EngineTemperature,
			TyresPressure:     wire.TyresPressure,
		})
	}

	return cars, nil
}

type CarTelemetryPacketHandler struct {
	plugin Plugin
}

func NewCarTelemetryPacketHandler(plugin Plugin) *CarTelemetryPacketHandler {
	return &CarTelemetryPacketHandler{plugin: plugin}
}

func (h CarTelemetryPacketHandler) OnPacket(header PacketHeader, p *Packet) error {
	cars, err := ReadCarTelemetry(p)

	if err != nil {
		return err
	}

	return h.plugin.OnCarTelemetry(header, cars)
}

func (h CarTelemetryPacketHandler) PacketID() PacketID {
	return PacketIDCarTelemetry
}
