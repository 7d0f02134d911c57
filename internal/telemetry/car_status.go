package telemetry

import "fmt"

// carStatusWire is the per car status layout, 55 bytes.
type carStatusWire struct {
	TractionControl         uint8
	AntiLockBrakes          uint8
	FuelMix                 uint8
	FrontBrakeBias          uint8
	PitLimiterStatus        uint8
	FuelInTank              float32
	FuelCapacity            float32
	FuelRemainingLaps       float32
	MaxRPM                  uint16
	IdleRPM                 uint16
	MaxGears                uint8
	DRSAllowed              uint8
	DRSActivationDistance   uint16
	ActualTyreCompound      uint8
	VisualTyreCompound      uint8
	TyresAgeLaps            uint8
	VehicleFIAFlags         int8
	EnginePowerICE          float32
	EnginePowerMGUK         float32
	ERSStoreEnergy          float32
	ERSDeployMode           uint8
	ERSHarvestedThisLapMGUK float32
	ERSHarvestedThisLapMGUH float32
	ERSDeployedThisLap      float32
	NetworkPaused           uint8
}

// TyreCompound is the visual tyre compound, as shown on the timing screens.
type TyreCompound uint8

const (
	TyreCompoundIntermediate TyreCompound = 7
	TyreCompoundWet          TyreCompound = 8
	TyreCompoundSoft         TyreCompound = 16
	TyreCompoundMedium       TyreCompound = 17
	TyreCompoundHard         TyreCompound = 18
)

var tyreCompoundNames = map[TyreCompound]string{
	TyreCompoundIntermediate: "Intermediate",
	TyreCompoundWet:          "Wet",
	TyreCompoundSoft:         "Soft",
	TyreCompoundMedium:       "Medium",
	TyreCompoundHard:         "Hard",
}

func (c TyreCompound) String() string {
	if name, ok := tyreCompoundNames[c]; ok {
		return name
	}

	return fmt.Sprintf("Unknown (%d)", uint8(c))
}

type CarStatus struct {
	CarIndex CarIndex `json:"CarIndex"`

	PitLimiter        bool         `json:"PitLimiter"`
	FuelInTank        float32      `json:"FuelInTank"`
	FuelCapacity      float32      `json:"FuelCapacity"`
	FuelRemainingLaps float32      `json:"FuelRemainingLaps"`
	DRSAllowed        bool         `json:"DRSAllowed"`
	TyreCompound      TyreCompound `json:"TyreCompound"`
	TyresAgeLaps      uint8        `json:"TyresAgeLaps"`
	ERSStoreEnergy    float32      `json:"ERSStoreEnergy"`
}

func ReadCarStatus(p *Packet) ([]CarStatus, error) {
	cars := make([]CarStatus, 0, MaxNumCarsInPacket)

	for i := 0; i < MaxNumCarsInPacket; i++ {
		var wire carStatusWire

		if err := p.Read(&wire); err != nil {
			return nil, err
		}

		cars = append(cars, CarStatus{
			CarIndex:          CarIndex(i),
			PitLimiter:        wire.PitLimiterStatus == 1,
			FuelInTank:        wire.FuelInTank,
			FuelCapacity:      wire.FuelCapacity,
			FuelRemainingLaps: wire.FuelRemainingLaps,
			DRSAllowed:        wire.DRSAllowed == 1,
			TyreCompound:      TyreCompound(wire.VisualTyreCompound),
			TyresAgeLaps:      wire.TyresAgeLaps,
			ERSStoreEnergy:    wire.ERSStoreEnergy,
		})
	}

	return cars, nil
}

type CarStatusPacketHandler struct {
	plugin Plugin
}

func NewCarStatusPacketHandler(plugin Plugin) *CarStatusPacketHandler {
	return &CarStatusPacketHandler{plugin: plugin}
}

func (h CarStatusPacketHandler) OnPacket(header PacketHeader, p *Packet) error {
	cars, err := ReadCarStatus(p)

	if err != nil {
		return err
	}

	return h.plugin.OnCarStatus(header, cars)
}

func (h CarStatusPacketHandler) PacketID() PacketID {
	return PacketIDCarStatus
}
