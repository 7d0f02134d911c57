package telemetry

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// participantWire is the per car participant layout, 60 bytes.
type participantWire struct {
	AIControlled    uint8
	DriverID        uint8
	NetworkID       uint8
	TeamID          uint8
	MyTeam          uint8
	RaceNumber      uint8
	Nationality     uint8
	Name            [48]byte
	YourTelemetry   uint8
	ShowOnlineNames uint8
	TechLevel       uint16
	Platform        uint8
}

type Participant struct {
	CarIndex     CarIndex `json:"CarIndex"`
	Name         string   `json:"Name"`
	Abbreviation string   `json:"Abbreviation"`
	TeamID       uint8    `json:"TeamID"`
	RaceNumber   uint8    `json:"RaceNumber"`
	Nationality  uint8    `json:"Nationality"`
	AIControlled bool     `json:"AIControlled"`
}

func ReadParticipants(p *Packet) ([]Participant, error) {
	numActiveCars := p.ReadUint8()

	if int(numActiveCars) > MaxNumCarsInPacket {
		numActiveCars = MaxNumCarsInPacket
	}

	participants := make([]Participant, 0, numActiveCars)

	for i := 0; i < MaxNumCarsInPacket; i++ {
		var wire participantWire

		if err := p.Read(&wire); err != nil {
			return nil, err
		}

		if i >= int(numActiveCars) {
			continue
		}

		name := string(bytes.TrimRight(wire.Name[:], "\x00"))

		participants = append(participants, Participant{
			CarIndex:     CarIndex(i),
			Name:         strings.TrimSpace(name),
			Abbreviation: DriverAbbreviation(name, CarIndex(i)),
			TeamID:       wire.TeamID,
			RaceNumber:   wire.RaceNumber,
			Nationality:  wire.Nationality,
			AIControlled: wire.AIControlled == 1,
		})
	}

	return participants, nil
}

// knownDriverCodes maps names as the game reports them to their three letter codes,
// for drivers whose last name does not start with their code or is often truncated.
var knownDriverCodes = map[string]string{
	"LECLERC":          "LEC",
	"CHARLES LECLERC":  "LEC",
	"LE":               "LEC",
	"PEREZ":            "PER",
	"SERGIO PEREZ":     "PER",
	"PE":               "PER",
	"TSUNODA":          "TSU",
	"YUKI TSUNODA":     "TSU",
	"TS":               "TSU",
	"MAGNUSSEN":        "MAG",
	"VERSTAPPEN":       "VER",
	"HAMILTON":         "HAM",
	"RUSSELL":          "RUS",
	"NORRIS":           "NOR",
	"PIASTRI":          "PIA",
	"ALONSO":           "ALO",
	"STROLL":           "STR",
	"SAINZ":            "SAI",
	"CARLOS SAINZ JR":  "SAI",
	"SAINZ JR":         "SAI",
	"MSAINZ":           "SAI",
	"RICCIARDO":        "RIC",
	"GASLY":            "GAS",
	"OCON":             "OCO",
	"BOTTAS":           "BOT",
	"ZHOU":             "ZHO",
	"GUANYU ZHOU":      "ZHO",
	"HULKENBERG":       "HUL",
	"ALBON":            "ALB",
	"PALBON":           "ALB",
	"ALEXANDER ALBON":  "ALB",
	"NICO HULKENBERG":  "HUL",
	"KEVIN MAGNUSSEN":  "MAG",
	"VALTTERI BOTTAS":  "BOT",
	"DANIEL RICCIARDO": "RIC",
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, s)

	if err != nil {
		return s
	}

	return folded
}

// DriverAbbreviation turns a participant name into a three letter code such as "VER".
func DriverAbbreviation(name string, carIndex CarIndex) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}

		return -1
	}, foldAccents(name))

	name = strings.ToUpper(strings.Join(strings.Fields(name), " "))

	if name == "" {
		return fmt.Sprintf("CAR%02d", carIndex)
	}

	if code, ok := knownDriverCodes[name]; ok {
		return code
	}

	if len([]rune(name)) <= 3 {
		return name
	}

	parts := strings.Fields(name)

	if len(parts) < 2 {
		return firstRunes(name, 3)
	}

	lastName := parts[len(parts)-1]

	if code, ok := knownDriverCodes[lastName]; ok {
		return code
	}

	return firstRunes(lastName, 3)
}

func firstRunes(s string, n int) string {
	r := []rune(s)

	if len(r) <= n {
		return s
	}

	return string(r[:n])
}

type ParticipantsPacketHandler struct {
	plugin Plugin
}

func NewParticipantsPacketHandler(plugin Plugin) *ParticipantsPacketHandler {
	return &ParticipantsPacketHandler{plugin: plugin}
}

func (h ParticipantsPacketHandler) OnPacket(header PacketHeader, p *Packet) error {
	participants, err := ReadParticipants(p)

	if err != nil {
		return err
	}

	return h.plugin.OnParticipants(header, participants)
}

func (h ParticipantsPacketHandler) PacketID() PacketID {
	return PacketIDParticipants
}
