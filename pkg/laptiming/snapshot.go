package laptiming

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// DecodeSnapshot decodes a JSON lap snapshot. Fields which are missing, null, negative or not numeric
// are treated as not available (0). Only input which is not a JSON object is an error.
func DecodeSnapshot(b []byte) (LapSnapshot, error) {
	var raw map[string]json.RawMessage

	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	if err := d.Decode(&raw); err != nil {
		return LapSnapshot{}, err
	}

	return LapSnapshot{
		CurrentLapNumber: int(decodeNonNegative(raw["current_lap_num"])),
		CurrentLapTime:   Millis(decodeNonNegative(raw["current_lap_time_in_ms"])),
		Sector1Time:      Millis(decodeNonNegative(raw["sector1_time_in_ms"])),
		Sector2Time:      Millis(decodeNonNegative(raw["sector2_time_in_ms"])),
		LastLapTime:      Millis(decodeNonNegative(raw["last_lap_time_in_ms"])),
	}, nil
}

func decodeNonNegative(field json.RawMessage) int64 {
	if len(field) == 0 {
		return 0
	}

	var v interface{}

	d := json.NewDecoder(bytes.NewReader(field))
	d.UseNumber()

	if err := d.Decode(&v); err != nil {
		return 0
	}

	var f float64

	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()

		if err != nil {
			return 0
		}

		f = parsed
	case string:
		// some producers quote their numbers
		parsed, err := strconv.ParseFloat(val, 64)

		if err != nil {
			return 0
		}

		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f > math.MaxInt64/2 {
		return 0
	}

	return int64(f)
}
