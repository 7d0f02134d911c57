package laptiming

import (
	"fmt"
	"regexp"
	"strconv"
)

// UnavailableTime is displayed in place of a lap or sector time that is not known yet.
const UnavailableTime = "--:--:---"

// FormatLapTime formats milliseconds as MM:SS.mmm. Minutes are not capped at two digits.
func FormatLapTime(ms int64) string {
	if ms <= 0 {
		return UnavailableTime
	}

	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000

	return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, millis)
}

var lapTimePattern = regexp.MustCompile(`^([0-9]{2,}):([0-5][0-9])\.([0-9]{3})$`)

// ParseLapTime is the inverse of FormatLapTime. It returns 0 for UnavailableTime and for anything
// not in MM:SS.mmm form, with at least two minute digits and seconds below 60.
func ParseLapTime(s string) int64 {
	match := lapTimePattern.FindStringSubmatch(s)

	if match == nil {
		return 0
	}

	var values [3]int64

	for i, part := range match[1:] {
		v, err := strconv.ParseInt(part, 10, 64)

		if err != nil {
			return 0
		}

		values[i] = v
	}

	return values[0]*60000 + values[1]*1000 + values[2]
}

// FormatDelta formats a signed millisecond delta as +S.mmm or -S.mmm.
func FormatDelta(ms int64) string {
	sign := "+"

	if ms < 0 {
		sign = "-"
		ms = -ms
	}

	return fmt.Sprintf("%s%d.%03d", sign, ms/1000, ms%1000)
}
