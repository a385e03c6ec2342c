package radio

import "strings"

// speedCodes maps operator-facing speed codes (and the nominal Bd values HFpager
// prints in message headers) to the transmitter bitrate setting.
var speedCodes = map[string]int{
	"1":   1,
	"1.5": 1,
	"2":   4,
	"3":   16,
	"4":   32,
	"5":   4,
	"5.9": 4,
	"6":   4,
	"23":  16,
	"46":  32,
	"47":  32,
}

// SpeedFromCode returns the bitrate for code, or 0 when the code is unknown.
func SpeedFromCode(code string) int {
	return speedCodes[strings.TrimSpace(code)]
}

var windLabels = [8]string{"С", "СВ", "В", "ЮВ", "Ю", "ЮЗ", "З", "СЗ"}

// WindDirection converts compass degrees to an 8-point label.
func WindDirection(deg float64) string {
	const step = 45.0
	if deg > 360-step/2 {
		deg -= 360
	}
	for i, label := range windLabels {
		center := float64(i) * step
		if deg >= center-step/2 && deg <= center+step/2 {
			return label
		}
	}
	return ""
}
