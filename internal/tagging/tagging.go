package tagging

import (
	"sort"
	"strings"
)

// Suggestion proposes a sensor type for one column of a data file.
type Suggestion struct {
	Column     int            `json:"column"`
	Type       string         `json:"type"`
	Confidence int            `json:"confidence"`
	Evidence   map[string]any `json:"evidence,omitempty"`
}

type sensorRule struct {
	sensorType string
	confidence int
	tokens     []string
}

// Setpoints are usually labelled with the measured quantity too, so they are
// checked first. The first matching rule wins.
var sensorRules = []sensorRule{
	{SensorSetpoint, 85, []string{"sp", "stpt", "setpoint", "setpt"}},
	{SensorTemperature, 80, []string{"temp", "temperature", "degc", "degf", "oat", "rat", "sat"}},
	{SensorHumidity, 80, []string{"rh", "humidity", "hum"}},
	{SensorCO2, 80, []string{"co2", "ppm"}},
	{SensorOccupancy, 75, []string{"occ", "occupancy", "presence", "pir"}},
	{SensorEnergy, 78, []string{"kwh", "energy", "wh"}},
	{SensorPower, 72, []string{"kw", "power", "watts", "w"}},
	{SensorFlow, 75, []string{"flow", "cfm", "gpm", "lps"}},
	{SensorPressure, 72, []string{"pressure", "pa", "kpa", "psi", "inwc"}},
	{SensorStatus, 60, []string{"status", "state", "alarm", "onoff"}},
}

// SuggestSensorTypes matches column labels against known sensor vocabulary.
// Columns without a match are omitted; at most one suggestion is made per
// column.
func SuggestSensorTypes(columns []string) []Suggestion {
	var out []Suggestion
	for i, raw := range columns {
		label := strings.ToLower(strings.TrimSpace(raw))
		if label == "" {
			continue
		}

		tokens := tokenize(label)
		for _, rule := range sensorRules {
			match, ok := firstMatch(tokens, rule.tokens)
			if !ok {
				continue
			}
			out = append(out, Suggestion{
				Column:     i,
				Type:       rule.sensorType,
				Confidence: rule.confidence,
				Evidence: map[string]any{
					"signal": "column_label",
					"label":  truncate(raw, 120),
					"match":  match,
				},
			})
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Column < out[j].Column
	})
	return out
}

func firstMatch(tokens []string, set []string) (string, bool) {
	for _, t := range tokens {
		for _, candidate := range set {
			if t == candidate {
				return t, true
			}
		}
	}
	return "", false
}

func tokenize(value string) []string {
	var out []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, buf.String())
		buf.Reset()
	}

	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			buf.WriteRune(r)
		case r >= '0' && r <= '9':
			buf.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 1 {
		return value[:1]
	}
	return value[:limit-1] + "…"
}
