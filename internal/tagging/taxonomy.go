package tagging

import (
	"sort"
	"strings"
)

// Container level tags.
const (
	LevelBuilding  = "building"
	LevelFloor     = "floor"
	LevelRoom      = "room"
	LevelZone      = "zone"
	LevelEquipment = "equipment"
)

// Sensor type tags.
const (
	SensorTemperature = "temperature"
	SensorHumidity    = "humidity"
	SensorCO2         = "co2"
	SensorOccupancy   = "occupancy"
	SensorPower       = "power"
	SensorEnergy      = "energy"
	SensorFlow        = "flow"
	SensorPressure    = "pressure"
	SensorSetpoint    = "setpoint"
	SensorStatus      = "status"
)

var allLevels = []string{
	LevelBuilding,
	LevelFloor,
	LevelRoom,
	LevelZone,
	LevelEquipment,
}

var allSensorTypes = []string{
	SensorTemperature,
	SensorHumidity,
	SensorCO2,
	SensorOccupancy,
	SensorPower,
	SensorEnergy,
	SensorFlow,
	SensorPressure,
	SensorSetpoint,
	SensorStatus,
}

func AllLevels() []string {
	out := make([]string, len(allLevels))
	copy(out, allLevels)
	return out
}

func AllSensorTypes() []string {
	out := make([]string, len(allSensorTypes))
	copy(out, allSensorTypes)
	return out
}

func IsValidLevel(level string) bool {
	return contains(allLevels, Normalize(level))
}

func IsKnownSensorType(sensorType string) bool {
	return contains(allSensorTypes, Normalize(sensorType))
}

func Normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeList lowercases, drops blanks and duplicates, and sorts.
func NormalizeList(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		t := Normalize(raw)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func contains(set []string, tag string) bool {
	for _, t := range set {
		if t == tag {
			return true
		}
	}
	return false
}
