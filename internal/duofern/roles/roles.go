// Package roles maps a device's classification to the capabilities a
// host automation platform can expect to exercise against it.
package roles

import duofern "github.com/amken3d/duofern-bridge/internal/duofern"

// RoleInfo is a static capability descriptor for a DeviceClass.
type RoleInfo struct {
	Class        duofern.DeviceClass
	Capabilities []string
}

var table = map[duofern.DeviceClass]RoleInfo{
	duofern.ClassSimpleBlind: {
		Class:        duofern.ClassSimpleBlind,
		Capabilities: []string{"up", "down", "stop", "position", "moving"},
	},
	duofern.ClassVenetianBlind: {
		Class:        duofern.ClassVenetianBlind,
		Capabilities: []string{"up", "down", "stop", "position", "slatPosition", "moving"},
	},
	duofern.ClassGate: {
		Class:        duofern.ClassGate,
		Capabilities: []string{"up", "down", "stop", "toggle", "moving"},
	},
	duofern.ClassActuator: {
		Class:        duofern.ClassActuator,
		Capabilities: []string{"up", "down", "stop", "toggle"},
	},
	duofern.ClassDimmer: {
		Class:        duofern.ClassDimmer,
		Capabilities: []string{"position"},
	},
	duofern.ClassSensor: {
		Class:        duofern.ClassSensor,
		Capabilities: []string{"windAlarm", "rainAlarm"},
	},
	duofern.ClassThermostat: {
		Class:        duofern.ClassThermostat,
		Capabilities: []string{"temperature", "setpoint"},
	},
	duofern.ClassRemote: {
		Class:        duofern.ClassRemote,
		Capabilities: []string{"remotePair"},
	},
}

// Lookup returns the static capability descriptor for class. Per
// spec.md §3/§9, this is total and fails closed: an unrecognized class
// (including ClassUnknown) returns an empty capability list, never an
// error, so a caller never has to special-case classification failure.
func Lookup(class duofern.DeviceClass) RoleInfo {
	if info, ok := table[class]; ok {
		return info
	}
	return RoleInfo{Class: class}
}

// Of is a convenience wrapper combining duofern.ClassOf and Lookup.
func Of(code duofern.DeviceCode) RoleInfo {
	return Lookup(duofern.ClassOf(code))
}
