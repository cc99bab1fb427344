package config

import (
	"sort"

	"github.com/san-kum/blochsim/internal/protocol"
)

func rf(pulse string, angle, phase, amp float64) []protocol.Action {
	return []protocol.Action{{Kind: protocol.ActionRF, Pulse: pulse, Angle: angle, Phase: phase, Amplitude: amp}}
}

func repeat(tr, angle float64, cycle []float64, spoil bool) []protocol.Action {
	return []protocol.Action{{Kind: protocol.ActionRepeat, TR: tr, Angle: angle, Cycle: cycle, Spoil: spoil}}
}

// Presets are the one-click operations of the interactive view, grouped like
// its menus. Angles and phases are in degrees.
var Presets = map[string]map[string][]protocol.Action{
	"hard": {
		"90x":      rf("rect", 90, 180, 4),
		"90y":      rf("rect", 90, -90, 4),
		"80x":      rf("rect", 80, 180, 4),
		"30x":      rf("rect", 30, 180, 4),
		"30y":      rf("rect", 30, -90, 4),
		"90x-sinc": rf("sinc", 90, 180, 4),
	},
	"soft": {
		"90x":      rf("rect", 90, 180, 0.3),
		"90y":      rf("rect", 90, -90, 0.3),
		"30x":      rf("rect", 30, 180, 0.3),
		"30y":      rf("rect", 30, -90, 0.3),
		"90x-sinc": rf("sinc", 90, 180, 0.8),
	},
	"refocus": {
		"180y":      rf("rect", 180, -90, 8),
		"180x":      rf("rect", 180, 180, 8),
		"160y":      rf("rect", 160, -90, 8),
		"160x":      rf("rect", 160, 180, 8),
		"180y-sinc": rf("sinc", 180, -90, 1.6),
	},
	"gradient": {
		"spoil":   {{Kind: protocol.ActionSpoil}},
		"refocus": {{Kind: protocol.ActionRefocus}},
		"gx":      {{Kind: protocol.ActionGradient, Dephase: 2}},
		"gy":      {{Kind: protocol.ActionGradient, Dephase: 2, Direction: 90}},
	},
	"repeat": {
		"none":            {{Kind: protocol.ActionStopRepeat}},
		"90x-tr5-spoiled": repeat(5, 90, []float64{180}, true),
		"30y-tr3-spoiled": repeat(3, 30, []float64{-90}, true),
		"90y-tr5-spoiled": repeat(5, 90, []float64{-90}, true),
		"90y-tr8-spoiled": repeat(8, 90, []float64{-90}, true),
		"90x-tr5":         repeat(5, 90, []float64{180}, false),
		"pm90x-tr5":       repeat(5, 90, []float64{180, 0}, false),
		"spin-echo-es5":   {{Kind: protocol.ActionSpinEcho, ES: 5}},
	},
}

func GetPreset(group, name string) []protocol.Action {
	groupPresets, ok := Presets[group]
	if !ok {
		return nil
	}
	actions, ok := groupPresets[name]
	if !ok {
		return nil
	}
	return actions
}

func ListPresets(group string) []string {
	groupPresets, ok := Presets[group]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(groupPresets))
	for name := range groupPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func PresetGroups() []string {
	groups := make([]string, 0, len(Presets))
	for g := range Presets {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}
