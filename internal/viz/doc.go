// Package viz is the interactive terminal view of a simulation, built on
// Bubble Tea.
//
//   - [Picker]: scene menu that starts a live session
//   - [Model]: live Bloch sphere or sample plane with an |Mxy| chart
//   - [Canvas]: braille pixel canvas
//   - [Camera]: projection of the Bloch sphere onto the canvas
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Reload the scene
//	Tab   - Next preset menu
//	1-9   - Fire a preset of the current menu
//	S/E   - Spoil/Refocus
//	F/L   - Cycle reference frame/lock it
//	V     - Toggle sphere and plane views
//	T     - Cycle color themes
//	?     - Show help overlay
//
// Frame times come from the terminal ticks, so the simulation sees
// irregular dt like any interactive display.
package viz
