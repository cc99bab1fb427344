package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/bloch"
	"github.com/san-kum/blochsim/internal/config"
	"github.com/san-kum/blochsim/internal/protocol"
	"github.com/san-kum/blochsim/internal/scenes"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 240
	frameInterval   = time.Second / 60
	// maxFrameDt caps the step after a stalled frame.
	maxFrameDt = 0.05
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

type view int

const (
	viewSphere view = iota
	viewPlane
)

// Options configures a live session.
type Options struct {
	Scene    scenes.Scene
	Protocol []protocol.Action
	Sim      bloch.Options
	// Speed multiplies wall-clock frame time into simulation time.
	Speed float64
	Theme string
	Log   logrus.FieldLogger
}

// Model is the interactive view of one Sim. Frame times come from the
// terminal ticks, so dt varies from frame to frame.
type Model struct {
	sim      *bloch.Sim
	scene    scenes.Scene
	protocol []protocol.Action
	log      logrus.FieldLogger

	canvas  *Canvas
	camera  *Camera
	theme   Theme
	styles  styles
	view    view
	running bool
	speed   float64
	last    time.Time

	readout bloch.Readout
	signal  []float64

	groups   []string
	group    int
	status   string
	showHelp bool
}

// NewModel builds the Sim, applies the scene and schedules the protocol.
func NewModel(opts Options) (Model, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Sim.Logger == nil {
		opts.Sim.Logger = log
	}
	speed := opts.Speed
	if !(speed > 0) {
		speed = 1
	}
	theme := GetTheme(opts.Theme)
	m := Model{
		sim:      bloch.New(opts.Sim),
		scene:    opts.Scene,
		protocol: opts.Protocol,
		log:      log,
		canvas:   NewCanvas(width, height),
		camera:   NewCamera(),
		theme:    theme,
		styles:   newStyles(theme),
		running:  true,
		speed:    speed,
		signal:   make([]float64, 0, historyCapacity),
		groups:   config.PresetGroups(),
	}
	if opts.Scene.Planar {
		m.view = viewPlane
	}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Sim exposes the underlying simulation.
func (m Model) Sim() *bloch.Sim { return m.sim }

func (m Model) Init() tea.Cmd { return tick() }

// Update handles input events and advances the simulation on ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	case TickMsg:
		now := time.Time(msg)
		if m.running && !m.last.IsZero() {
			dt := math.Min(now.Sub(m.last).Seconds(), maxFrameDt) * m.speed
			m.advance(dt)
		}
		m.last = now
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
		// Resume without a catch-up step.
		m.last = time.Time{}
	case "r":
		if err := m.reset(); err != nil {
			m.status = err.Error()
		}
	case "tab":
		m.group = (m.group + 1) % len(m.groups)
	case "s":
		m.sim.Spoil()
		m.status = "spoil"
	case "e":
		if !m.sim.FrameLocked {
			m.status = "refocus: " + lockHint
		} else if _, ok := m.sim.Refocus(); ok {
			m.status = "refocus"
		} else {
			m.status = "refocus: no coherent signal"
		}
	case "f":
		m.sim.Frame = (m.sim.Frame + 1) % 3
		m.status = "frame " + m.sim.Frame.String()
	case "l":
		m.sim.FrameLocked = !m.sim.FrameLocked
	case "v":
		m.view = (m.view + 1) % 2
	case "t":
		m.theme = m.theme.next()
		m.styles = newStyles(m.theme)
	case "left":
		m.camera.Turn(-0.1)
	case "right":
		m.camera.Turn(0.1)
	case "up", "k":
		m.camera.Tilt(0.1)
	case "down", "j":
		m.camera.Tilt(-0.1)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "[":
		m.speed = math.Max(0.125, m.speed/2)
	case "]":
		m.speed = math.Min(8, m.speed*2)
	case "?":
		m.showHelp = !m.showHelp
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			m.firePreset(int(key[0] - '1'))
		}
	}
	return m, nil
}

// advance steps the simulation and records the transverse signal.
func (m *Model) advance(dt float64) {
	m.readout = m.sim.Advance(dt)
	m.signal = append(m.signal, transverse(m.readout))
	if len(m.signal) > historyCapacity {
		m.signal = m.signal[1:]
	}
}

// reset reapplies the scene and reschedules the protocol.
func (m *Model) reset() error {
	if err := m.scene.Apply(m.sim); err != nil {
		return err
	}
	m.sim.T, m.sim.FramePhase = 0, 0
	if err := protocol.Schedule(m.sim, m.protocol, m.log); err != nil {
		return err
	}
	m.signal = m.signal[:0]
	m.readout = m.sim.Readout(r3.Vec{})
	m.status = "scene " + m.scene.Name
	return nil
}

// firePreset applies the i-th preset of the selected group right away.
func (m *Model) firePreset(i int) {
	group := m.groups[m.group]
	names := config.ListPresets(group)
	if i >= len(names) {
		return
	}
	name := names[i]
	actions := config.GetPreset(group, name)
	if !m.sim.FrameLocked && needsLockedFrame(actions) {
		m.status = group + "/" + name + ": " + lockHint
		return
	}
	for _, a := range actions {
		if err := a.Apply(m.sim); err != nil {
			m.status = fmt.Sprintf("%s/%s: %v", group, name, err)
			m.log.WithError(err).WithField("preset", name).Warn("preset failed")
			return
		}
	}
	m.status = group + "/" + name
}

const lockHint = "lock the frame first (l)"

// needsLockedFrame reports whether actions include manual gradient work,
// which the interactive view only allows in a locked frame.
func needsLockedFrame(actions []protocol.Action) bool {
	for _, a := range actions {
		if a.Kind == protocol.ActionGradient || a.Kind == protocol.ActionRefocus {
			return true
		}
	}
	return false
}

func transverse(r bloch.Readout) float64 {
	if len(r.Isochromats) == 0 {
		return 0
	}
	return math.Hypot(r.Msum.X, r.Msum.Y) / float64(len(r.Isochromats))
}

// display rotates a vector into the observation frame.
func (m *Model) display(v r3.Vec) r3.Vec {
	if m.sim.FramePhase == 0 {
		return v
	}
	return r3.NewRotation(m.sim.FramePhase, axisZ).Rotate(v)
}

// draw renders the current readout onto the canvas.
func (m *Model) draw() {
	m.canvas.Clear()
	switch m.view {
	case viewPlane:
		m.drawPlane()
	default:
		m.drawSphere()
	}
}

func (m *Model) drawSphere() {
	m.camera.DrawSphere(m.canvas, 48)
	m.camera.DrawAxes(m.canvas)

	r := m.readout
	scale := m.scene.Scale
	if !(scale > 0) {
		scale = 1
	}
	for _, iso := range r.Isochromats {
		if !r.ShowTotal && !iso.ShowCurve {
			continue
		}
		m.camera.DrawVector(m.canvas, r3.Scale(scale, m.display(iso.M)), 0)
	}
	if n := len(r.Isochromats); r.ShowTotal && n > 1 {
		m.camera.DrawVector(m.canvas, m.display(r3.Scale(1/float64(n), r.Msum)), 1)
	}
	if r.RFMag > 0 {
		b1 := r3.Scale(0.9/r.RFMag, m.display(r.RF))
		w, h := m.canvas.Dims()
		x0, y0, _ := m.camera.Project(r3.Vec{}, w, h)
		x1, y1, _ := m.camera.Project(b1, w, h)
		m.canvas.DrawDashed(x0, y0, x1, y1, 3)
	}
}

// drawPlane shows each isochromat at its sample position with its
// transverse magnetization as a short stroke. A dot marks mostly
// longitudinal isochromats.
func (m *Model) drawPlane() {
	isocs := m.sim.Isochromats()
	if len(isocs) == 0 {
		return
	}
	extent := 0.0
	for _, iso := range isocs {
		extent = math.Max(extent, math.Max(math.Abs(iso.Pos.X), math.Abs(iso.Pos.Y)))
	}
	if extent == 0 {
		extent = 1
	}
	w, h := m.canvas.Dims()
	unit := float64(min(w, h)) * 0.45 / extent
	spacing := unit * extent / math.Sqrt(float64(len(isocs)))
	arm := math.Max(2, math.Min(spacing, 12))
	for _, iso := range isocs {
		x := w/2 + int(math.Round(iso.Pos.X*unit))
		y := h/2 - int(math.Round(iso.Pos.Y*unit))
		mv := m.display(iso.M)
		m.canvas.DrawLine(x, y, x+int(math.Round(mv.X*arm)), y-int(math.Round(mv.Y*arm)))
		if mv.Z > 0.5 {
			m.canvas.Blob(x, y, 1)
		}
	}
}

// View renders the TUI interface.
func (m Model) View() string {
	m.draw()
	st := m.styles
	canvasView := st.canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.scene.Name)) + "\n")
	status := "RUNNING"
	if !m.running {
		status = "PAUSED"
	}
	s.WriteString(fmt.Sprintf("%s  x%g\n", status, m.speed))
	if m.status != "" {
		s.WriteString(st.warn.Render(m.status) + "\n")
	}

	if len(m.signal) > 1 {
		chart := asciigraph.Plot(m.signal,
			asciigraph.Height(5),
			asciigraph.Width(36),
			asciigraph.LowerBound(0),
			asciigraph.UpperBound(1),
			asciigraph.Caption("|Mxy|"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	sim := m.sim
	n := max(len(m.readout.Isochromats), 1)
	mean := r3.Scale(1/float64(n), m.readout.Msum)
	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2f", sim.T))
	row("B0", fmt.Sprintf("%.2f", sim.B0))
	row("B1", fmt.Sprintf("%.2f", sim.B1))
	row("Gradient", fmt.Sprintf("%.2f, %.2f", sim.Gx, sim.Gy))
	frame := sim.Frame.String()
	if sim.FrameLocked {
		frame += " (locked)"
	}
	row("Frame", frame)
	row("Sample", fmt.Sprintf("%d %s", len(m.readout.Isochromats), sim.Mode))
	row("|Mxy|", fmt.Sprintf("%.3f", math.Hypot(mean.X, mean.Y)))
	row("Mz", fmt.Sprintf("%.3f", mean.Z))
	var flags []string
	if sim.RFPulseActive() {
		flags = append(flags, "RF")
	}
	if sim.GradientPulseActive() {
		flags = append(flags, "GRAD")
	}
	if sim.Spoiling() {
		flags = append(flags, "SPOIL")
	}
	if sim.Repeating() {
		flags = append(flags, "REPEAT")
	}
	row("Active", strings.Join(flags, " "))

	group := m.groups[m.group]
	s.WriteString("\n" + strings.ToUpper(group) + "\n")
	for i, name := range config.ListPresets(group) {
		if i >= 9 {
			break
		}
		s.WriteString(st.active.Render(fmt.Sprintf("%d", i+1)) + " " + st.value.Render(name) + "\n")
	}
	s.WriteString(st.help.Render("SP:Pause R:Reset Q:Quit TAB:Menu\nS:Spoil E:Refocus F:Frame V:View ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.stats.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reload scene             ║
║  Q        - Quit                     ║
║  Tab      - Next preset menu         ║
║  1-9      - Fire preset              ║
║  S        - Spoil                    ║
║  E        - Refocus                  ║
║  F        - Cycle reference frame    ║
║  L        - Lock/unlock frame        ║
║  V        - Sphere/plane view        ║
║  Arrows   - Turn and tilt camera     ║
║  +/-      - Zoom                     ║
║  [ ]      - Slower/faster            ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`
