// Package tui drives one controller from the terminal.
package tui

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/cwbudde/polyga/internal/controller"
)

const helpLine = "space/s step  a auto  r reset  g goal  q quit"

var (
	styleDefault = tcell.StyleDefault
	styleTitle   = tcell.StyleDefault.Bold(true)
	styleCurve   = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	stylePop     = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleBest    = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleHelp    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// App renders controller snapshots and maps keys to controller commands.
type App struct {
	screen tcell.Screen
	ctrl   *controller.Controller
	snap   controller.Snapshot
}

// New creates an App. The caller owns the screen's Init and Fini.
func New(screen tcell.Screen, ctrl *controller.Controller) *App {
	return &App{screen: screen, ctrl: ctrl}
}

// Run processes events until the user quits. Snapshots published by the
// controller arrive as interrupt events so drawing stays on this goroutine.
func (a *App) Run() error {
	unsubscribe := a.ctrl.Subscribe(func(snap controller.Snapshot) {
		if err := a.screen.PostEvent(tcell.NewEventInterrupt(snap)); err != nil {
			slog.Debug("Dropped snapshot event", "generation", snap.Generation, "error", err)
		}
	})
	defer func() {
		unsubscribe()
		a.ctrl.Close()
	}()

	a.snap = a.ctrl.Snapshot()
	a.draw()

	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return nil
		}

		switch ev := ev.(type) {
		case *tcell.EventKey:
			if !a.handleKey(ev) {
				return nil
			}
		case *tcell.EventInterrupt:
			// Interrupts from racing steps can arrive out of order
			if snap, ok := ev.Data().(controller.Snapshot); ok && snap.Seq > a.snap.Seq {
				a.snap = snap
			}
		case *tcell.EventResize:
			a.screen.Sync()
		}
		a.draw()
	}
}

// handleKey returns false when the app should exit.
func (a *App) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
	default:
		return true
	}

	switch ev.Rune() {
	case 'q':
		return false
	case ' ', 's':
		if err := a.ctrl.Step(); err != nil {
			slog.Warn("Step failed", "error", err)
		}
	case 'a':
		if a.ctrl.State() == controller.StateRunning {
			a.ctrl.StopAuto()
		} else {
			a.ctrl.StartAuto()
		}
	case 'r':
		if err := a.ctrl.Reset(); err != nil {
			slog.Warn("Reset failed", "error", err)
		}
	case 'g':
		a.ctrl.SetGoal(a.ctrl.Goal().Opposite())
	default:
		return true
	}

	// Commands that publish nothing still change what is shown
	a.snap = a.ctrl.Snapshot()
	return true
}

func (a *App) draw() {
	a.screen.Clear()
	w, h := a.screen.Size()
	snap := a.snap

	drawText(a.screen, 0, 0, styleTitle, "polyga")
	status := fmt.Sprintf("gen %d  goal %s  state %s  stable %d",
		snap.Generation, snap.Goal, snap.State, snap.Stability)
	drawText(a.screen, 8, 0, styleDefault, status)

	if snap.Best != nil {
		drawText(a.screen, 0, 1, styleBest, fmt.Sprintf("best x=%d y=%g", snap.Best.X, snap.Best.Y))
		drawText(a.screen, 28, 1, styleDefault, fmt.Sprintf("mean %.1f  sd %.1f", snap.Stats.Mean, snap.Stats.StdDev))
	}
	if snap.LastError != "" {
		drawText(a.screen, 0, 2, styleError, snap.LastError)
	}

	plotTop, plotBottom := 3, h-2
	if plotBottom-plotTop >= 2 && w >= 2 && len(snap.Points) > 0 {
		a.drawPlot(snap, 0, plotTop, w-1, plotBottom-1)
	}

	drawText(a.screen, 0, h-1, styleHelp, helpLine)
	a.screen.Show()
}

// drawPlot maps the curve and population into the cell rectangle
// [left,right] x [top,bottom].
func (a *App) drawPlot(snap controller.Snapshot, left, top, right, bottom int) {
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range snap.Points {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	minX, maxX := snap.Points[0].X, snap.Points[len(snap.Points)-1].X

	toCell := func(x int, y float64) (int, int) {
		col := left
		if maxX > minX {
			col = left + int(math.Round(float64(x-minX)/float64(maxX-minX)*float64(right-left)))
		}
		row := bottom
		if maxY > minY {
			row = bottom - int(math.Round((y-minY)/(maxY-minY)*float64(bottom-top)))
		}
		return col, row
	}

	for _, p := range snap.Points {
		col, row := toCell(p.X, p.Y)
		a.screen.SetContent(col, row, '·', nil, styleCurve)
	}
	for _, ind := range snap.Population {
		col, row := toCell(ind.X, ind.Y)
		a.screen.SetContent(col, row, 'o', nil, stylePop)
	}
	if snap.Best != nil {
		col, row := toCell(snap.Best.X, snap.Best.Y)
		a.screen.SetContent(col, row, '@', nil, styleBest)
	}
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
