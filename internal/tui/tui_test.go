package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/ga"
)

func newSimApp(t *testing.T) (tcell.SimulationScreen, *controller.Controller, chan error) {
	t.Helper()

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)

	cfg := ga.DefaultConfig()
	cfg.Seed = 7
	opts := controller.DefaultOptions()
	opts.Interval = time.Millisecond
	ctrl := controller.New(cfg, opts)
	if err := ctrl.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- New(screen, ctrl).Run() }()
	return screen, ctrl, done
}

func waitDone(t *testing.T, done chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func screenText(screen tcell.SimulationScreen) string {
	cells, w, _ := screen.GetContents()
	var b strings.Builder
	for i, c := range cells {
		if len(c.Runes) > 0 {
			b.WriteRune(c.Runes[0])
		} else {
			b.WriteByte(' ')
		}
		if (i+1)%w == 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func TestApp_StepAndGoalKeys(t *testing.T) {
	screen, ctrl, done := newSimApp(t)

	screen.InjectKey(tcell.KeyRune, 's', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, ' ', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'g', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	waitDone(t, done)

	snap := ctrl.Snapshot()
	if snap.Generation != 2 {
		t.Errorf("Expected generation 2, got %d", snap.Generation)
	}
	if snap.Goal != ga.GoalMin {
		t.Errorf("Expected goal min after toggle, got %s", snap.Goal)
	}

	text := screenText(screen)
	if !strings.Contains(text, "goal min") {
		t.Errorf("Expected status line with goal min, got:\n%s", text)
	}
	if !strings.Contains(text, "@") {
		t.Error("Expected best individual marker on screen")
	}
	if !strings.Contains(text, helpLine) {
		t.Error("Expected help line on screen")
	}
}

func TestApp_ResetKey(t *testing.T) {
	screen, ctrl, done := newSimApp(t)

	screen.InjectKey(tcell.KeyRune, 's', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'r', tcell.ModNone)
	screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
	waitDone(t, done)

	if got := ctrl.Snapshot().Generation; got != 0 {
		t.Errorf("Expected generation 0 after reset, got %d", got)
	}
}

func TestApp_AutoToggleStopsOnQuit(t *testing.T) {
	screen, ctrl, done := newSimApp(t)

	screen.InjectKey(tcell.KeyRune, 'a', tcell.ModNone)
	time.Sleep(20 * time.Millisecond)

	// The event queue drops posts when full, so repeat until Run exits
	deadline := time.After(5 * time.Second)
	for quit := false; !quit; {
		screen.InjectKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			quit = true
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("Run did not return")
		}
	}

	if ctrl.State() == controller.StateRunning {
		t.Error("Expected auto-run stopped after quit")
	}
}
