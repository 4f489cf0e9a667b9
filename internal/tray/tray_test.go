package tray

import "testing"

func TestTray_CallbacksByAction(t *testing.T) {
	tr := New()

	var got []Action
	record := func(a Action) func() {
		return func() { got = append(got, a) }
	}
	tr.OnCapture(record(ActionCapture))
	tr.OnSave(record(ActionSave))
	tr.OnReset(record(ActionReset))
	tr.OnClear(record(ActionClear))
	tr.OnReconstruct(record(ActionReconstruct))
	tr.OnOpenViewer(record(ActionOpenViewer))

	for _, a := range []Action{ActionReconstruct, ActionCapture, ActionClear, ActionSave, ActionOpenViewer, ActionReset} {
		tr.handle(a)
	}

	want := []Action{ActionReconstruct, ActionCapture, ActionClear, ActionSave, ActionOpenViewer, ActionReset}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTray_UnsetCallbackIsNoOp(t *testing.T) {
	tr := New()
	tr.handle(ActionCapture)
	tr.SetStatus("ignored before the menu exists")
	tr.SetCaptureEnabled(false)
}

func TestMenu_CoversEveryAction(t *testing.T) {
	seen := make(map[Action]bool)
	for _, e := range menu {
		if e.title != "" {
			seen[e.action] = true
		}
	}
	for a := ActionCapture; a <= ActionQuit; a++ {
		if !seen[a] {
			t.Errorf("action %d has no menu entry", a)
		}
	}
}
