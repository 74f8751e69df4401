package lineage

import (
	"errors"
	"testing"

	"atelier/api/internal/store"
)

func builtNavigator(t *testing.T) *Navigator {
	t.Helper()
	d, versions, designs := snapshot()
	v1 := versions["v1"]
	v1.CopiedDesigns = []string{"dsg_b"}
	versions["v1"] = v1
	designs["dsg_b"] = store.Design{ID: "dsg_b", Name: "B", History: []string{"b1"}}
	versions["b1"] = store.DesignVersion{ID: "b1", DesignID: "dsg_b", CreatedAt: at(4)}

	nav := NewNavigator()
	nav.Rebuild(Build(d, versions, designs))
	return nav
}

func TestRebuildSelectsNewest(t *testing.T) {
	nav := builtNavigator(t)
	if nav.State() != StateBrowsing {
		t.Fatalf("state = %v, want browsing", nav.State())
	}
	if sel := nav.Selected(); sel.VersionID != "v3" || sel.IsCopy {
		t.Fatalf("selection = %+v, want the newest native version", sel)
	}
}

func TestRebuildOverridesExplicitSelection(t *testing.T) {
	nav := builtNavigator(t)
	if err := nav.Select("v1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	d, versions, designs := snapshot()
	nav.Rebuild(Build(d, versions, designs))
	if nav.Selected().VersionID != "v3" {
		t.Fatalf("rebuild must reset the selection to the new head")
	}
}

func TestRestoreNotOfferedForHead(t *testing.T) {
	nav := builtNavigator(t)
	if actions := nav.AvailableActions(); actions.Restore {
		t.Fatalf("restore must not be offered for the current version")
	}
	if err := nav.ConfirmRestore(); !errors.Is(err, ErrAlreadyCurrent) {
		t.Fatalf("ConfirmRestore on head: err = %v, want ErrAlreadyCurrent", err)
	}
}

func TestRestoreNotOfferedForSingleVersionHistory(t *testing.T) {
	d := store.Design{ID: "dsg_a", History: []string{"v1"}}
	versions := map[string]store.DesignVersion{"v1": {ID: "v1", DesignID: "dsg_a", CreatedAt: at(1)}}

	nav := NewNavigator()
	nav.Rebuild(Build(d, versions, nil))
	if err := nav.ConfirmRestore(); !errors.Is(err, ErrAlreadyCurrent) {
		t.Fatalf("the only version is the current one; err = %v, want ErrAlreadyCurrent", err)
	}
}

func TestCopySelectionActions(t *testing.T) {
	nav := builtNavigator(t)
	if err := nav.SelectCopy("dsg_b", "b1"); err != nil {
		t.Fatalf("SelectCopy: %v", err)
	}
	actions := nav.AvailableActions()
	if !actions.View || !actions.GoToDesign {
		t.Fatalf("copy selection must offer View and Go-to-design, got %+v", actions)
	}
	if actions.Restore {
		t.Fatalf("restore must never be offered for a copy branch")
	}
	if err := nav.ConfirmRestore(); !errors.Is(err, ErrCopySelection) {
		t.Fatalf("ConfirmRestore on copy: err = %v, want ErrCopySelection", err)
	}
}

func TestSelectUnknownVersion(t *testing.T) {
	nav := builtNavigator(t)
	if err := nav.Select("v99"); !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("err = %v, want ErrUnknownVersion", err)
	}
	if err := nav.SelectCopy("dsg_b", "b99"); !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("err = %v, want ErrUnknownVersion", err)
	}
}

func TestRestoreFlow(t *testing.T) {
	nav := builtNavigator(t)
	if err := nav.Select("v1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := nav.ConfirmRestore(); err != nil {
		t.Fatalf("ConfirmRestore: %v", err)
	}
	epoch, err := nav.BeginRestore()
	if err != nil {
		t.Fatalf("BeginRestore: %v", err)
	}
	if nav.State() != StateRestoring {
		t.Fatalf("state = %v, want restoring", nav.State())
	}

	// Double submission while the request is in flight.
	if _, err := nav.BeginRestore(); !errors.Is(err, ErrRestoreInFlight) {
		t.Fatalf("second BeginRestore: err = %v, want ErrRestoreInFlight", err)
	}
	if err := nav.Select("v2"); !errors.Is(err, ErrRestoreInFlight) {
		t.Fatalf("Select during restore: err = %v, want ErrRestoreInFlight", err)
	}

	if applied := nav.CompleteRestore(epoch, nil); !applied {
		t.Fatalf("completion with the live epoch must apply")
	}
	if nav.State() != StateBrowsing || nav.LastError() != nil {
		t.Fatalf("successful restore must return to browsing with no error")
	}
}

func TestRestoreFailureSurfaced(t *testing.T) {
	nav := builtNavigator(t)
	_ = nav.Select("v1")
	_ = nav.ConfirmRestore()
	epoch, _ := nav.BeginRestore()

	failure := errors.New("store unavailable")
	if applied := nav.CompleteRestore(epoch, failure); !applied {
		t.Fatalf("failed completion with live epoch must still apply")
	}
	if nav.State() != StateBrowsing {
		t.Fatalf("state = %v, want browsing", nav.State())
	}
	if !errors.Is(nav.LastError(), failure) {
		t.Fatalf("failure must be surfaced, got %v", nav.LastError())
	}
}

func TestStaleCompletionIgnored(t *testing.T) {
	nav := builtNavigator(t)
	_ = nav.Select("v1")
	_ = nav.ConfirmRestore()
	epoch, _ := nav.BeginRestore()

	// The picker is rebuilt (navigated away, fresh data) before the
	// request resolves.
	d, versions, designs := snapshot()
	nav.Rebuild(Build(d, versions, designs))

	if applied := nav.CompleteRestore(epoch, nil); applied {
		t.Fatalf("a stale completion must not mutate state")
	}
	if nav.State() != StateBrowsing || nav.Selected().VersionID != "v3" {
		t.Fatalf("stale completion leaked into state: %v %+v", nav.State(), nav.Selected())
	}
}

func TestBackLeavesPreview(t *testing.T) {
	nav := builtNavigator(t)
	if err := nav.View(); err != nil {
		t.Fatalf("View: %v", err)
	}
	if nav.State() != StateViewing {
		t.Fatalf("state = %v, want viewing", nav.State())
	}
	nav.Back()
	if nav.State() != StateBrowsing {
		t.Fatalf("Back must return to browsing")
	}
}
