package lineage

import "errors"

// State is the navigator's view mode.
type State int

const (
	StateBrowsing State = iota
	StateViewing
	StateConfirmingRestore
	StateRestoring
)

func (s State) String() string {
	switch s {
	case StateBrowsing:
		return "browsing"
	case StateViewing:
		return "viewing"
	case StateConfirmingRestore:
		return "confirming-restore"
	case StateRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownVersion  = errors.New("selected version is not in the lineage")
	ErrAlreadyCurrent  = errors.New("cannot restore the current version")
	ErrCopySelection   = errors.New("copies are independent designs and cannot be restored")
	ErrRestoreInFlight = errors.New("a restore is already in flight")
	ErrNotConfirming   = errors.New("no restore is being confirmed")
)

// Selection identifies either a native lineage node or a copy-branch node.
type Selection struct {
	VersionID    string
	IsCopy       bool
	CopyDesignID string
}

// Actions lists what the picker may offer for the current selection.
type Actions struct {
	View       bool
	Restore    bool
	GoToDesign bool
}

// Navigator is the selection and view-mode state machine behind the
// history, restore and download pickers. It is driven by a single UI event
// loop and is not safe for concurrent use.
type Navigator struct {
	nodes    []Node
	state    State
	selected Selection
	epoch    uint64
	lastErr  error
}

func NewNavigator() *Navigator {
	return &Navigator{}
}

// Rebuild installs a freshly built lineage. Selection resets to the newest
// native version, any pending view or confirmation is dropped, and the
// epoch advances so an in-flight restore resolving later is ignored.
func (n *Navigator) Rebuild(nodes []Node) {
	n.nodes = nodes
	n.state = StateBrowsing
	n.selected = Selection{}
	n.lastErr = nil
	n.epoch++
	if len(nodes) > 0 {
		n.selected = Selection{VersionID: nodes[0].Version.ID}
	}
}

func (n *Navigator) State() State        { return n.state }
func (n *Navigator) Selected() Selection { return n.selected }
func (n *Navigator) Epoch() uint64       { return n.epoch }
func (n *Navigator) LastError() error    { return n.lastErr }

// Select picks a native version while browsing or viewing. A restore in
// flight keeps its target pinned.
func (n *Navigator) Select(versionID string) error {
	if n.state == StateRestoring {
		return ErrRestoreInFlight
	}
	if n.indexOf(versionID) < 0 {
		return ErrUnknownVersion
	}
	n.selected = Selection{VersionID: versionID}
	n.state = StateBrowsing
	n.lastErr = nil
	return nil
}

// SelectCopy picks a copy-branch node. Restore is never offered for it.
func (n *Navigator) SelectCopy(designID, versionID string) error {
	if n.state == StateRestoring {
		return ErrRestoreInFlight
	}
	for _, node := range n.nodes {
		for _, branch := range node.CopiedBranches {
			if branch.Design.ID == designID && branch.Version.ID == versionID {
				n.selected = Selection{VersionID: versionID, IsCopy: true, CopyDesignID: designID}
				n.state = StateBrowsing
				n.lastErr = nil
				return nil
			}
		}
	}
	return ErrUnknownVersion
}

// AvailableActions reflects the current selection: copies get View and
// Go-to-design only, the current head is not restorable.
func (n *Navigator) AvailableActions() Actions {
	if n.selected.VersionID == "" {
		return Actions{}
	}
	if n.selected.IsCopy {
		return Actions{View: true, GoToDesign: true}
	}
	return Actions{View: true, Restore: !n.selectionIsHead()}
}

// View enters the read-only full preview.
func (n *Navigator) View() error {
	if n.state == StateRestoring {
		return ErrRestoreInFlight
	}
	if n.selected.VersionID == "" {
		return ErrUnknownVersion
	}
	n.state = StateViewing
	return nil
}

// ConfirmRestore asks for confirmation of restoring the selected version.
func (n *Navigator) ConfirmRestore() error {
	if n.state == StateRestoring {
		return ErrRestoreInFlight
	}
	if n.selected.VersionID == "" {
		return ErrUnknownVersion
	}
	if n.selected.IsCopy {
		return ErrCopySelection
	}
	if n.selectionIsHead() {
		return ErrAlreadyCurrent
	}
	n.state = StateConfirmingRestore
	return nil
}

// BeginRestore marks the confirmed restore as in flight and returns the
// epoch the caller must hand back to CompleteRestore. The in-flight state
// guards against double submission from rapid repeated clicks.
func (n *Navigator) BeginRestore() (uint64, error) {
	switch n.state {
	case StateRestoring:
		return 0, ErrRestoreInFlight
	case StateConfirmingRestore:
		n.state = StateRestoring
		return n.epoch, nil
	default:
		return 0, ErrNotConfirming
	}
}

// CompleteRestore resolves an in-flight restore. A completion carrying a
// stale epoch (the lineage was rebuilt or the picker was closed meanwhile)
// is dropped without touching state; the return reports whether it applied.
func (n *Navigator) CompleteRestore(epoch uint64, err error) bool {
	if epoch != n.epoch || n.state != StateRestoring {
		return false
	}
	n.state = StateBrowsing
	n.lastErr = err
	return true
}

// Back leaves a preview or confirmation and returns to browsing.
func (n *Navigator) Back() {
	if n.state == StateViewing || n.state == StateConfirmingRestore {
		n.state = StateBrowsing
	}
}

func (n *Navigator) selectionIsHead() bool {
	return len(n.nodes) > 0 && !n.selected.IsCopy && n.selected.VersionID == n.nodes[0].Version.ID
}

func (n *Navigator) indexOf(versionID string) int {
	for i, node := range n.nodes {
		if node.Version.ID == versionID {
			return i
		}
	}
	return -1
}
