package roster

import (
	"errors"

	"atelier/api/internal/access"
	"atelier/api/internal/store"
)

var (
	// ErrLastManager rejects an edit that would leave a project without a
	// single Manager.
	ErrLastManager = errors.New("a project must keep at least one manager")
	// ErrOwnerImmutable rejects any attempt to edit or remove the design
	// owner's row; ownership is fixed at creation.
	ErrOwnerImmutable = errors.New("the design owner's role cannot be changed")
)

// Ref is the (userId, role) pair the diff engine compares and submits.
type Ref struct {
	UserID string
	Role   int
}

// Edit is one row of the edited roster. Removed is the tagged variant
// behind the client's "No access" choice; it is collapsed to omission at
// the change-set boundary and never travels as a role value.
type Edit struct {
	UserID  string
	Role    int
	Removed bool
}

// Change is the validated payload submitted to the object store. It carries
// both the filtered edited roster and the original one so the store can
// compute exactly which users were removed (set difference by user id).
type Change struct {
	Roster  []Ref
	Initial []Ref
	General store.AccessSettings
}

// Result distinguishes "nothing changed" from a change-set so callers can
// short-circuit without a network call.
type Result struct {
	NoOp   bool
	Change *Change
}

// Prepare validates an access edit and produces its change-set.
//
// Validation happens before no-op detection so an edit that both violates
// an invariant and changes nothing else is still rejected loudly.
func Prepare(kind Kind, initial []Ref, edited []Edit, initialGeneral, editedGeneral store.AccessSettings) (Result, error) {
	if err := validate(kind, initial, edited); err != nil {
		return Result{}, err
	}

	if isNoOp(initial, edited, initialGeneral, editedGeneral) {
		return Result{NoOp: true}, nil
	}

	kept := make([]Ref, 0, len(edited))
	for _, e := range edited {
		if e.Removed {
			continue
		}
		kept = append(kept, Ref{UserID: e.UserID, Role: e.Role})
	}

	initialCopy := make([]Ref, len(initial))
	copy(initialCopy, initial)

	return Result{Change: &Change{
		Roster:  kept,
		Initial: initialCopy,
		General: editedGeneral,
	}}, nil
}

func validate(kind Kind, initial []Ref, edited []Edit) error {
	switch kind {
	case KindDesign:
		// The owner row's select control is disabled client-side; reject
		// here as well in case a stale or hand-built payload slips through.
		for _, ref := range initial {
			if ref.Role != int(access.DesignOwner) {
				continue
			}
			for _, e := range edited {
				if e.UserID != ref.UserID {
					continue
				}
				if e.Removed || e.Role != int(access.DesignOwner) {
					return ErrOwnerImmutable
				}
			}
		}
	case KindProject:
		hadManager := false
		for _, ref := range initial {
			if ref.Role == int(access.ProjectManager) {
				hadManager = true
				break
			}
		}
		if !hadManager {
			return nil
		}
		for _, e := range edited {
			if !e.Removed && e.Role == int(access.ProjectManager) {
				return nil
			}
		}
		return ErrLastManager
	}
	return nil
}

// isNoOp compares the rosters as (userId, role) multisets so a duplicated
// edited row cannot cancel out against a single initial row.
func isNoOp(initial []Ref, edited []Edit, initialGeneral, editedGeneral store.AccessSettings) bool {
	if initialGeneral != editedGeneral {
		return false
	}
	if len(initial) != len(edited) {
		return false
	}
	counts := make(map[Ref]int, len(initial))
	for _, ref := range initial {
		counts[ref]++
	}
	for _, e := range edited {
		if e.Removed {
			return false
		}
		ref := Ref{UserID: e.UserID, Role: e.Role}
		if counts[ref] == 0 {
			return false
		}
		counts[ref]--
	}
	return true
}
