package app

import (
	"atelier/api/internal/roster"
	"atelier/api/internal/store"
)

// RosterRefInput is one row of the roster as the client last saw it.
type RosterRefInput struct {
	UserID string `json:"userId"`
	Role   int    `json:"role"`
}

// RosterEditInput is one row of the edited roster. Removed maps the
// client's "No access" choice; the role value is ignored when set.
type RosterEditInput struct {
	UserID  string `json:"userId"`
	Role    int    `json:"role"`
	Removed bool   `json:"removed"`
}

// GeneralAccessInput is the link-sharing tuple. A nil role means no role
// has been chosen for the setting.
type GeneralAccessInput struct {
	Setting string `json:"setting"`
	Role    *int   `json:"role"`
}

// AccessChangeInput is the share-dialog submission: the roster and general
// access as initially loaded, and as edited.
type AccessChangeInput struct {
	Initial        []RosterRefInput   `json:"initial"`
	Edited         []RosterEditInput  `json:"edited"`
	InitialGeneral GeneralAccessInput `json:"initialGeneral"`
	EditedGeneral  GeneralAccessInput `json:"editedGeneral"`
}

func (in AccessChangeInput) initialRefs() []roster.Ref {
	refs := make([]roster.Ref, len(in.Initial))
	for i, ref := range in.Initial {
		refs[i] = roster.Ref{UserID: ref.UserID, Role: ref.Role}
	}
	return refs
}

func (in AccessChangeInput) edits() []roster.Edit {
	edits := make([]roster.Edit, len(in.Edited))
	for i, e := range in.Edited {
		edits[i] = roster.Edit{UserID: e.UserID, Role: e.Role, Removed: e.Removed}
	}
	return edits
}

func (g GeneralAccessInput) settings() store.AccessSettings {
	settings := store.AccessSettings{Setting: g.Setting, Role: store.GeneralRoleUnset}
	if g.Setting == "" {
		settings.Setting = store.GeneralRestricted
	}
	if g.Role != nil {
		settings.Role = *g.Role
	}
	return settings
}
