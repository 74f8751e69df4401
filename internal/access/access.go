// Package access resolves a viewer's effective role on a design or project
// and derives the capability gates the rest of the API checks.
//
// Under link sharing the general-access role acts as a floor, never a
// ceiling: an explicitly listed Commenter is lifted to Editor when the link
// role is Editor, and lower-priority lists are only consulted once higher
// ones fail to match. Product has been asked to confirm the floor semantic;
// until then it is implemented verbatim.
package access

import "atelier/api/internal/store"

// DesignRole values are the wire values the web client has always used;
// Editor outranks Commenter despite the numeric ordering.
type DesignRole int

const (
	DesignViewer    DesignRole = 0
	DesignEditor    DesignRole = 1
	DesignCommenter DesignRole = 2
	DesignOwner     DesignRole = 3
	// DesignNoAccess is a roster-editing sentinel. It is never returned by
	// ResolveDesign and never stored on an object.
	DesignNoAccess DesignRole = 4
)

type ProjectRole int

const (
	ProjectViewer         ProjectRole = 0
	ProjectContributor    ProjectRole = 1
	ProjectContentManager ProjectRole = 2
	ProjectManager        ProjectRole = 3
)

func (r DesignRole) String() string {
	switch r {
	case DesignViewer:
		return "Viewer"
	case DesignEditor:
		return "Editor"
	case DesignCommenter:
		return "Commenter"
	case DesignOwner:
		return "Owner"
	case DesignNoAccess:
		return "No access"
	default:
		return "Unknown"
	}
}

func (r ProjectRole) String() string {
	switch r {
	case ProjectViewer:
		return "Viewer"
	case ProjectContributor:
		return "Contributor"
	case ProjectContentManager:
		return "Content manager"
	case ProjectManager:
		return "Manager"
	default:
		return "Unknown"
	}
}

// ResolveDesign computes the single effective role gating every capability
// on a design. The second return is false when the viewer has no role on
// the object; callers typically exclude the design from listings.
//
// It never panics: absent or malformed ACL fields collapse to the most
// restrictive interpretation.
func ResolveDesign(d store.Design, viewerID string) (DesignRole, bool) {
	if viewerID == "" {
		return 0, false
	}
	if d.Owner != "" && viewerID == d.Owner {
		return DesignOwner, true
	}

	linkRole := designLinkRole(d.Settings)
	switch d.Settings.Setting {
	case GeneralAnyoneWithLink:
		if contains(d.Editors, viewerID) || linkRole == DesignEditor {
			return DesignEditor, true
		}
		if contains(d.Commenters, viewerID) || linkRole == DesignCommenter {
			return DesignCommenter, true
		}
		if linkRole >= 0 {
			return linkRole, true
		}
		return DesignViewer, true
	default:
		// Restricted, or an unrecognized setting treated as restricted.
		if contains(d.Editors, viewerID) {
			return DesignEditor, true
		}
		if contains(d.Commenters, viewerID) {
			return DesignCommenter, true
		}
		if contains(d.Viewers, viewerID) {
			return DesignViewer, true
		}
		return 0, false
	}
}

// ResolveProject is the project analog of ResolveDesign. Managers are an
// explicit list only; the link role can never grant Manager.
func ResolveProject(p store.Project, viewerID string) (ProjectRole, bool) {
	if viewerID == "" {
		return 0, false
	}
	if contains(p.Managers, viewerID) {
		return ProjectManager, true
	}

	linkRole := projectLinkRole(p.Settings)
	switch p.Settings.Setting {
	case GeneralAnyoneWithLink:
		if contains(p.ContentManagers, viewerID) || linkRole == ProjectContentManager {
			return ProjectContentManager, true
		}
		if contains(p.Contributors, viewerID) || linkRole == ProjectContributor {
			return ProjectContributor, true
		}
		if linkRole >= 0 {
			return linkRole, true
		}
		return ProjectViewer, true
	default:
		if contains(p.ContentManagers, viewerID) {
			return ProjectContentManager, true
		}
		if contains(p.Contributors, viewerID) {
			return ProjectContributor, true
		}
		if contains(p.Viewers, viewerID) {
			return ProjectViewer, true
		}
		return 0, false
	}
}

// designLinkRole returns the general-access role for a design, or -1 when
// unset or outside the range a link may grant (Owner is never grantable).
func designLinkRole(s store.AccessSettings) DesignRole {
	switch DesignRole(s.Role) {
	case DesignViewer, DesignEditor, DesignCommenter:
		return DesignRole(s.Role)
	default:
		return -1
	}
}

// projectLinkRole caps the link role below Manager.
func projectLinkRole(s store.AccessSettings) ProjectRole {
	switch ProjectRole(s.Role) {
	case ProjectViewer, ProjectContributor, ProjectContentManager:
		return ProjectRole(s.Role)
	default:
		return -1
	}
}

const (
	GeneralRestricted     = store.GeneralRestricted
	GeneralAnyoneWithLink = store.GeneralAnyoneWithLink
)

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
