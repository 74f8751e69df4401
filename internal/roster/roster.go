// Package roster materializes the editable collaborator list of a design or
// project from its raw per-role id arrays, and computes the validated
// change-set to submit when access is edited.
package roster

import (
	"atelier/api/internal/access"
	"atelier/api/internal/store"
)

// Kind selects which role ladder and validation rules apply.
type Kind int

const (
	KindDesign Kind = iota
	KindProject
)

// Entry is one row of the "who has access" list. Role carries the numeric
// role value of the object's ladder; RoleLabel is its display name.
type Entry struct {
	UserID     string
	Username   string
	Email      string
	ProfilePic string
	Role       int
	RoleLabel  string
}

// BuildDesign rebuilds a design's roster from scratch: owner first, then
// editors, commenters and viewers. Ids missing from the directory are
// silently skipped; the roster never contains placeholder rows.
func BuildDesign(d store.Design, directory map[string]store.User) []Entry {
	entries := make([]Entry, 0, 1+len(d.Editors)+len(d.Commenters)+len(d.Viewers))
	entries = appendDesignTier(entries, []string{d.Owner}, access.DesignOwner, directory)
	entries = appendDesignTier(entries, d.Editors, access.DesignEditor, directory)
	entries = appendDesignTier(entries, d.Commenters, access.DesignCommenter, directory)
	entries = appendDesignTier(entries, d.Viewers, access.DesignViewer, directory)
	return entries
}

// BuildProject rebuilds a project's roster: managers first, then content
// managers, contributors and viewers.
func BuildProject(p store.Project, directory map[string]store.User) []Entry {
	entries := make([]Entry, 0, len(p.Managers)+len(p.ContentManagers)+len(p.Contributors)+len(p.Viewers))
	entries = appendProjectTier(entries, p.Managers, access.ProjectManager, directory)
	entries = appendProjectTier(entries, p.ContentManagers, access.ProjectContentManager, directory)
	entries = appendProjectTier(entries, p.Contributors, access.ProjectContributor, directory)
	entries = appendProjectTier(entries, p.Viewers, access.ProjectViewer, directory)
	return entries
}

func appendDesignTier(entries []Entry, ids []string, role access.DesignRole, directory map[string]store.User) []Entry {
	for _, id := range ids {
		user, found := directory[id]
		if !found {
			continue
		}
		entries = append(entries, Entry{
			UserID:     user.ID,
			Username:   user.Username,
			Email:      user.Email,
			ProfilePic: user.ProfilePic,
			Role:       int(role),
			RoleLabel:  role.String(),
		})
	}
	return entries
}

func appendProjectTier(entries []Entry, ids []string, role access.ProjectRole, directory map[string]store.User) []Entry {
	for _, id := range ids {
		user, found := directory[id]
		if !found {
			continue
		}
		entries = append(entries, Entry{
			UserID:     user.ID,
			Username:   user.Username,
			Email:      user.Email,
			ProfilePic: user.ProfilePic,
			Role:       int(role),
			RoleLabel:  role.String(),
		})
	}
	return entries
}

// Refs projects a roster down to the (userId, role) pairs the diff engine
// compares.
func Refs(entries []Entry) []Ref {
	refs := make([]Ref, len(entries))
	for i, e := range entries {
		refs[i] = Ref{UserID: e.UserID, Role: e.Role}
	}
	return refs
}
