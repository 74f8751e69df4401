package roster

import (
	"testing"

	"atelier/api/internal/access"
	"atelier/api/internal/store"
)

func testDirectory() map[string]store.User {
	return map[string]store.User{
		"u1": {ID: "u1", Username: "ana", Email: "ana@example.com"},
		"u2": {ID: "u2", Username: "bo", Email: "bo@example.com"},
		"u3": {ID: "u3", Username: "cy", Email: "cy@example.com"},
		"u4": {ID: "u4", Username: "dee", Email: "dee@example.com"},
	}
}

func TestBuildDesignOrder(t *testing.T) {
	d := store.Design{
		ID:         "dsg_1",
		Owner:      "u1",
		Viewers:    []string{"u4"},
		Commenters: []string{"u3"},
		Editors:    []string{"u2"},
	}

	entries := BuildDesign(d, testDirectory())
	wantIDs := []string{"u1", "u2", "u3", "u4"}
	wantRoles := []int{int(access.DesignOwner), int(access.DesignEditor), int(access.DesignCommenter), int(access.DesignViewer)}

	if len(entries) != len(wantIDs) {
		t.Fatalf("got %d entries, want %d", len(entries), len(wantIDs))
	}
	for i, e := range entries {
		if e.UserID != wantIDs[i] || e.Role != wantRoles[i] {
			t.Fatalf("entry %d = {%s %d}, want {%s %d}", i, e.UserID, e.Role, wantIDs[i], wantRoles[i])
		}
	}
	if entries[0].RoleLabel != "Owner" || entries[3].RoleLabel != "Viewer" {
		t.Fatalf("unexpected role labels: %q, %q", entries[0].RoleLabel, entries[3].RoleLabel)
	}
}

func TestBuildDesignSkipsUnknownUsers(t *testing.T) {
	d := store.Design{
		ID:      "dsg_1",
		Owner:   "u1",
		Editors: []string{"ghost", "u2"},
	}

	entries := BuildDesign(d, testDirectory())
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (unknown id skipped, no placeholder)", len(entries))
	}
	for _, e := range entries {
		if e.UserID == "ghost" {
			t.Fatalf("unknown id must not produce an entry")
		}
	}
}

func TestBuildProjectOrder(t *testing.T) {
	p := store.Project{
		ID:              "prj_1",
		Managers:        []string{"u1"},
		ContentManagers: []string{"u2"},
		Contributors:    []string{"u3"},
		Viewers:         []string{"u4"},
	}

	entries := BuildProject(p, testDirectory())
	wantRoles := []int{
		int(access.ProjectManager),
		int(access.ProjectContentManager),
		int(access.ProjectContributor),
		int(access.ProjectViewer),
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	for i, e := range entries {
		if e.Role != wantRoles[i] {
			t.Fatalf("entry %d role = %d, want %d", i, e.Role, wantRoles[i])
		}
	}
}

func TestBuildDesignIsRebuiltNotShared(t *testing.T) {
	d := store.Design{ID: "dsg_1", Owner: "u1", Editors: []string{"u2"}}
	first := BuildDesign(d, testDirectory())
	first[0].Role = int(access.DesignNoAccess)

	second := BuildDesign(d, testDirectory())
	if second[0].Role != int(access.DesignOwner) {
		t.Fatalf("mutating one roster must not leak into the next build")
	}
}
