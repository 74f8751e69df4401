// Package lineage reconstructs a design's browsable version history from
// the flat append-only history array plus restore and cross-design copy
// provenance pointers.
//
// Provenance looks cyclic (restores point at earlier versions, copies point
// at sibling designs that have lineages of their own) but is a DAG keyed by
// (designId, versionId): every edge is resolved by a one-hop lookup into an
// already-fetched snapshot, never by re-fetching.
package lineage

import (
	"log"
	"time"

	"atelier/api/internal/store"
)

// Node is one native version of the design, newest first.
type Node struct {
	Version        store.DesignVersion
	DisplayDate    string
	IsRestored     bool
	RestoredFrom   *Provenance
	CopiedBranches []CopyNode
}

// Provenance points at the version a restore was taken from.
type Provenance struct {
	DesignID    string
	VersionID   string
	DisplayDate string
}

// CopyNode is a "ghost" version belonging to another design whose first
// version originated from one of ours. It always reflects the copy target's
// current latest version, not a snapshot frozen at copy time.
type CopyNode struct {
	Version             store.DesignVersion
	Design              DesignRef
	DisplayDate         string
	CopiedFromVersionID string
}

// DesignRef identifies the copy target.
type DesignRef struct {
	ID    string
	Name  string
	Owner string
}

// Build assembles the lineage of a design. versions and designs are
// read-only snapshots covering the design's own history plus any sibling
// designs (and their versions) referenced by copy pointers.
//
// Build never fails: unresolvable references are logged and omitted so a
// partial data load still renders the rest of the structure. An empty
// history yields an empty lineage.
func Build(d store.Design, versions map[string]store.DesignVersion, designs map[string]store.Design) []Node {
	resolved := make([]store.DesignVersion, 0, len(d.History))
	native := make(map[string]store.DesignVersion, len(d.History))
	for _, id := range d.History {
		version, found := versions[id]
		if !found {
			log.Printf("lineage: design %s references missing version %s, skipping", d.ID, id)
			continue
		}
		resolved = append(resolved, version)
		native[id] = version
	}

	nodes := make([]Node, 0, len(resolved))
	for _, version := range resolved {
		node := Node{
			Version:     version,
			DisplayDate: DisplayDate(version.CreatedAt),
			IsRestored:  version.IsRestored,
		}

		if version.IsRestored && version.RestoredFromVersion != "" {
			// Resolved against the same native set; the provenance
			// timestamp is never re-fetched from the store.
			if source, found := native[version.RestoredFromVersion]; found {
				node.RestoredFrom = &Provenance{
					DesignID:    version.RestoredFromDesign,
					VersionID:   source.ID,
					DisplayDate: DisplayDate(source.CreatedAt),
				}
			} else {
				log.Printf("lineage: version %s restored from unknown version %s, omitting provenance", version.ID, version.RestoredFromVersion)
			}
		}

		node.CopiedBranches = copyBranches(version, versions, designs)
		nodes = append(nodes, node)
	}

	// History is stored oldest-first; the lineage is displayed newest-first.
	reverse(nodes)
	return nodes
}

func copyBranches(version store.DesignVersion, versions map[string]store.DesignVersion, designs map[string]store.Design) []CopyNode {
	if len(version.CopiedDesigns) == 0 {
		return nil
	}

	branches := make([]CopyNode, 0, len(version.CopiedDesigns))
	// Newest copy first within the branch.
	for i := len(version.CopiedDesigns) - 1; i >= 0; i-- {
		copiedID := version.CopiedDesigns[i]
		copied, found := designs[copiedID]
		if !found {
			log.Printf("lineage: version %s copied into missing design %s, skipping branch", version.ID, copiedID)
			continue
		}
		if len(copied.History) == 0 {
			log.Printf("lineage: copied design %s has no versions, skipping branch", copiedID)
			continue
		}
		latest, found := versions[copied.History[len(copied.History)-1]]
		if !found {
			log.Printf("lineage: copied design %s latest version %s not in snapshot, skipping branch", copiedID, copied.History[len(copied.History)-1])
			continue
		}
		branches = append(branches, CopyNode{
			Version:             latest,
			Design:              DesignRef{ID: copied.ID, Name: copied.Name, Owner: copied.Owner},
			DisplayDate:         DisplayDate(latest.CreatedAt),
			CopiedFromVersionID: version.ID,
		})
	}
	if len(branches) == 0 {
		return nil
	}
	return branches
}

// DisplayDate renders a version timestamp the way pickers show it.
func DisplayDate(t time.Time) string {
	return t.Format("Jan 2, 2006, 3:04 PM")
}

func reverse(nodes []Node) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}
