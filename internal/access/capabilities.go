package access

import "atelier/api/internal/store"

// Capabilities is the fixed gate table derived from an effective role plus
// the design's per-object visibility flags.
type Capabilities struct {
	Rename     bool
	Delete     bool
	Restore    bool
	ChangeMode bool
	Comment    bool
	Download   bool
	History    bool
	MakeCopy   bool
}

// DesignCapabilities maps a resolved role to its gates. Download, History
// and Make-a-copy are OR-gated on the design's flags for Commenters and
// Viewers; Editors and the Owner always see them.
func DesignCapabilities(role DesignRole, d store.Design) Capabilities {
	caps := Capabilities{
		Download: d.AllowDownload,
		History:  d.AllowViewHistory,
		MakeCopy: d.AllowCopy,
	}
	switch role {
	case DesignOwner:
		caps.Rename = true
		caps.Delete = true
		caps.Restore = true
		caps.ChangeMode = true
		caps.Comment = true
		caps.Download = true
		caps.History = true
		caps.MakeCopy = true
	case DesignEditor:
		caps.Rename = true
		caps.Restore = true
		caps.ChangeMode = true
		caps.Comment = true
		caps.Download = true
		caps.History = true
		caps.MakeCopy = true
	case DesignCommenter:
		caps.Comment = true
	}
	return caps
}
