package store

import "time"

// General-access settings values. Anything else is treated as restricted.
const (
	GeneralRestricted     = "restricted"
	GeneralAnyoneWithLink = "anyone"
)

// GeneralRoleUnset marks a link-sharing role that was never chosen.
const GeneralRoleUnset = -1

type User struct {
	ID         string
	Email      string
	Username   string
	FirstName  string
	LastName   string
	ProfilePic string
	CreatedAt  time.Time
}

// AccessSettings is the link-sharing fallback applied to authenticated users
// not explicitly listed on the object.
type AccessSettings struct {
	Setting string
	Role    int
}

type Design struct {
	ID         string
	Name       string
	Owner      string
	Editors    []string
	Commenters []string
	Viewers    []string
	Settings   AccessSettings
	// Per-object visibility flags for Download / History / Make a copy.
	AllowDownload    bool
	AllowViewHistory bool
	AllowCopy        bool
	// History is append-only, oldest version first.
	History   []string
	BudgetID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Project struct {
	ID              string
	Name            string
	Managers        []string
	ContentManagers []string
	Contributors    []string
	Viewers         []string
	Settings        AccessSettings
	Designs         []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VersionImage rows live inside the version's jsonb images column; the
// field names are the wire names the clients already use.
type VersionImage struct {
	ImageID     string `json:"imageId"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

type DesignVersion struct {
	ID        string
	DesignID  string
	CreatedAt time.Time
	Images    []VersionImage
	// Restore provenance. RestoredFromVersion references a version id that
	// occurs earlier in the same design's history.
	IsRestored          bool
	RestoredFromDesign  string
	RestoredFromVersion string
	// CopiedDesigns holds ids of designs whose first version originated here.
	CopiedDesigns []string
}
