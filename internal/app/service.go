package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"atelier/api/internal/access"
	"atelier/api/internal/config"
	"atelier/api/internal/lineage"
	"atelier/api/internal/roster"
	"atelier/api/internal/search"
	"atelier/api/internal/store"
)

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	ListDesigns(context.Context) ([]store.Design, error)
	GetDesign(context.Context, string) (store.Design, error)
	GetDesignsByIDs(context.Context, []string) (map[string]store.Design, error)
	GetVersionsByIDs(context.Context, []string) (map[string]store.DesignVersion, error)
	UpdateDesignAccess(ctx context.Context, designID string, editors, commenters, viewers []string, settings store.AccessSettings) error
	AppendRestoredVersion(context.Context, string, store.DesignVersion) (store.DesignVersion, error)
	ListProjects(context.Context) ([]store.Project, error)
	GetProject(context.Context, string) (store.Project, error)
	UpdateProjectAccess(ctx context.Context, projectID string, managers, contentManagers, contributors, viewers []string, settings store.AccessSettings) error
	Ping(context.Context) error
}

type userDirectory interface {
	Lookup(ctx context.Context, userIDs []string) map[string]store.User
	Search(ctx context.Context, query string, limit int) ([]store.User, error)
}

type linkResolver interface {
	Resolve(ctx context.Context, images []store.VersionImage) []store.VersionImage
}

type designSearch interface {
	Search(q search.Query) []search.Result
	IndexDesign(record search.DesignRecord)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	directory userDirectory
	links     linkResolver
	search    designSearch

	// Guards against re-entrant restore submission per design while a
	// request is in flight.
	restoreMu sync.Mutex
	restoring map[string]bool
}

// New wires the service. links and searcher may be nil when object storage
// or Meilisearch are not configured.
func New(cfg config.Config, dataStore dataStore, directory userDirectory, links linkResolver, searcher designSearch) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		directory: directory,
		links:     links,
		search:    searcher,
		restoring: make(map[string]bool),
	}
}

// SetLinks installs the presigned-link resolver for version images.
func (s *Service) SetLinks(links linkResolver) {
	s.links = links
}

// SetSearch installs the design search facade.
func (s *Service) SetSearch(searcher designSearch) {
	s.search = searcher
}

// Bootstrap backfills the design search index so a fresh or recovered
// Meilisearch instance serves hits instead of silent empty results.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search == nil {
		return nil
	}
	designs, err := s.store.ListDesigns(ctx)
	if err != nil {
		return fmt.Errorf("backfill design index: %w", err)
	}
	for _, d := range designs {
		s.indexDesign(d)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Viewer resolves the gateway-authenticated user id to a profile.
func (s *Service) Viewer(ctx context.Context, userID string) (store.User, error) {
	if userID == "" {
		return store.User{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return store.User{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		}
		return store.User{}, err
	}
	return user, nil
}

// =============================================================================
// Designs
// =============================================================================

// ListDesigns returns the designs the viewer can resolve a role on,
// optionally narrowed by a search query.
func (s *Service) ListDesigns(ctx context.Context, viewerID, query string) ([]map[string]any, error) {
	var designs []store.Design
	if query != "" && s.search != nil {
		hits := s.search.Search(search.Query{Text: query})
		ids := make([]string, len(hits))
		for i, hit := range hits {
			ids[i] = hit.ID
		}
		byID, err := s.store.GetDesignsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		// Preserve search ranking.
		for _, id := range ids {
			if d, found := byID[id]; found {
				designs = append(designs, d)
			}
		}
	} else {
		all, err := s.store.ListDesigns(ctx)
		if err != nil {
			return nil, err
		}
		designs = all
	}

	formatted := make([]map[string]any, 0, len(designs))
	for _, d := range designs {
		role, resolvable := access.ResolveDesign(d, viewerID)
		if !resolvable {
			// No role on this object; it does not exist for the viewer.
			continue
		}
		formatted = append(formatted, designSummary(d, role))
	}
	return formatted, nil
}

// GetDesign returns one design with the viewer's role and capability gates.
func (s *Service) GetDesign(ctx context.Context, viewerID, designID string) (map[string]any, error) {
	d, role, err := s.designForViewer(ctx, viewerID, designID)
	if err != nil {
		return nil, err
	}

	caps := access.DesignCapabilities(role, d)
	result := designSummary(d, role)
	result["capabilities"] = map[string]any{
		"rename":     caps.Rename,
		"delete":     caps.Delete,
		"restore":    caps.Restore,
		"changeMode": caps.ChangeMode,
		"comment":    caps.Comment,
		"download":   caps.Download,
		"history":    caps.History,
		"makeCopy":   caps.MakeCopy,
	}
	result["history"] = d.History
	return result, nil
}

// DesignAccess returns the share-dialog data: the materialized roster and
// the general-access tuple.
func (s *Service) DesignAccess(ctx context.Context, viewerID, designID string) (map[string]any, error) {
	d, role, err := s.designForViewer(ctx, viewerID, designID)
	if err != nil {
		return nil, err
	}

	ids := append([]string{d.Owner}, d.Editors...)
	ids = append(ids, d.Commenters...)
	ids = append(ids, d.Viewers...)
	entries := roster.BuildDesign(d, s.directory.Lookup(ctx, ids))

	return map[string]any{
		"roster":        formatRoster(entries),
		"generalAccess": formatGeneral(d.Settings),
		"canEdit":       access.DesignCapabilities(role, d).ChangeMode,
	}, nil
}

// UpdateDesignAccess validates an access edit through the diff engine and
// applies the resulting change-set. A no-op is reported without a write.
func (s *Service) UpdateDesignAccess(ctx context.Context, viewerID, designID string, input AccessChangeInput) (map[string]any, error) {
	d, role, err := s.designForViewer(ctx, viewerID, designID)
	if err != nil {
		return nil, err
	}
	if !access.DesignCapabilities(role, d).ChangeMode {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner or an editor can change access", nil)
	}

	result, err := roster.Prepare(roster.KindDesign, input.initialRefs(), input.edits(), input.InitialGeneral.settings(), input.EditedGeneral.settings())
	if err != nil {
		return nil, validationError(err)
	}
	if result.NoOp {
		return map[string]any{"ok": true, "noop": true}, nil
	}

	var editors, commenters, viewers []string
	for _, ref := range result.Change.Roster {
		switch access.DesignRole(ref.Role) {
		case access.DesignOwner:
			// Ownership is not stored in a role array.
		case access.DesignEditor:
			editors = append(editors, ref.UserID)
		case access.DesignCommenter:
			commenters = append(commenters, ref.UserID)
		case access.DesignViewer:
			viewers = append(viewers, ref.UserID)
		default:
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown role in roster", nil)
		}
	}

	removed := removedUserIDs(result.Change.Initial, result.Change.Roster)
	if len(removed) > 0 {
		log.Printf("access: design %s removing %d collaborators", designID, len(removed))
	}

	if err := s.store.UpdateDesignAccess(ctx, designID, editors, commenters, viewers, result.Change.General); err != nil {
		return nil, err
	}
	s.indexDesign(d)
	return map[string]any{"ok": true, "noop": false, "removed": removed}, nil
}

// DesignLineage builds the browsable version lineage for a design.
func (s *Service) DesignLineage(ctx context.Context, viewerID, designID string) (map[string]any, error) {
	d, role, err := s.designForViewer(ctx, viewerID, designID)
	if err != nil {
		return nil, err
	}
	if !access.DesignCapabilities(role, d).History {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Version history is not available for this design", nil)
	}

	versions, designs, err := s.lineageSnapshot(ctx, d)
	if err != nil {
		return nil, err
	}
	nodes := lineage.Build(d, versions, designs)

	formatted := make([]map[string]any, len(nodes))
	for i, node := range nodes {
		formatted[i] = s.formatLineageNode(ctx, node)
	}
	return map[string]any{
		"designId": d.ID,
		"lineage":  formatted,
	}, nil
}

// RestoreVersion appends a new version mirroring the target. The current
// head can never be restored, and a second submission for the same design
// while one is in flight is rejected.
func (s *Service) RestoreVersion(ctx context.Context, viewerID, designID, versionID string) (map[string]any, error) {
	d, role, err := s.designForViewer(ctx, viewerID, designID)
	if err != nil {
		return nil, err
	}
	if !access.DesignCapabilities(role, d).Restore {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner or an editor can restore a version", nil)
	}

	inHistory := false
	for _, id := range d.History {
		if id == versionID {
			inHistory = true
			break
		}
	}
	if !inHistory {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Version does not belong to this design", nil)
	}
	if len(d.History) > 0 && versionID == d.History[len(d.History)-1] {
		return nil, domainError(http.StatusUnprocessableEntity, "ALREADY_CURRENT", "This version is already the current one", nil)
	}

	if !s.beginRestore(designID) {
		return nil, domainError(http.StatusConflict, "RESTORE_IN_FLIGHT", "A restore for this design is already in progress", nil)
	}
	defer s.endRestore(designID)

	versions, err := s.store.GetVersionsByIDs(ctx, []string{versionID})
	if err != nil {
		return nil, err
	}
	target, found := versions[versionID]
	if !found {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Version not found", nil)
	}

	restored, err := s.store.AppendRestoredVersion(ctx, designID, target)
	if err != nil {
		return nil, err
	}
	s.indexDesign(d)
	return map[string]any{
		"ok":      true,
		"version": s.formatVersion(ctx, restored),
	}, nil
}

// =============================================================================
// Projects
// =============================================================================

func (s *Service) ListProjects(ctx context.Context, viewerID string) ([]map[string]any, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	formatted := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		role, resolvable := access.ResolveProject(p, viewerID)
		if !resolvable {
			continue
		}
		formatted = append(formatted, map[string]any{
			"id":        p.ID,
			"name":      p.Name,
			"role":      int(role),
			"roleLabel": role.String(),
			"designs":   len(p.Designs),
			"updatedAt": p.UpdatedAt,
		})
	}
	return formatted, nil
}

func (s *Service) ProjectAccess(ctx context.Context, viewerID, projectID string) (map[string]any, error) {
	p, role, err := s.projectForViewer(ctx, viewerID, projectID)
	if err != nil {
		return nil, err
	}

	ids := append([]string{}, p.Managers...)
	ids = append(ids, p.ContentManagers...)
	ids = append(ids, p.Contributors...)
	ids = append(ids, p.Viewers...)
	entries := roster.BuildProject(p, s.directory.Lookup(ctx, ids))

	return map[string]any{
		"roster":        formatRoster(entries),
		"generalAccess": formatGeneral(p.Settings),
		"canEdit":       role == access.ProjectManager,
	}, nil
}

func (s *Service) UpdateProjectAccess(ctx context.Context, viewerID, projectID string, input AccessChangeInput) (map[string]any, error) {
	_, role, err := s.projectForViewer(ctx, viewerID, projectID)
	if err != nil {
		return nil, err
	}
	if role != access.ProjectManager {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only a manager can change project access", nil)
	}

	result, err := roster.Prepare(roster.KindProject, input.initialRefs(), input.edits(), input.InitialGeneral.settings(), input.EditedGeneral.settings())
	if err != nil {
		return nil, validationError(err)
	}
	if result.NoOp {
		return map[string]any{"ok": true, "noop": true}, nil
	}

	var managers, contentManagers, contributors, viewers []string
	for _, ref := range result.Change.Roster {
		switch access.ProjectRole(ref.Role) {
		case access.ProjectManager:
			managers = append(managers, ref.UserID)
		case access.ProjectContentManager:
			contentManagers = append(contentManagers, ref.UserID)
		case access.ProjectContributor:
			contributors = append(contributors, ref.UserID)
		case access.ProjectViewer:
			viewers = append(viewers, ref.UserID)
		default:
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown role in roster", nil)
		}
	}

	removed := removedUserIDs(result.Change.Initial, result.Change.Roster)
	if len(removed) > 0 {
		log.Printf("access: project %s removing %d collaborators", projectID, len(removed))
	}

	if err := s.store.UpdateProjectAccess(ctx, projectID, managers, contentManagers, contributors, viewers, result.Change.General); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "noop": false, "removed": removed}, nil
}

// =============================================================================
// Users
// =============================================================================

// SearchUsers returns share-dialog candidates for a query.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]map[string]any, error) {
	users, err := s.directory.Search(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	formatted := make([]map[string]any, len(users))
	for i, u := range users {
		formatted[i] = map[string]any{
			"id":         u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"firstName":  u.FirstName,
			"lastName":   u.LastName,
			"profilePic": u.ProfilePic,
		}
	}
	return formatted, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Service) designForViewer(ctx context.Context, viewerID, designID string) (store.Design, access.DesignRole, error) {
	d, err := s.store.GetDesign(ctx, designID)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Design{}, 0, domainError(http.StatusNotFound, "NOT_FOUND", "Design not found", nil)
		}
		return store.Design{}, 0, err
	}
	role, resolvable := access.ResolveDesign(d, viewerID)
	if !resolvable {
		// Unresolvable role reads as absence; existence is not revealed.
		return store.Design{}, 0, domainError(http.StatusNotFound, "NOT_FOUND", "Design not found", nil)
	}
	return d, role, nil
}

func (s *Service) projectForViewer(ctx context.Context, viewerID, projectID string) (store.Project, access.ProjectRole, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Project{}, 0, domainError(http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
		}
		return store.Project{}, 0, err
	}
	role, resolvable := access.ResolveProject(p, viewerID)
	if !resolvable {
		return store.Project{}, 0, domainError(http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
	}
	return p, role, nil
}

// lineageSnapshot fetches everything Build needs in two passes: the
// design's own versions, then the copy targets and their current heads.
func (s *Service) lineageSnapshot(ctx context.Context, d store.Design) (map[string]store.DesignVersion, map[string]store.Design, error) {
	versions, err := s.store.GetVersionsByIDs(ctx, d.History)
	if err != nil {
		return nil, nil, err
	}

	var copiedIDs []string
	for _, v := range versions {
		copiedIDs = append(copiedIDs, v.CopiedDesigns...)
	}
	designs, err := s.store.GetDesignsByIDs(ctx, copiedIDs)
	if err != nil {
		return nil, nil, err
	}
	designs[d.ID] = d

	var headIDs []string
	for _, copied := range designs {
		if len(copied.History) == 0 {
			continue
		}
		head := copied.History[len(copied.History)-1]
		if _, present := versions[head]; !present {
			headIDs = append(headIDs, head)
		}
	}
	if len(headIDs) > 0 {
		heads, err := s.store.GetVersionsByIDs(ctx, headIDs)
		if err != nil {
			return nil, nil, err
		}
		for id, v := range heads {
			versions[id] = v
		}
	}
	return versions, designs, nil
}

func (s *Service) beginRestore(designID string) bool {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()
	if s.restoring[designID] {
		return false
	}
	s.restoring[designID] = true
	return true
}

func (s *Service) endRestore(designID string) {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()
	delete(s.restoring, designID)
}

func (s *Service) formatVersion(ctx context.Context, v store.DesignVersion) map[string]any {
	images := v.Images
	if s.links != nil {
		images = s.links.Resolve(ctx, images)
	}
	formattedImages := make([]map[string]any, len(images))
	for i, img := range images {
		formattedImages[i] = map[string]any{
			"imageId":     img.ImageID,
			"link":        img.Link,
			"description": img.Description,
		}
	}
	formatted := map[string]any{
		"id":          v.ID,
		"designId":    v.DesignID,
		"createdAt":   v.CreatedAt,
		"displayDate": lineage.DisplayDate(v.CreatedAt),
		"isRestored":  v.IsRestored,
		"images":      formattedImages,
	}
	return formatted
}

func (s *Service) formatLineageNode(ctx context.Context, node lineage.Node) map[string]any {
	formatted := s.formatVersion(ctx, node.Version)
	formatted["displayDate"] = node.DisplayDate
	if node.RestoredFrom != nil {
		formatted["restoredFrom"] = map[string]any{
			"designId":    node.RestoredFrom.DesignID,
			"versionId":   node.RestoredFrom.VersionID,
			"displayDate": node.RestoredFrom.DisplayDate,
		}
	}
	if len(node.CopiedBranches) > 0 {
		branches := make([]map[string]any, len(node.CopiedBranches))
		for i, branch := range node.CopiedBranches {
			branches[i] = map[string]any{
				"version": s.formatVersion(ctx, branch.Version),
				"design": map[string]any{
					"id":    branch.Design.ID,
					"name":  branch.Design.Name,
					"owner": branch.Design.Owner,
				},
				"displayDate":         branch.DisplayDate,
				"copiedFromVersionId": branch.CopiedFromVersionID,
			}
		}
		formatted["copiedBranches"] = branches
	}
	return formatted
}

// indexDesign upserts the design's search record. Indexing is
// fire-and-forget inside the facade; a write never waits on it.
func (s *Service) indexDesign(d store.Design) {
	if s.search == nil {
		return
	}
	s.search.IndexDesign(search.DesignRecord{
		ID:      d.ID,
		Name:    d.Name,
		OwnerID: d.Owner,
	})
}

func designSummary(d store.Design, role access.DesignRole) map[string]any {
	return map[string]any{
		"id":        d.ID,
		"name":      d.Name,
		"owner":     d.Owner,
		"role":      int(role),
		"roleLabel": role.String(),
		"budgetId":  d.BudgetID,
		"updatedAt": d.UpdatedAt,
	}
}

func formatRoster(entries []roster.Entry) []map[string]any {
	formatted := make([]map[string]any, len(entries))
	for i, e := range entries {
		formatted[i] = map[string]any{
			"userId":     e.UserID,
			"username":   e.Username,
			"email":      e.Email,
			"profilePic": e.ProfilePic,
			"role":       e.Role,
			"roleLabel":  e.RoleLabel,
		}
	}
	return formatted
}

func formatGeneral(settings store.AccessSettings) map[string]any {
	formatted := map[string]any{"setting": settings.Setting}
	if settings.Role >= 0 {
		formatted["role"] = settings.Role
	} else {
		formatted["role"] = nil
	}
	return formatted
}

func removedUserIDs(initial, edited []roster.Ref) []string {
	kept := make(map[string]struct{}, len(edited))
	for _, ref := range edited {
		kept[ref.UserID] = struct{}{}
	}
	removed := make([]string, 0)
	for _, ref := range initial {
		if _, present := kept[ref.UserID]; !present {
			removed = append(removed, ref.UserID)
		}
	}
	return removed
}

func validationError(err error) error {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", userMessage(err), nil)
}

func userMessage(err error) string {
	switch err {
	case roster.ErrLastManager:
		return "A project must keep at least one manager"
	case roster.ErrOwnerImmutable:
		return "The design owner's role cannot be changed"
	default:
		return "Invalid access change"
	}
}
