package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"atelier/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// Users
// =============================================================================

const userColumns = `id, email, username, first_name, last_name, profile_pic, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.ProfilePic, &u.CreatedAt)
	return u, err
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUsersByIDs returns the profiles that exist; absent ids are simply not
// in the map, never an error.
func (s *PostgresStore) GetUsersByIDs(ctx context.Context, userIDs []string) (map[string]User, error) {
	users := make(map[string]User, len(userIDs))
	if len(userIDs) == 0 {
		return users, nil
	}

	encoded, err := json.Marshal(userIDs)
	if err != nil {
		return nil, fmt.Errorf("encode user ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, encoded)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}

func (s *PostgresStore) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username ILIKE '%' || $1 || '%'
		   OR email ILIKE '%' || $1 || '%'
		   OR (first_name || ' ' || last_name) ILIKE '%' || $1 || '%'
		ORDER BY username
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// =============================================================================
// Designs
// =============================================================================

const designColumns = `id, name, owner_id, editors, commenters, viewers,
	general_access, general_role, allow_download, allow_view_history, allow_copy,
	history, budget_id, created_at, updated_at`

func scanDesign(row interface{ Scan(...any) error }) (Design, error) {
	var d Design
	var editors, commenters, viewers, history []byte
	err := row.Scan(&d.ID, &d.Name, &d.Owner, &editors, &commenters, &viewers,
		&d.Settings.Setting, &d.Settings.Role, &d.AllowDownload, &d.AllowViewHistory, &d.AllowCopy,
		&history, &d.BudgetID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Design{}, err
	}
	if err := decodeIDList(editors, &d.Editors); err != nil {
		return Design{}, fmt.Errorf("decode editors: %w", err)
	}
	if err := decodeIDList(commenters, &d.Commenters); err != nil {
		return Design{}, fmt.Errorf("decode commenters: %w", err)
	}
	if err := decodeIDList(viewers, &d.Viewers); err != nil {
		return Design{}, fmt.Errorf("decode viewers: %w", err)
	}
	if err := decodeIDList(history, &d.History); err != nil {
		return Design{}, fmt.Errorf("decode history: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetDesign(ctx context.Context, designID string) (Design, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+designColumns+` FROM designs WHERE id=$1`, designID)
	return scanDesign(row)
}

func (s *PostgresStore) ListDesigns(ctx context.Context) ([]Design, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+designColumns+` FROM designs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()

	var designs []Design
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		designs = append(designs, d)
	}
	return designs, rows.Err()
}

func (s *PostgresStore) GetDesignsByIDs(ctx context.Context, designIDs []string) (map[string]Design, error) {
	designs := make(map[string]Design, len(designIDs))
	if len(designIDs) == 0 {
		return designs, nil
	}

	encoded, err := json.Marshal(designIDs)
	if err != nil {
		return nil, fmt.Errorf("encode design ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+designColumns+` FROM designs
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, encoded)
	if err != nil {
		return nil, fmt.Errorf("query designs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		designs[d.ID] = d
	}
	return designs, rows.Err()
}

// UpdateDesignAccess replaces a design's role arrays and general-access
// settings wholesale. The arrays arrive pre-validated from the diff engine.
func (s *PostgresStore) UpdateDesignAccess(ctx context.Context, designID string, editors, commenters, viewers []string, settings AccessSettings) error {
	editorsJSON, commentersJSON, viewersJSON, err := encodeIDLists(editors, commenters, viewers)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE designs
		SET editors=$2, commenters=$3, viewers=$4, general_access=$5, general_role=$6, updated_at=now()
		WHERE id=$1
	`, designID, editorsJSON, commentersJSON, viewersJSON, settings.Setting, settings.Role)
	if err != nil {
		return fmt.Errorf("update design access: %w", err)
	}
	return ensureOneRow(result, "design", designID)
}

// =============================================================================
// Projects
// =============================================================================

const projectColumns = `id, name, managers, content_managers, contributors, viewers,
	general_access, general_role, designs, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	var managers, contentManagers, contributors, viewers, designs []byte
	err := row.Scan(&p.ID, &p.Name, &managers, &contentManagers, &contributors, &viewers,
		&p.Settings.Setting, &p.Settings.Role, &designs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	if err := decodeIDList(managers, &p.Managers); err != nil {
		return Project{}, fmt.Errorf("decode managers: %w", err)
	}
	if err := decodeIDList(contentManagers, &p.ContentManagers); err != nil {
		return Project{}, fmt.Errorf("decode content managers: %w", err)
	}
	if err := decodeIDList(contributors, &p.Contributors); err != nil {
		return Project{}, fmt.Errorf("decode contributors: %w", err)
	}
	if err := decodeIDList(viewers, &p.Viewers); err != nil {
		return Project{}, fmt.Errorf("decode viewers: %w", err)
	}
	if err := decodeIDList(designs, &p.Designs); err != nil {
		return Project{}, fmt.Errorf("decode designs: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, projectID)
	return scanProject(row)
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) UpdateProjectAccess(ctx context.Context, projectID string, managers, contentManagers, contributors, viewers []string, settings AccessSettings) error {
	managersJSON, err := json.Marshal(nonNilIDs(managers))
	if err != nil {
		return fmt.Errorf("encode managers: %w", err)
	}
	contentManagersJSON, contributorsJSON, viewersJSON, err := encodeIDLists(contentManagers, contributors, viewers)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET managers=$2, content_managers=$3, contributors=$4, viewers=$5,
		    general_access=$6, general_role=$7, updated_at=now()
		WHERE id=$1
	`, projectID, managersJSON, contentManagersJSON, contributorsJSON, viewersJSON, settings.Setting, settings.Role)
	if err != nil {
		return fmt.Errorf("update project access: %w", err)
	}
	return ensureOneRow(result, "project", projectID)
}

// =============================================================================
// Versions
// =============================================================================

const versionColumns = `id, design_id, created_at, images, is_restored,
	restored_from_design, restored_from_version, copied_designs`

func scanVersion(row interface{ Scan(...any) error }) (DesignVersion, error) {
	var v DesignVersion
	var images, copied []byte
	err := row.Scan(&v.ID, &v.DesignID, &v.CreatedAt, &images, &v.IsRestored,
		&v.RestoredFromDesign, &v.RestoredFromVersion, &copied)
	if err != nil {
		return DesignVersion{}, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &v.Images); err != nil {
			return DesignVersion{}, fmt.Errorf("decode images: %w", err)
		}
	}
	if err := decodeIDList(copied, &v.CopiedDesigns); err != nil {
		return DesignVersion{}, fmt.Errorf("decode copied designs: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) GetVersionsByIDs(ctx context.Context, versionIDs []string) (map[string]DesignVersion, error) {
	versions := make(map[string]DesignVersion, len(versionIDs))
	if len(versionIDs) == 0 {
		return versions, nil
	}

	encoded, err := json.Marshal(versionIDs)
	if err != nil {
		return nil, fmt.Errorf("encode version ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM design_versions
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, encoded)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions[v.ID] = v
	}
	return versions, rows.Err()
}

// AppendRestoredVersion appends a new version mirroring the target's
// content and stamps its provenance. History never shrinks; a restore is
// always an append.
func (s *PostgresStore) AppendRestoredVersion(ctx context.Context, designID string, target DesignVersion) (DesignVersion, error) {
	restored := DesignVersion{
		ID:                  util.NewID("ver"),
		DesignID:            designID,
		CreatedAt:           time.Now().UTC(),
		Images:              make([]VersionImage, len(target.Images)),
		IsRestored:          true,
		RestoredFromDesign:  target.DesignID,
		RestoredFromVersion: target.ID,
	}
	for i, img := range target.Images {
		// The mirrored content keeps its links but each image row gets a
		// fresh identity so annotations never alias across versions.
		restored.Images[i] = VersionImage{
			ImageID:     uuid.NewString(),
			Link:        img.Link,
			Description: img.Description,
		}
	}

	imagesJSON, err := json.Marshal(restored.Images)
	if err != nil {
		return DesignVersion{}, fmt.Errorf("encode images: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DesignVersion{}, fmt.Errorf("begin restore tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO design_versions (id, design_id, created_at, images, is_restored, restored_from_design, restored_from_version, copied_designs)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, '[]')
	`, restored.ID, restored.DesignID, restored.CreatedAt, imagesJSON, restored.RestoredFromDesign, restored.RestoredFromVersion); err != nil {
		return DesignVersion{}, fmt.Errorf("insert restored version: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE designs
		SET history = history || to_jsonb($2::text), updated_at = now()
		WHERE id = $1
	`, designID, restored.ID)
	if err != nil {
		return DesignVersion{}, fmt.Errorf("append to history: %w", err)
	}
	if err := ensureOneRow(result, "design", designID); err != nil {
		return DesignVersion{}, err
	}

	if err := tx.Commit(); err != nil {
		return DesignVersion{}, fmt.Errorf("commit restore tx: %w", err)
	}
	return restored, nil
}

// =============================================================================
// Helpers
// =============================================================================

// ErrNotFound marks lookups whose referenced row does not exist.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err means the referenced row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound)
}

func ensureOneRow(result sql.Result, kind, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func decodeIDList(raw []byte, target *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func encodeIDLists(a, b, c []string) ([]byte, []byte, []byte, error) {
	aJSON, err := json.Marshal(nonNilIDs(a))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode id list: %w", err)
	}
	bJSON, err := json.Marshal(nonNilIDs(b))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode id list: %w", err)
	}
	cJSON, err := json.Marshal(nonNilIDs(c))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode id list: %w", err)
	}
	return aJSON, bJSON, cJSON, nil
}
