// Package catalog is the SQLite index of imported fragment folders. It maps
// content hashes to fragment directories, type tags and display labels,
// and keeps a history of builds.
package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/skelmerge/api"
	"github.com/agentic-research/skelmerge/internal/merge"
)

var (
	ErrNotFound  = errors.New("not found in catalog")
	ErrAmbiguous = errors.New("ambiguous id prefix")
)

const schema = `
CREATE TABLE IF NOT EXISTS clothing_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	md5_hash TEXT UNIQUE NOT NULL,
	folder_name TEXT NOT NULL,
	clothing_type TEXT NOT NULL,
	custom_name TEXT,
	description TEXT,
	thumbnail_path TEXT,
	has_animation INTEGER DEFAULT 0,
	source_path TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_items_type ON clothing_items(clothing_type);

CREATE TABLE IF NOT EXISTS animations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	md5_hash TEXT UNIQUE NOT NULL,
	folder_name TEXT NOT NULL,
	action_name TEXT,
	description TEXT,
	source_path TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS import_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	md5_hash TEXT UNIQUE NOT NULL,
	import_time TEXT DEFAULT CURRENT_TIMESTAMP,
	source_folder TEXT,
	status TEXT DEFAULT 'success'
);

CREATE TABLE IF NOT EXISTS builds (
	id TEXT PRIMARY KEY,
	output_path TEXT NOT NULL,
	fragments JSON,
	bones INTEGER,
	slots INTEGER,
	attachments INTEGER,
	images INTEGER,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE VIEW IF NOT EXISTS clothing_stats AS
SELECT
	clothing_type,
	COUNT(*) AS count,
	SUM(CASE WHEN custom_name IS NOT NULL THEN 1 ELSE 0 END) AS labeled_count
FROM clothing_items
GROUP BY clothing_type;
`

// Item is one imported clothing folder.
type Item struct {
	Hash         string `json:"md5_hash"`
	FolderName   string `json:"folder_name"`
	Type         string `json:"clothing_type"`
	Label        string `json:"custom_name,omitempty"`
	Description  string `json:"description,omitempty"`
	HasAnimation bool   `json:"has_animation"`
	SourcePath   string `json:"source_path"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// Fragment converts the item to a merge input.
func (it Item) Fragment() api.Fragment {
	return api.Fragment{ID: it.Hash, Kind: api.FragmentKind(it.Type), Path: it.SourcePath, Label: it.Label}
}

// Animation is one imported animation folder.
type Animation struct {
	Hash        string `json:"md5_hash"`
	FolderName  string `json:"folder_name"`
	ActionName  string `json:"action_name,omitempty"`
	Description string `json:"description,omitempty"`
	SourcePath  string `json:"source_path"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Fragment converts the animation to a merge input.
func (a Animation) Fragment() api.Fragment {
	return api.Fragment{ID: a.Hash, Kind: api.KindAction, Path: a.SourcePath, Label: a.ActionName}
}

// TypeStat is one row of the clothing_stats view.
type TypeStat struct {
	Type    string `json:"clothing_type"`
	Count   int    `json:"count"`
	Labeled int    `json:"labeled_count"`
}

// Stats summarizes the catalog.
type Stats struct {
	Items      int        `json:"total_items"`
	Animations int        `json:"total_animations"`
	Builds     int        `json:"total_builds"`
	Types      []TypeStat `json:"type_stats"`
}

// Build is a recorded build.
type Build struct {
	ID          string   `json:"build_id"`
	OutputPath  string   `json:"output_path"`
	Fragments   []string `json:"fragments"`
	Bones       int      `json:"bones_count"`
	Slots       int      `json:"slots_count"`
	Attachments int      `json:"attachments_count"`
	Images      int      `json:"total_images"`
	CreatedAt   string   `json:"created_at"`
}

// Store wraps the catalog database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; the merge itself never touches the catalog.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ItemExists reports whether hash is a known clothing item.
func (s *Store) ItemExists(hash string) (bool, error) {
	return s.exists("SELECT 1 FROM clothing_items WHERE md5_hash = ?", hash)
}

// AnimationExists reports whether hash is a known animation.
func (s *Store) AnimationExists(hash string) (bool, error) {
	return s.exists("SELECT 1 FROM animations WHERE md5_hash = ?", hash)
}

func (s *Store) exists(query, hash string) (bool, error) {
	var one int
	err := s.db.QueryRow(query, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", hash, err)
	}
	return true, nil
}

// AddItem inserts a clothing item and its import record. It returns false
// when the hash is already known.
func (s *Store) AddItem(it Item) (bool, error) {
	known, err := s.ItemExists(it.Hash)
	if err != nil || known {
		return false, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO clothing_items
			(md5_hash, folder_name, clothing_type, custom_name, description, has_animation, source_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.Hash, it.FolderName, it.Type, nullable(it.Label), nullable(it.Description), it.HasAnimation, it.SourcePath,
	); err != nil {
		return false, fmt.Errorf("insert item %s: %w", it.Hash, err)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO import_history (md5_hash, source_folder) VALUES (?, ?)`,
		it.Hash, it.SourcePath,
	); err != nil {
		return false, fmt.Errorf("record import %s: %w", it.Hash, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// AddAnimation inserts or replaces an animation.
func (s *Store) AddAnimation(a Animation) error {
	if _, err := s.db.Exec(`
		INSERT OR REPLACE INTO animations (md5_hash, folder_name, action_name, description, source_path)
		VALUES (?, ?, ?, ?, ?)`,
		a.Hash, a.FolderName, nullable(a.ActionName), nullable(a.Description), a.SourcePath,
	); err != nil {
		return fmt.Errorf("insert animation %s: %w", a.Hash, err)
	}
	return nil
}

const itemColumns = `md5_hash, folder_name, clothing_type, custom_name, description,
	has_animation, source_path, created_at, updated_at`

// Types lists the distinct clothing types in name order.
func (s *Store) Types() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT clothing_type FROM clothing_items ORDER BY clothing_type")
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// ByType lists the items of one type, labeled items first by label, then
// unlabeled ones by hash.
func (s *Store) ByType(clothingType string) ([]Item, error) {
	return s.queryItems(`SELECT `+itemColumns+` FROM clothing_items
		WHERE clothing_type = ?
		ORDER BY custom_name IS NULL, custom_name, md5_hash`, clothingType)
}

// Items lists every item, newest first.
func (s *Store) Items() ([]Item, error) {
	return s.queryItems(`SELECT ` + itemColumns + ` FROM clothing_items ORDER BY created_at DESC, id DESC`)
}

// ByID finds an item by full hash or by a unique hash prefix.
func (s *Store) ByID(id string) (Item, error) {
	items, err := s.queryItems(`SELECT `+itemColumns+` FROM clothing_items WHERE md5_hash = ?`, id)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		items, err = s.queryItems(`SELECT `+itemColumns+` FROM clothing_items
			WHERE substr(md5_hash, 1, length(?)) = ? ORDER BY md5_hash LIMIT 2`, id, id)
		if err != nil {
			return Item{}, err
		}
	}
	switch len(items) {
	case 0:
		return Item{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
	case 1:
		return items[0], nil
	default:
		return Item{}, fmt.Errorf("item %s: %w", id, ErrAmbiguous)
	}
}

func (s *Store) queryItems(query string, args ...any) ([]Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var items []Item
	for rows.Next() {
		var it Item
		var label, desc, source sql.NullString
		if err := rows.Scan(&it.Hash, &it.FolderName, &it.Type, &label, &desc,
			&it.HasAnimation, &source, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		it.Label, it.Description, it.SourcePath = label.String, desc.String, source.String
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return items, nil
}

const animationColumns = `md5_hash, folder_name, action_name, description, source_path, created_at`

// AllAnimations lists every animation, newest first.
func (s *Store) AllAnimations() ([]Animation, error) {
	return s.queryAnimations(`SELECT ` + animationColumns + ` FROM animations ORDER BY created_at DESC, id DESC`)
}

// AnimationByID finds an animation by full hash or unique hash prefix.
func (s *Store) AnimationByID(id string) (Animation, error) {
	anims, err := s.queryAnimations(`SELECT `+animationColumns+` FROM animations
		WHERE md5_hash = ? OR substr(md5_hash, 1, length(?)) = ?
		ORDER BY md5_hash = ? DESC, md5_hash LIMIT 2`, id, id, id, id)
	if err != nil {
		return Animation{}, err
	}
	switch {
	case len(anims) == 0:
		return Animation{}, fmt.Errorf("animation %s: %w", id, ErrNotFound)
	case len(anims) == 1 || anims[0].Hash == id:
		return anims[0], nil
	default:
		return Animation{}, fmt.Errorf("animation %s: %w", id, ErrAmbiguous)
	}
}

func (s *Store) queryAnimations(query string, args ...any) ([]Animation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query animations: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var anims []Animation
	for rows.Next() {
		var a Animation
		var action, desc, source sql.NullString
		if err := rows.Scan(&a.Hash, &a.FolderName, &action, &desc, &source, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		a.ActionName, a.Description, a.SourcePath = action.String, desc.String, source.String
		anims = append(anims, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return anims, nil
}

// Fragment resolves an id to a merge input, looking at clothing first and
// animations second.
func (s *Store) Fragment(id string) (api.Fragment, error) {
	it, err := s.ByID(id)
	if err == nil {
		return it.Fragment(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return api.Fragment{}, err
	}
	a, err := s.AnimationByID(id)
	if err != nil {
		return api.Fragment{}, err
	}
	return a.Fragment(), nil
}

// Resolve turns ids into fragments, keeping their order.
func (s *Store) Resolve(ids []string) ([]api.Fragment, error) {
	out := make([]api.Fragment, 0, len(ids))
	for _, id := range ids {
		f, err := s.Fragment(id)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// UpdateLabel sets the display label and description of an item. An empty
// label clears it. It returns false when no item matched.
func (s *Store) UpdateLabel(hash, label, description string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE clothing_items
		SET custom_name = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE md5_hash = ?`, nullable(label), nullable(description), hash)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes an item or animation and its import record.
func (s *Store) Delete(hash string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var removed int64
	for _, table := range []string{"clothing_items", "animations"} {
		res, err := tx.Exec("DELETE FROM "+table+" WHERE md5_hash = ?", hash)
		if err != nil {
			return false, fmt.Errorf("delete %s from %s: %w", hash, table, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if _, err := tx.Exec("DELETE FROM import_history WHERE md5_hash = ?", hash); err != nil {
		return false, fmt.Errorf("delete %s from import_history: %w", hash, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return removed > 0, nil
}

// Stats returns catalog totals and per-type counts.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{}
	for query, dst := range map[string]*int{
		"SELECT COUNT(*) FROM clothing_items": &st.Items,
		"SELECT COUNT(*) FROM animations":     &st.Animations,
		"SELECT COUNT(*) FROM builds":         &st.Builds,
	} {
		if err := s.db.QueryRow(query).Scan(dst); err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
	}

	rows, err := s.db.Query("SELECT clothing_type, count, labeled_count FROM clothing_stats ORDER BY clothing_type")
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var ts TypeStat
		if err := rows.Scan(&ts.Type, &ts.Count, &ts.Labeled); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		st.Types = append(st.Types, ts)
	}
	return st, rows.Err()
}

// RecordBuild stores a finished build.
func (s *Store) RecordBuild(r *merge.Report) error {
	ids := make([]string, 0, len(r.Fragments))
	for _, f := range r.Fragments {
		if f.Status == merge.StatusApplied {
			id := f.Fragment.ID
			if id == "" {
				id = f.Fragment.Path
			}
			ids = append(ids, id)
		}
	}
	fragments, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		INSERT INTO builds (id, output_path, fragments, bones, slots, attachments, images)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.BuildID, r.OutputPath, string(fragments), r.Bones, r.Slots, r.Attachments, r.Images,
	); err != nil {
		return fmt.Errorf("record build %s: %w", r.BuildID, err)
	}
	return nil
}

// Builds lists the most recent builds, newest first.
func (s *Store) Builds(limit int) ([]Build, error) {
	rows, err := s.db.Query(`
		SELECT id, output_path, fragments, bones, slots, attachments, images, created_at
		FROM builds ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var builds []Build
	for rows.Next() {
		var b Build
		var fragments string
		if err := rows.Scan(&b.ID, &b.OutputPath, &fragments, &b.Bones, &b.Slots,
			&b.Attachments, &b.Images, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(fragments), &b.Fragments); err != nil {
			return nil, fmt.Errorf("parse fragments json: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// Reset empties every table.
func (s *Store) Reset() error {
	for _, table := range []string{"clothing_items", "animations", "import_history", "builds"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
