// Package store persists finalized extension-type layouts in SQLite so
// tools can inspect them without recompiling the classes.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("jitclass.store")

// ErrLayoutNotFound indicates no layout is stored under the requested name.
var ErrLayoutNotFound = errors.New("layout not found")

// Field is one stored attribute.
type Field struct {
	Name   string
	Type   string
	Kind   string
	Offset int
	Owner  string
	Origin string
}

// Slot is one stored vtable slot.
type Slot struct {
	Index     int
	Name      string
	Signature string
	Owner     string
}

// Layout is the persisted form of an extension type.
type Layout struct {
	ID     uuid.UUID
	Name   string
	Parent string
	Mode   string
	Size   int
	Align  int
	Fields []Field
	Slots  []Slot
}

// LayoutOf captures the layout of a finalized type.
func LayoutOf(ext *exttypes.ExtensionType) *Layout {
	l := &Layout{
		ID:     ext.ID,
		Name:   ext.Name,
		Parent: ext.ParentName(),
		Mode:   ext.Mode,
		Size:   ext.Size,
		Align:  ext.Align,
	}
	for _, a := range ext.Attributes {
		l.Fields = append(l.Fields, Field{
			Name:   a.Name,
			Type:   a.Type.String(),
			Kind:   a.Kind().String(),
			Offset: a.Offset,
			Owner:  a.Owner,
			Origin: a.Origin.String(),
		})
	}
	if ext.VTableType != nil {
		for _, s := range ext.VTableType.Slots {
			l.Slots = append(l.Slots, Slot{Index: s.Index, Name: s.Name, Signature: s.Signature.String(), Owner: s.Owner})
		}
	}
	return l
}

const schema = `
CREATE TABLE IF NOT EXISTS extension_types (
	name   TEXT PRIMARY KEY,
	id     TEXT NOT NULL,
	parent TEXT NOT NULL,
	mode   TEXT NOT NULL,
	size   INTEGER NOT NULL,
	align  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS attributes (
	type_name TEXT NOT NULL REFERENCES extension_types(name) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	byte_offset INTEGER NOT NULL,
	owner     TEXT NOT NULL,
	origin    TEXT NOT NULL,
	PRIMARY KEY (type_name, name)
);
CREATE TABLE IF NOT EXISTS slots (
	type_name TEXT NOT NULL REFERENCES extension_types(name) ON DELETE CASCADE,
	idx       INTEGER NOT NULL,
	name      TEXT NOT NULL,
	signature TEXT NOT NULL,
	owner     TEXT NOT NULL,
	PRIMARY KEY (type_name, idx)
);`

// Store is a SQLite database of layouts.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// foreign_keys is per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores the layout of ext, replacing any layout with the same name.
func (s *Store) Save(ext *exttypes.ExtensionType) error {
	if !ext.Finalized() {
		return fmt.Errorf("extension type %s is not finalized", ext.Name)
	}
	return s.SaveLayout(LayoutOf(ext))
}

// SaveLayout stores l in one transaction.
func (s *Store) SaveLayout(l *Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("saving %s: %w", l.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM extension_types WHERE name = ?", l.Name); err != nil {
		return fmt.Errorf("replacing %s: %w", l.Name, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO extension_types (name, id, parent, mode, size, align) VALUES (?, ?, ?, ?, ?, ?)",
		l.Name, l.ID.String(), l.Parent, l.Mode, l.Size, l.Align,
	); err != nil {
		return fmt.Errorf("saving %s: %w", l.Name, err)
	}
	for _, f := range l.Fields {
		if _, err := tx.Exec(
			"INSERT INTO attributes (type_name, name, type, kind, byte_offset, owner, origin) VALUES (?, ?, ?, ?, ?, ?, ?)",
			l.Name, f.Name, f.Type, f.Kind, f.Offset, f.Owner, f.Origin,
		); err != nil {
			return fmt.Errorf("saving %s.%s: %w", l.Name, f.Name, err)
		}
	}
	for _, sl := range l.Slots {
		if _, err := tx.Exec(
			"INSERT INTO slots (type_name, idx, name, signature, owner) VALUES (?, ?, ?, ?, ?)",
			l.Name, sl.Index, sl.Name, sl.Signature, sl.Owner,
		); err != nil {
			return fmt.Errorf("saving %s slot %d: %w", l.Name, sl.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving %s: %w", l.Name, err)
	}
	log.Debugf("stored %s in %s", l.Name, s.path)
	return nil
}

// Load retrieves the layout stored under name.
func (s *Store) Load(name string) (*Layout, error) {
	l := &Layout{Name: name}
	var id string
	err := s.db.QueryRow(
		"SELECT id, parent, mode, size, align FROM extension_types WHERE name = ?", name,
	).Scan(&id, &l.Parent, &l.Mode, &l.Size, &l.Align)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", name, ErrLayoutNotFound)
		}
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	if l.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("layout %s has a malformed id: %w", name, err)
	}

	rows, err := s.db.Query(
		"SELECT name, type, kind, byte_offset, owner, origin FROM attributes WHERE type_name = ? ORDER BY byte_offset, name", name)
	if err != nil {
		return nil, fmt.Errorf("querying fields of %s: %w", name, err)
	}
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.Name, &f.Type, &f.Kind, &f.Offset, &f.Owner, &f.Origin); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning field: %w", err)
		}
		l.Fields = append(l.Fields, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query("SELECT idx, name, signature, owner FROM slots WHERE type_name = ? ORDER BY idx", name)
	if err != nil {
		return nil, fmt.Errorf("querying slots of %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var sl Slot
		if err := rows.Scan(&sl.Index, &sl.Name, &sl.Signature, &sl.Owner); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		l.Slots = append(l.Slots, sl)
	}
	return l, rows.Err()
}

// List returns the names of all stored layouts, sorted.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM extension_types ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing layouts: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a layout. Deleting a missing layout is not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM extension_types WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}
