package storage

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/pqgram"
	"github.com/dgallion1/pqgram/internal/tree"
)

// StoredProfile is a profile with its metadata. Profile and Labels are only
// populated by the loading queries (Get, ListShape).
type StoredProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	P           int       `json:"p"`
	Q           int       `json:"q"`
	LeafGrams   bool      `json:"leaf_grams"`
	GramCount   int       `json:"gram_count"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	Profile *pqgram.Profile[int64] `json:"-"`
	Labels  tree.LabelMap[int64]   `json:"-"`
}

// ProfileRepo handles profile persistence.
type ProfileRepo struct {
	db *DB
}

// NewProfileRepo creates a new profile repository.
func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Save stores sp. A missing ID is filled in with a new UUID, and shape
// fields are taken from sp.Profile.
func (r *ProfileRepo) Save(sp *StoredProfile) error {
	if sp.Profile.Len() == 0 {
		return errs.New(errs.CodeInvalidInput, "profile %q has no grams", sp.Name)
	}
	blob, err := encodeGrams(sp.Profile)
	if err != nil {
		return err
	}
	labels := sp.Labels
	if labels == nil {
		labels = tree.LabelMap[int64]{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now().UTC()
	}
	sp.P, sp.Q, sp.LeafGrams = sp.Profile.P(), sp.Profile.Q(), sp.Profile.LeafGrams()
	sp.GramCount = sp.Profile.Len()

	_, err = r.db.conn.Exec(
		`INSERT INTO profiles (id, name, source, p, q, leaf_grams, gram_count, grams, content_hash, labels_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.Name, sp.Source, sp.P, sp.Q, sp.LeafGrams, sp.GramCount, blob, sp.ContentHash, string(labelsJSON), sp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

const metaColumns = `id, name, source, p, q, leaf_grams, gram_count, content_hash, created_at`

// List returns metadata for all profiles, newest first.
func (r *ProfileRepo) List() ([]StoredProfile, error) {
	rows, err := r.db.conn.Query(`SELECT ` + metaColumns + ` FROM profiles ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []StoredProfile
	for rows.Next() {
		var sp StoredProfile
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Source, &sp.P, &sp.Q, &sp.LeafGrams, &sp.GramCount, &sp.ContentHash, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// Get loads one profile with its grams and label map.
func (r *ProfileRepo) Get(id string) (*StoredProfile, error) {
	row := r.db.conn.QueryRow(`SELECT `+metaColumns+`, grams, labels_json FROM profiles WHERE id = ?`, id)
	sp, err := scanFull(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.CodeNotFound, "profile %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return sp, nil
}

// ListShape loads every profile of the given shape, oldest first, so the
// order is stable as profiles are added.
func (r *ProfileRepo) ListShape(p, q int, leafGrams bool) ([]*StoredProfile, error) {
	rows, err := r.db.conn.Query(
		`SELECT `+metaColumns+`, grams, labels_json FROM profiles
		 WHERE p = ? AND q = ? AND leaf_grams = ?
		 ORDER BY created_at, id`, p, q, leafGrams)
	if err != nil {
		return nil, fmt.Errorf("list profiles by shape: %w", err)
	}
	defer rows.Close()

	var out []*StoredProfile
	for rows.Next() {
		sp, err := scanFull(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// FindByHash returns the ids of profiles extracted from content with the
// given hash and shape.
func (r *ProfileRepo) FindByHash(hash string, p, q int, leafGrams bool) ([]string, error) {
	rows, err := r.db.conn.Query(
		`SELECT id FROM profiles WHERE content_hash = ? AND p = ? AND q = ? AND leaf_grams = ? ORDER BY created_at, id`,
		hash, p, q, leafGrams)
	if err != nil {
		return nil, fmt.Errorf("find profiles by hash: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a profile by ID.
func (r *ProfileRepo) Delete(id string) error {
	res, err := r.db.conn.Exec("DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n == 0 {
		return errs.New(errs.CodeNotFound, "profile %s not found", id)
	}
	return nil
}

// Count returns the number of stored profiles.
func (r *ProfileRepo) Count() (int, error) {
	var n int
	if err := r.db.conn.QueryRow("SELECT COUNT(*) FROM profiles").Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFull(s scanner) (*StoredProfile, error) {
	var (
		sp         StoredProfile
		blob       []byte
		labelsJSON string
	)
	if err := s.Scan(&sp.ID, &sp.Name, &sp.Source, &sp.P, &sp.Q, &sp.LeafGrams, &sp.GramCount, &sp.ContentHash, &sp.CreatedAt, &blob, &labelsJSON); err != nil {
		return nil, err
	}
	prof, err := decodeGrams(blob, sp.P, sp.Q, sp.LeafGrams)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", sp.ID, err)
	}
	sp.Profile = prof
	if err := json.Unmarshal([]byte(labelsJSON), &sp.Labels); err != nil {
		return nil, fmt.Errorf("profile %s labels: %w", sp.ID, err)
	}
	return &sp, nil
}

// encodeGrams flattens the profile with pqgram.FillerValue and packs the
// labels as little-endian int64s, gram after gram.
func encodeGrams(p *pqgram.Profile[int64]) ([]byte, error) {
	flat, err := p.Flatten(pqgram.FillerValue)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(flat)*(p.P()+p.Q())*8)
	for _, g := range flat {
		for _, l := range g {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(l))
		}
	}
	return buf, nil
}

func decodeGrams(blob []byte, p, q int, leafGrams bool) (*pqgram.Profile[int64], error) {
	width := (p + q) * 8
	if width == 0 || len(blob)%width != 0 {
		return nil, errs.New(errs.CodeMalformedInput, "gram blob of %d bytes does not fit p=%d q=%d", len(blob), p, q)
	}
	flat := make([][]int64, len(blob)/width)
	for i := range flat {
		g := make([]int64, p+q)
		for j := range g {
			off := i*width + j*8
			g[j] = int64(binary.LittleEndian.Uint64(blob[off : off+8]))
		}
		flat[i] = g
	}
	return pqgram.FromFlat(p, q, leafGrams, flat, pqgram.FillerValue)
}

// Ping checks that the underlying database is reachable.
func (r *ProfileRepo) Ping() error {
	return r.db.Ping()
}
