// Package storage owns the persisted JSON document for the question bank.
// The whole document is cached in memory for the life of a Store and every
// mutation is written back atomically before the call returns.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"qbank-service/internal/domain"
)

// DefaultFilename is used when no storage path is configured.
const DefaultFilename = "database.json"

// Store is the single source of truth for the document. All public
// operations run under one mutex, so load-mutate-save is a single critical
// section and concurrent callers never observe a torn document.
type Store struct {
	path string

	mu  sync.Mutex
	doc *domain.Document
}

func New(path string) *Store {
	if path == "" {
		path = DefaultFilename
	}
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// View runs fn against the current document. fn must not retain or mutate
// the document beyond the call.
func (s *Store) View(fn func(doc *domain.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	return fn(doc)
}

// Update runs fn against the current document and, when fn succeeds,
// normalizes and persists the result. A failed fn leaves the file untouched.
func (s *Store) Update(fn func(doc *domain.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	Normalize(doc)
	return s.saveLocked()
}

// EnsureSchema forces a load + normalize + save cycle. Used by the check
// command to repair a hand-edited document.
func (s *Store) EnsureSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	Normalize(doc)
	return s.saveLocked()
}

// Reseed replaces the whole document with a deep copy of seed and persists
// it. Later mutations of seed do not leak into the store.
func (s *Store) Reseed(seed *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied, err := deepCopy(seed)
	if err != nil {
		return err
	}
	Normalize(copied)
	s.doc = copied
	return s.saveLocked()
}

// ReplaceContent swaps the objective and question tables while keeping
// accounts, sessions, and the leaderboard. Used by the question bank import.
func (s *Store) ReplaceContent(objectives []domain.Objective, questions []domain.Question) error {
	return s.Update(func(doc *domain.Document) error {
		doc.Objectives = objectives
		doc.Questions = questions
		return nil
	})
}

func (s *Store) loadLocked() (*domain.Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = domain.NewDocument()
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
		return s.doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	doc := &domain.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, domain.Malformed(fmt.Sprintf("invalid JSON in %s: %v", s.path, err))
	}
	Normalize(doc)
	s.doc = doc
	return s.doc, nil
}

// saveLocked writes the cached document to a sibling temp file and renames
// it over the target, so readers see either the old file or the new one.
func (s *Store) saveLocked() error {
	if s.doc == nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Normalize repairs a document in place so it conforms to the schema. It is
// idempotent and runs on every load and before every save.
func Normalize(doc *domain.Document) {
	if doc.Objectives == nil {
		doc.Objectives = []domain.Objective{}
	}
	if doc.Questions == nil {
		doc.Questions = []domain.Question{}
	}
	if doc.Users == nil {
		doc.Users = map[string]domain.Account{}
	}
	if doc.Leaderboard == nil {
		doc.Leaderboard = []domain.LeaderboardEntry{}
	}
	if doc.Sessions == nil {
		doc.Sessions = map[string]domain.Session{}
	}

	// Drop questions that reference a missing objective.
	objectiveIDs := make(map[string]bool, len(doc.Objectives))
	for _, obj := range doc.Objectives {
		objectiveIDs[obj.ID] = true
	}
	kept := doc.Questions[:0]
	for _, q := range doc.Questions {
		if objectiveIDs[q.ObjectiveID] {
			kept = append(kept, q)
		}
	}
	doc.Questions = kept

	// One leaderboard row per user, keeping the higher total.
	seen := make(map[string]domain.LeaderboardEntry, len(doc.Leaderboard))
	order := make([]string, 0, len(doc.Leaderboard))
	for _, entry := range doc.Leaderboard {
		if entry.Username == "" {
			continue
		}
		prev, ok := seen[entry.Username]
		if !ok {
			seen[entry.Username] = entry
			order = append(order, entry.Username)
			continue
		}
		if entry.TotalPoints > prev.TotalPoints {
			seen[entry.Username] = entry
		}
	}
	deduped := make([]domain.LeaderboardEntry, 0, len(seen))
	for _, username := range order {
		deduped = append(deduped, seen[username])
	}
	SortLeaderboard(deduped)
	doc.Leaderboard = deduped
}

// SortLeaderboard orders entries by total points descending, username
// ascending on ties.
func SortLeaderboard(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].Username < entries[j].Username
	})
}

func deepCopy(doc *domain.Document) (*domain.Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	copied := &domain.Document{}
	if err := json.Unmarshal(data, copied); err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	return copied, nil
}
