package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"qbank-service/internal/domain"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "database.json"))
}

func TestLoadCreatesDefaultDocument(t *testing.T) {
	store := tempStore(t)

	err := store.View(func(doc *domain.Document) error {
		if len(doc.Objectives) != 0 || len(doc.Users) != 0 {
			t.Fatalf("expected empty document, got %+v", doc)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatalf("expected backing file created: %v", err)
	}
}

func TestRoundTripAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store := New(path)

	err := store.Update(func(doc *domain.Document) error {
		doc.Objectives = append(doc.Objectives, domain.Objective{ID: "obj1", Name: "VSD"})
		doc.Questions = append(doc.Questions, domain.Question{
			ID:            "q1",
			ObjectiveID:   "obj1",
			Text:          "Pick one",
			Options:       map[string]string{"A": "yes", "B": "no"},
			CorrectAnswer: "A",
			Explanation:   "because",
		})
		doc.Users["alice"] = domain.Account{Points: 20, Level: 1, Badges: []string{}, CompletedObjectives: map[string]domain.ObjectiveResult{}}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var first, second domain.Document
	if err := store.View(func(doc *domain.Document) error { first = *doc; return nil }); err != nil {
		t.Fatalf("view: %v", err)
	}
	fresh := New(path)
	if err := fresh.View(func(doc *domain.Document) error { second = *doc; return nil }); err != nil {
		t.Fatalf("fresh view: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", first, second)
	}
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := New(path)

	err := store.View(func(*domain.Document) error { return nil })
	if err == nil {
		t.Fatalf("expected error for malformed file")
	}
	if domain.KindOf(err) != domain.KindMalformedData {
		t.Fatalf("expected malformed_data kind, got %v", domain.KindOf(err))
	}
}

func TestFailedUpdateDoesNotPersist(t *testing.T) {
	store := tempStore(t)
	boom := domain.Invalid("boom")

	err := store.Update(func(doc *domain.Document) error {
		doc.Users["ghost"] = domain.Account{}
		return boom
	})
	if err != boom {
		t.Fatalf("expected fn error back, got %v", err)
	}

	fresh := New(store.Path())
	_ = fresh.View(func(doc *domain.Document) error {
		if _, ok := doc.Users["ghost"]; ok {
			t.Fatalf("expected failed update to leave the file untouched")
		}
		return nil
	})
}

func TestNormalizeDropsOrphanedQuestions(t *testing.T) {
	doc := &domain.Document{
		Objectives: []domain.Objective{{ID: "obj1"}},
		Questions: []domain.Question{
			{ID: "q1", ObjectiveID: "obj1"},
			{ID: "q2", ObjectiveID: "missing"},
			{ID: "q3", ObjectiveID: ""},
		},
	}
	Normalize(doc)

	if len(doc.Questions) != 1 || doc.Questions[0].ID != "q1" {
		t.Fatalf("expected only q1 kept, got %+v", doc.Questions)
	}
}

func TestNormalizeLeaderboard(t *testing.T) {
	doc := &domain.Document{
		Leaderboard: []domain.LeaderboardEntry{
			{Username: "bob", TotalPoints: 30},
			{Username: "", TotalPoints: 99},
			{Username: "alice", TotalPoints: 10},
			{Username: "bob", TotalPoints: 50},
			{Username: "carol", TotalPoints: 50},
		},
	}
	Normalize(doc)

	want := []string{"bob", "carol", "alice"}
	if len(doc.Leaderboard) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), doc.Leaderboard)
	}
	for i, username := range want {
		if doc.Leaderboard[i].Username != username {
			t.Fatalf("expected %v at rank %d, got %+v", username, i, doc.Leaderboard)
		}
	}
	if doc.Leaderboard[0].TotalPoints != 50 {
		t.Fatalf("expected duplicate collapsed to higher total, got %+v", doc.Leaderboard[0])
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	doc := &domain.Document{
		Objectives: []domain.Objective{{ID: "obj1"}},
		Questions: []domain.Question{
			{ID: "q1", ObjectiveID: "obj1"},
			{ID: "q2", ObjectiveID: "missing"},
		},
		Leaderboard: []domain.LeaderboardEntry{
			{Username: "bob", TotalPoints: 30},
			{Username: "bob", TotalPoints: 50},
		},
	}
	Normalize(doc)
	once := *doc
	Normalize(doc)
	if !reflect.DeepEqual(once, *doc) {
		t.Fatalf("normalize not idempotent:\n%+v\n%+v", once, *doc)
	}
}

func TestReseedDeepCopies(t *testing.T) {
	store := tempStore(t)
	seed := domain.NewDocument()
	seed.Objectives = append(seed.Objectives, domain.Objective{ID: "obj1", Name: "VSD"})

	if err := store.Reseed(seed); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	seed.Objectives[0].Name = "mutated"

	_ = store.View(func(doc *domain.Document) error {
		if doc.Objectives[0].Name != "VSD" {
			t.Fatalf("expected reseed to deep copy, got %+v", doc.Objectives[0])
		}
		return nil
	})
}

func TestReplaceContentKeepsAccounts(t *testing.T) {
	store := tempStore(t)
	err := store.Update(func(doc *domain.Document) error {
		doc.Users["alice"] = domain.Account{Points: 40, Level: 1}
		doc.Sessions["tok"] = domain.Session{Username: "alice", CreatedAt: time.Now().UTC()}
		doc.Leaderboard = append(doc.Leaderboard, domain.LeaderboardEntry{Username: "alice", TotalPoints: 40})
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	objectives := []domain.Objective{{ID: "obj9", Name: "New"}}
	questions := []domain.Question{
		{ID: "q9", ObjectiveID: "obj9"},
		{ID: "q10", ObjectiveID: "gone"},
	}
	if err := store.ReplaceContent(objectives, questions); err != nil {
		t.Fatalf("replace: %v", err)
	}

	_ = store.View(func(doc *domain.Document) error {
		if len(doc.Objectives) != 1 || doc.Objectives[0].ID != "obj9" {
			t.Fatalf("expected new objectives, got %+v", doc.Objectives)
		}
		if len(doc.Questions) != 1 || doc.Questions[0].ID != "q9" {
			t.Fatalf("expected orphan dropped on import, got %+v", doc.Questions)
		}
		if _, ok := doc.Users["alice"]; !ok {
			t.Fatalf("expected accounts preserved")
		}
		if _, ok := doc.Sessions["tok"]; !ok {
			t.Fatalf("expected sessions preserved")
		}
		return nil
	})
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	store := tempStore(t)
	if err := store.EnsureSchema(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the database file, got %d entries", len(entries))
	}
}
