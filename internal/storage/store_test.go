// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jeranaias/letterscribe/internal/config"
	"github.com/jeranaias/letterscribe/internal/model"
)

// backends runs every contract test against both implementations.
var backends = []struct {
	name string
	open func(t *testing.T) Store
}{
	{"json", func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		return s
	}},
	{"sqlite", func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), SQLiteFileName), nil)
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

func sampleSession(title, patient string) *model.Session {
	s := model.NewSession("llama3.1:8b")
	s.Title = title
	s.PatientName = patient
	s.AddMessage(model.NewUserMessage("R shoulder pain, 3/52, improved with rest"))
	s.AddMessage(model.NewLetterMessage("Dear Colleague,\n\nThank you for seeing ..."))
	s.AddMessage(model.NewQuestionsMessage("1. Which activities aggravate it?", []string{"Which activities aggravate it?"}))
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			sess := sampleSession("Shoulder referral", "Jane Doe")

			before := time.Now()
			res := store.Save(sess)
			if !res.Success {
				t.Fatalf("Save() failed: %v", res.Err)
			}
			if res.ID == "" || sess.ID != res.ID {
				t.Fatalf("Save() ID = %q, session ID = %q", res.ID, sess.ID)
			}
			if sess.SavedAt.Before(before) {
				t.Errorf("SavedAt = %v, want >= %v", sess.SavedAt, before)
			}

			loaded, err := store.Load(res.ID)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if diff := cmp.Diff(sess, loaded); diff != "" {
				t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
			}
		})
	}
}

func TestSaveRefreshesSavedAtAndOverwrites(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			sess := sampleSession("", "Jane Doe")
			first := store.Save(sess)
			firstSaved := sess.SavedAt

			time.Sleep(2 * time.Millisecond)
			sess.Title = "Updated"
			second := store.Save(sess)

			if first.ID != second.ID {
				t.Errorf("ID changed on resave: %q -> %q", first.ID, second.ID)
			}
			if !sess.SavedAt.After(firstSaved) {
				t.Error("SavedAt was not refreshed")
			}
			loaded, err := store.Load(first.ID)
			if err != nil {
				t.Fatal(err)
			}
			if loaded.Title != "Updated" {
				t.Errorf("Title = %q, want %q", loaded.Title, "Updated")
			}
		})
	}
}

func TestLoadNotFound(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			_, err := store.Load("does-not-exist")
			if !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Load() error = %v, want ErrSessionNotFound", err)
			}
			if errors.Is(err, ErrPersistence) {
				t.Error("not-found must not match ErrPersistence")
			}
		})
	}
}

func TestListNewestFirstAndDelete(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)

			var ids []string
			for _, title := range []string{"first", "second", "third"} {
				res := store.Save(sampleSession(title, ""))
				if !res.Success {
					t.Fatal(res.Err)
				}
				ids = append(ids, res.ID)
				time.Sleep(2 * time.Millisecond)
			}

			list, err := store.List()
			if err != nil {
				t.Fatal(err)
			}
			var titles []string
			for _, s := range list {
				titles = append(titles, s.Title)
			}
			if diff := cmp.Diff([]string{"third", "second", "first"}, titles); diff != "" {
				t.Errorf("List() order mismatch (-want +got):\n%s", diff)
			}
			if list[0].MessageCount != 3 {
				t.Errorf("MessageCount = %d, want 3", list[0].MessageCount)
			}

			if !store.Delete(ids[1]) {
				t.Fatal("Delete() = false, want true")
			}
			if store.Delete(ids[1]) {
				t.Error("second Delete() = true, want false")
			}

			list, _ = store.List()
			for _, s := range list {
				if s.ID == ids[1] {
					t.Errorf("List() still contains deleted session %s", ids[1])
				}
			}
			if len(list) != 2 {
				t.Errorf("len(List()) = %d, want 2", len(list))
			}
		})
	}
}

func TestCleanup(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)

			titled := store.Save(sampleSession("Knee referral", "")).ID
			named := store.Save(sampleSession("", "John Smith")).ID
			both := store.Save(sampleSession("Back pain", "Ann Lee")).ID
			empty := store.Save(model.NewSession("m")).ID
			// Data-loss case: a full conversation with no title and no patient
			// name is still removed.
			anonymousWithHistory := store.Save(sampleSession("", "")).ID

			removed, err := store.Cleanup()
			if err != nil {
				t.Fatal(err)
			}
			if removed != 2 {
				t.Errorf("Cleanup() removed %d, want 2", removed)
			}

			for _, id := range []string{titled, named, both} {
				if _, err := store.Load(id); err != nil {
					t.Errorf("session %s should be retained: %v", id, err)
				}
			}
			for _, id := range []string{empty, anonymousWithHistory} {
				if _, err := store.Load(id); !errors.Is(err, ErrSessionNotFound) {
					t.Errorf("session %s should be removed, Load() error = %v", id, err)
				}
			}
		})
	}
}

func TestFileStoreSaveFailureIsStructured(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Replace the directory with a file so writes fail.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	res := store.Save(sampleSession("t", ""))
	if res.Success {
		t.Fatal("Save() succeeded, want failure")
	}
	if res.ID == "" {
		t.Error("failed SaveResult should still carry the assigned ID")
	}
	if !errors.Is(res.Err, ErrPersistence) {
		t.Errorf("Err = %v, want ErrPersistence", res.Err)
	}
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("../config"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load(../config) error = %v, want ErrSessionNotFound", err)
	}
	if store.Delete("../config") {
		t.Error("Delete(../config) = true")
	}
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	store.Save(sampleSession("ok", ""))
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	list, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("len(List()) = %d, want 1", len(list))
	}
	if _, err := store.Load("broken"); !errors.Is(err, ErrPersistence) {
		t.Errorf("Load(broken) error = %v, want ErrPersistence", err)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.StorageConfig{Backend: "sqlite", Dir: dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("Open(sqlite) = %T", s)
	}
	if _, err := os.Stat(filepath.Join(dir, SQLiteFileName)); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	f, err := Open(config.StorageConfig{Backend: "json", Dir: dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.(*FileStore); !ok {
		t.Errorf("Open(json) = %T", f)
	}

	if _, err := Open(config.StorageConfig{Backend: "mongo", Dir: dir}, nil); err == nil {
		t.Error("Open(mongo) should fail")
	}
}
