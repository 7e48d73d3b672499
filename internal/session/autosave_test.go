// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/letterscribe/internal/model"
	"github.com/jeranaias/letterscribe/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is an in-memory SaveFunc.
type recorder struct {
	mu    sync.Mutex
	saves []*model.Session
	fail  error
}

func (r *recorder) Save(sess *model.Session) storage.SaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return storage.SaveResult{Err: r.fail}
	}
	if sess.ID == "" {
		sess.ID = "generated"
	}
	r.saves = append(r.saves, sess)
	return storage.SaveResult{Success: true, ID: sess.ID}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recorder) setFail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *recorder) last() *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		return nil
	}
	return r.saves[len(r.saves)-1]
}

func newTestSaver(t *testing.T, delay time.Duration) (*Autosaver, *recorder, *model.Session) {
	t.Helper()
	sess := model.NewSession("llama3.1:8b")
	rec := &recorder{}
	var mu sync.Mutex
	snapshot := func() *model.Session {
		mu.Lock()
		defer mu.Unlock()
		return sess.Clone()
	}
	saver := NewAutosaver(snapshot, rec.Save, Options{Delay: delay}, nil)
	t.Cleanup(saver.Stop)
	return saver, rec, sess
}

// =============================================================================
// DEBOUNCE TESTS
// =============================================================================

func TestNewAutosaver_DefaultDelay(t *testing.T) {
	saver := NewAutosaver(func() *model.Session { return nil }, nil, Options{}, nil)
	if saver.Delay() != DefaultDelay {
		t.Errorf("Delay() = %v, want %v", saver.Delay(), DefaultDelay)
	}
	if saver.Dirty() {
		t.Error("new autosaver should not be dirty")
	}
}

func TestAutosaver_OnlySurvivingTimerWrites(t *testing.T) {
	saver, rec, _ := newTestSaver(t, 40*time.Millisecond)

	for i := 0; i < 5; i++ {
		saver.Schedule()
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, saver.Pending())

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, 1, rec.count(), "rescheduled timers must not write")
	assert.False(t, saver.Dirty())
	assert.False(t, saver.Pending())
}

func TestAutosaver_SnapshotIsClone(t *testing.T) {
	saver, rec, sess := newTestSaver(t, time.Hour)

	sess.AddMessage(model.NewUserMessage("R shoulder pain"))
	saver.Schedule()
	res, attempted := saver.Flush()
	require.True(t, attempted)
	require.True(t, res.Success)

	saved := rec.last()
	require.NotNil(t, saved)
	if saved == sess {
		t.Fatal("save received the live session, want a snapshot")
	}
	saved.Messages[0].Content = "mutated"
	if sess.Messages[0].Content != "R shoulder pain" {
		t.Error("mutating the snapshot changed the live session")
	}
}

// =============================================================================
// FLUSH / STOP TESTS
// =============================================================================

func TestAutosaver_FlushWritesWhenDirty(t *testing.T) {
	saver, rec, _ := newTestSaver(t, time.Hour)

	if _, attempted := saver.Flush(); attempted {
		t.Error("Flush on a clean autosaver should not write")
	}

	saver.Schedule()
	res, attempted := saver.Flush()
	require.True(t, attempted)
	assert.True(t, res.Success)
	assert.Equal(t, 1, rec.count())
	assert.False(t, saver.Pending(), "Flush must cancel the timer")

	if _, attempted := saver.Flush(); attempted {
		t.Error("second Flush should find nothing to write")
	}
}

func TestAutosaver_StopCancelsWithoutWriting(t *testing.T) {
	saver, rec, _ := newTestSaver(t, 20*time.Millisecond)

	saver.Schedule()
	saver.Stop()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, rec.count())
	assert.True(t, saver.Dirty(), "Stop leaves unsaved edits dirty")

	saver.Schedule()
	assert.False(t, saver.Pending(), "Schedule after Stop is ignored")
}

func TestAutosaver_SaveNowIgnoresDirtyFlag(t *testing.T) {
	saver, rec, _ := newTestSaver(t, time.Hour)

	res := saver.SaveNow()
	assert.True(t, res.Success)
	assert.Equal(t, "generated", res.ID)
	assert.Equal(t, 1, rec.count())
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestAutosaver_FailedSaveStaysDirty(t *testing.T) {
	sess := model.NewSession("m")
	rec := &recorder{}
	rec.setFail(errors.New("disk full"))

	var mu sync.Mutex
	var reported []error
	saver := NewAutosaver(sess.Clone, rec.Save, Options{
		Delay: time.Hour,
		OnError: func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		},
	}, nil)
	defer saver.Stop()

	saver.Schedule()
	res, attempted := saver.Flush()
	require.True(t, attempted)
	assert.False(t, res.Success)
	assert.True(t, saver.Dirty())

	mu.Lock()
	require.Len(t, reported, 1)
	assert.EqualError(t, reported[0], "disk full")
	mu.Unlock()

	rec.setFail(nil)
	res, attempted = saver.Flush()
	require.True(t, attempted, "dirty autosaver should retry on the next Flush")
	assert.True(t, res.Success)
	assert.False(t, saver.Dirty())
}

func TestAutosaver_OnSaved(t *testing.T) {
	sess := model.NewSession("m")
	rec := &recorder{}
	got := make(chan storage.SaveResult, 1)
	saver := NewAutosaver(sess.Clone, rec.Save, Options{
		Delay:   10 * time.Millisecond,
		OnSaved: func(r storage.SaveResult) { got <- r },
	}, nil)
	defer saver.Stop()

	saver.Schedule()
	select {
	case r := <-got:
		if r.ID != "generated" {
			t.Errorf("OnSaved ID = %q, want %q", r.ID, "generated")
		}
	case <-time.After(time.Second):
		t.Fatal("OnSaved was not called")
	}
}

func TestAutosaver_ConcurrentSchedule(t *testing.T) {
	saver, rec, _ := newTestSaver(t, 30*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saver.Schedule()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return !saver.Dirty() }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}
