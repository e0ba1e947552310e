package repo

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/todo-cli/internal/model"
)

func sampleCollection() *Collection {
	created := time.Date(2024, 5, 1, 9, 30, 0, 250000000, time.Local)
	done := created.Add(90 * time.Minute)

	c := NewCollection()
	c.Put(model.Task{ID: "1", Title: "Buy milk", Status: model.StatusIncomplete, CreatedAt: created})
	c.Put(model.Task{ID: "3", Title: "Call mom, then dad", Status: model.StatusComplete, CreatedAt: created.Add(time.Second), CompletedAt: done})
	c.Put(model.Task{ID: "2", Title: `Quote "this"`, Status: model.StatusIncomplete, CreatedAt: created.Add(2 * time.Second)})
	return c
}

// assertSameCollection compares order and field values; times compare by instant.
func assertSameCollection(t *testing.T, want, got *Collection) {
	t.Helper()

	wantTasks := slices.Collect(want.All())
	gotTasks := slices.Collect(got.All())
	require.Len(t, gotTasks, len(wantTasks))

	for i := range wantTasks {
		w, g := wantTasks[i], gotTasks[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Title, g.Title)
		assert.Equal(t, w.Status, g.Status)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "created at for %s: want %v, got %v", w.ID, w.CreatedAt, g.CreatedAt)
		assert.True(t, w.CompletedAt.Equal(g.CompletedAt), "completed at for %s: want %v, got %v", w.ID, w.CompletedAt, g.CompletedAt)
	}
}
