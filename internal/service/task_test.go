package service

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-cli/internal/model"
	"github.com/BuzzLyutic/todo-cli/internal/repo"
)

// MockStore - мок хранилища
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context) (*repo.Collection, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).(*repo.Collection)
	return c, args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, c *repo.Collection) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// countingLocker records lock/unlock pairs and can refuse to lock.
type countingLocker struct {
	locks, unlocks int
	err            error
}

func (l *countingLocker) Lock(context.Context) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks++
	return func() { l.unlocks++ }, nil
}

func collectionOf(tasks ...model.Task) *repo.Collection {
	c := repo.NewCollection()
	for _, t := range tasks {
		c.Put(t)
	}
	return c
}

func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

// newFileService backs the service with a real CSV file.
func newFileService(t *testing.T) (*TaskService, *repo.CSVStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.csv")
	store := repo.NewCSVStore(path)
	s := NewTaskService(store, repo.NewFileLock(path, time.Second), zap.NewNop())
	s.now = fixedClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local))
	return s, store
}

func TestTaskService_Create(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)

	tests := []struct {
		name      string
		title     string
		setupMock func(*MockStore)
		wantErr   error
		wantID    string
	}{
		{
			name:  "first task gets id 1",
			title: "Buy milk",
			setupMock: func(m *MockStore) {
				m.On("Load", mock.Anything).Return(repo.NewCollection(), nil)
				m.On("Save", mock.Anything, mock.MatchedBy(func(c *repo.Collection) bool {
					t, ok := c.Get("1")
					return ok && t.Title == "Buy milk" && t.Status == model.StatusIncomplete && t.CompletedAt.IsZero()
				})).Return(nil)
			},
			wantID: "1",
		},
		{
			name:  "duplicate title and status",
			title: "Buy milk",
			setupMock: func(m *MockStore) {
				m.On("Load", mock.Anything).Return(collectionOf(
					model.Task{ID: "1", Title: "Buy milk", Status: model.StatusIncomplete, CreatedAt: created},
				), nil)
			},
			wantErr: ErrDuplicateTask,
		},
		{
			name:  "same title but complete",
			title: "Buy milk",
			setupMock: func(m *MockStore) {
				m.On("Load", mock.Anything).Return(collectionOf(
					model.Task{ID: "1", Title: "Buy milk", Status: model.StatusComplete, CreatedAt: created, CompletedAt: created},
				), nil)
				m.On("Save", mock.Anything, mock.Anything).Return(nil)
			},
			wantID: "2",
		},
		{
			name:      "validation error - empty title",
			title:     "",
			setupMock: func(m *MockStore) {},
			wantErr:   ErrValidation,
		},
		{
			name:      "validation error - whitespace title",
			title:     "  \t",
			setupMock: func(m *MockStore) {},
			wantErr:   ErrValidation,
		},
		{
			name:      "validation error - carriage return",
			title:     "line1\r\nline2",
			setupMock: func(m *MockStore) {},
			wantErr:   ErrValidation,
		},
		{
			name:  "corrupt store",
			title: "Buy milk",
			setupMock: func(m *MockStore) {
				m.On("Load", mock.Anything).Return(nil, repo.ErrorMalformedRecord)
			},
			wantErr: repo.ErrorMalformedRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(MockStore)
			tt.setupMock(mockStore)
			locker := &countingLocker{}

			service := NewTaskService(mockStore, locker, zap.NewNop())
			result, err := service.Create(context.Background(), tt.title)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				mockStore.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, result.ID)
				assert.False(t, result.CreatedAt.IsZero())
			}

			assert.Equal(t, locker.locks, locker.unlocks, "lock must be released")
			mockStore.AssertExpectations(t)
		})
	}
}

func TestTaskService_NotFound(t *testing.T) {
	ops := map[string]func(*TaskService) error{
		"rename": func(s *TaskService) error {
			_, err := s.Rename(context.Background(), "7", "new")
			return err
		},
		"complete": func(s *TaskService) error {
			_, err := s.Complete(context.Background(), "7")
			return err
		},
		"delete": func(s *TaskService) error {
			return s.Delete(context.Background(), "7")
		},
		"get": func(s *TaskService) error {
			_, err := s.Get(context.Background(), "7")
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			mockStore := new(MockStore)
			mockStore.On("Load", mock.Anything).Return(collectionOf(
				model.Task{ID: "1", Title: "x", Status: model.StatusIncomplete, CreatedAt: time.Now()},
			), nil)
			locker := &countingLocker{}

			err := op(NewTaskService(mockStore, locker, zap.NewNop()))

			assert.ErrorIs(t, err, repo.ErrorNotFound)
			mockStore.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			assert.Equal(t, 1, locker.unlocks)
		})
	}
}

func TestTaskService_Rename(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	mockStore := new(MockStore)
	mockStore.On("Load", mock.Anything).Return(collectionOf(
		model.Task{ID: "1", Title: "Old", Status: model.StatusComplete, CreatedAt: created, CompletedAt: created},
	), nil)
	mockStore.On("Save", mock.Anything, mock.MatchedBy(func(c *repo.Collection) bool {
		t, _ := c.Get("1")
		return t.Title == "New"
	})).Return(nil)

	service := NewTaskService(mockStore, nil, zap.NewNop())
	result, err := service.Rename(context.Background(), "1", "New")

	require.NoError(t, err)
	assert.Equal(t, "New", result.Title)
	assert.Equal(t, model.StatusComplete, result.Status)
	assert.True(t, created.Equal(result.CreatedAt))
	assert.True(t, created.Equal(result.CompletedAt))
	mockStore.AssertExpectations(t)

	_, err = service.Rename(context.Background(), "1", " ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = service.Rename(context.Background(), "1", "New\r\nlines")
	assert.ErrorIs(t, err, ErrValidation)
	mockStore.AssertNumberOfCalls(t, "Save", 1)
}

func TestTaskService_SearchBadPatternSkipsStore(t *testing.T) {
	mockStore := new(MockStore)
	locker := &countingLocker{}

	_, err := NewTaskService(mockStore, locker, zap.NewNop()).Search(context.Background(), "([a-z")

	assert.ErrorIs(t, err, ErrPattern)
	assert.Zero(t, locker.locks)
	mockStore.AssertNotCalled(t, "Load", mock.Anything)
}

func TestTaskService_BusyStoreIsNotTouched(t *testing.T) {
	mockStore := new(MockStore)
	locker := &countingLocker{err: repo.ErrorBusy}
	service := NewTaskService(mockStore, locker, zap.NewNop())

	_, err := service.Create(context.Background(), "Buy milk")
	assert.ErrorIs(t, err, repo.ErrorBusy)

	_, err = service.List(context.Background(), model.TaskFilter{})
	assert.ErrorIs(t, err, repo.ErrorBusy)

	mockStore.AssertNotCalled(t, "Load", mock.Anything)
}

func TestTaskService_SaveErrorIsReturned(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("Load", mock.Anything).Return(repo.NewCollection(), nil)
	mockStore.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	locker := &countingLocker{}

	_, err := NewTaskService(mockStore, locker, zap.NewNop()).Create(context.Background(), "Buy milk")

	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, locker.unlocks)
}

func TestTaskService_Scenario(t *testing.T) {
	service, store := newFileService(t)
	ctx := context.Background()

	task, err := service.Create(ctx, "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, "1", task.ID)
	assert.Equal(t, model.StatusIncomplete, task.Status)

	_, err = service.Create(ctx, "Buy milk")
	assert.ErrorIs(t, err, ErrDuplicateTask)
	c, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	task, err = service.Complete(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, task.Status)
	assert.False(t, task.CompletedAt.IsZero())

	task, err = service.Create(ctx, "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, "2", task.ID)

	require.NoError(t, service.Delete(ctx, "1"))
	c, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("2"))

	task, err = service.Create(ctx, "Walk dog")
	require.NoError(t, err)
	assert.Equal(t, "1", task.ID)
}

func TestTaskService_CompleteTwice(t *testing.T) {
	service, store := newFileService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, "Buy milk")
	require.NoError(t, err)

	first, err := service.Complete(ctx, "1")
	require.NoError(t, err)
	second, err := service.Complete(ctx, "1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusComplete, first.Status)
	assert.Equal(t, model.StatusComplete, second.Status)
	assert.True(t, second.CompletedAt.After(first.CompletedAt))

	c, err := store.Load(ctx)
	require.NoError(t, err)
	stored, _ := c.Get("1")
	assert.True(t, second.CompletedAt.Equal(stored.CompletedAt))
}

func TestTaskService_DeleteRemovesExactlyOne(t *testing.T) {
	service, store := newFileService(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := service.Create(ctx, title)
		require.NoError(t, err)
	}

	require.NoError(t, service.Delete(ctx, "2"))

	c, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Has("2"))

	task, err := service.Create(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, "2", task.ID)
}

func TestTaskService_ListAndSearch(t *testing.T) {
	service, _ := newFileService(t)
	ctx := context.Background()

	for _, title := range []string{"Buy milk", "Walk dog", "Buy bread"} {
		_, err := service.Create(ctx, title)
		require.NoError(t, err)
	}
	_, err := service.Complete(ctx, "2")
	require.NoError(t, err)

	titles := func(seq func(func(model.Task) bool)) []string {
		var out []string
		for t := range seq {
			out = append(out, t.Title)
		}
		return out
	}

	complete := model.StatusComplete
	incomplete := model.StatusIncomplete
	tests := []struct {
		name   string
		filter model.TaskFilter
		want   []string
	}{
		{name: "all", filter: model.TaskFilter{}, want: []string{"Buy milk", "Walk dog", "Buy bread"}},
		{name: "complete", filter: model.TaskFilter{Status: &complete}, want: []string{"Walk dog"}},
		{name: "incomplete", filter: model.TaskFilter{Status: &incomplete}, want: []string{"Buy milk", "Buy bread"}},
	}
	for _, tt := range tests {
		t.Run("list "+tt.name, func(t *testing.T) {
			seq, err := service.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(seq))
		})
	}

	searches := []struct {
		pattern string
		want    []string
	}{
		{pattern: "Buy", want: []string{"Buy milk", "Buy bread"}},
		{pattern: "^W", want: []string{"Walk dog"}},
		{pattern: "(milk|dog)$", want: []string{"Buy milk", "Walk dog"}},
		{pattern: "ea", want: []string{"Buy bread"}},
		{pattern: "cat", want: nil},
	}
	for _, tt := range searches {
		t.Run("search "+tt.pattern, func(t *testing.T) {
			seq, err := service.Search(ctx, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(seq))
		})
	}
}

func TestTaskService_ListEmptyStore(t *testing.T) {
	service, _ := newFileService(t)

	seq, err := service.List(context.Background(), model.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}
