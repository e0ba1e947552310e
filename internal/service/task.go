package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-cli/internal/model"
	"github.com/BuzzLyutic/todo-cli/internal/repo"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrDuplicateTask = errors.New("duplicate task")
	ErrPattern       = errors.New("invalid search pattern")
)

// TaskService runs every operation as one locked load -> mutate -> save cycle.
// Nothing is cached between calls.
type TaskService struct {
	store  repo.Store
	locker repo.Locker
	logger *zap.Logger
	now    func() time.Time
}

func NewTaskService(store repo.Store, locker repo.Locker, logger *zap.Logger) *TaskService {
	if locker == nil {
		locker = repo.NopLocker{}
	}
	return &TaskService{
		store:  store,
		locker: locker,
		logger: logger,
		now: func() time.Time {
			// stored timestamps carry microseconds
			return time.Now().Truncate(time.Microsecond)
		},
	}
}

// Create adds an incomplete task. A task with the same title and status
// already present makes it a no-op returning ErrDuplicateTask.
func (s *TaskService) Create(ctx context.Context, title string) (model.Task, error) {
	if err := validateTitle(title); err != nil {
		return model.Task{}, err
	}

	var created model.Task
	err := s.update(ctx, func(c *repo.Collection) error {
		for t := range c.All() {
			if t.Title == title && t.Status == model.StatusIncomplete {
				return fmt.Errorf("%w: %q is already %s", ErrDuplicateTask, title, t.Status)
			}
		}

		created = model.Task{
			ID:        NextID(c),
			Title:     title,
			Status:    model.StatusIncomplete,
			CreatedAt: s.now(),
		}
		c.Put(created)
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("task created", zap.String("id", created.ID), zap.String("title", created.Title))
	return created, nil
}

func (s *TaskService) Rename(ctx context.Context, id, title string) (model.Task, error) {
	if err := validateTitle(title); err != nil {
		return model.Task{}, err
	}

	var renamed model.Task
	err := s.update(ctx, func(c *repo.Collection) error {
		t, ok := c.Get(id)
		if !ok {
			return notFound(id)
		}
		t.Title = title
		c.Put(t)
		renamed = t
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("task renamed", zap.String("id", id), zap.String("title", title))
	return renamed, nil
}

// Complete marks a task complete. Completing again moves CompletedAt forward.
func (s *TaskService) Complete(ctx context.Context, id string) (model.Task, error) {
	var completed model.Task
	err := s.update(ctx, func(c *repo.Collection) error {
		t, ok := c.Get(id)
		if !ok {
			return notFound(id)
		}
		t.Status = model.StatusComplete
		t.CompletedAt = s.now()
		c.Put(t)
		completed = t
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("task completed", zap.String("id", id))
	return completed, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	err := s.update(ctx, func(c *repo.Collection) error {
		if !c.Delete(id) {
			return notFound(id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("task deleted", zap.String("id", id))
	return nil
}

func (s *TaskService) Get(ctx context.Context, id string) (model.Task, error) {
	c, err := s.view(ctx)
	if err != nil {
		return model.Task{}, err
	}
	t, ok := c.Get(id)
	if !ok {
		return model.Task{}, notFound(id)
	}
	return t, nil
}

// List yields tasks matching filter in store order.
func (s *TaskService) List(ctx context.Context, filter model.TaskFilter) (iter.Seq[model.Task], error) {
	c, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return func(yield func(model.Task) bool) {
		for t := range c.All() {
			if filter.Match(t) && !yield(t) {
				return
			}
		}
	}, nil
}

// Search yields tasks whose title contains a match for pattern. The pattern
// is compiled before the store is touched.
func (s *TaskService) Search(ctx context.Context, pattern string) (iter.Seq[model.Task], error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPattern, err)
	}

	c, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return func(yield func(model.Task) bool) {
		for t := range c.All() {
			if re.MatchString(t.Title) && !yield(t) {
				return
			}
		}
	}, nil
}

// update saves only when fn succeeds, so a rejected operation leaves the
// store untouched.
func (s *TaskService) update(ctx context.Context, fn func(c *repo.Collection) error) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	c, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Debug("load tasks", zap.Error(err))
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	if err := s.store.Save(ctx, c); err != nil {
		s.logger.Debug("save tasks", zap.Error(err))
		return err
	}
	return nil
}

func (s *TaskService) view(ctx context.Context) (*repo.Collection, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Debug("load tasks", zap.Error(err))
		return nil, err
	}
	return c, nil
}

func notFound(id string) error {
	return fmt.Errorf("task %s: %w", id, repo.ErrorNotFound)
}

func validateTitle(title string) error {
	switch {
	case strings.TrimSpace(title) == "":
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	case strings.ContainsRune(title, '\r'):
		return fmt.Errorf("%w: title must not contain a carriage return", ErrValidation)
	}
	return nil
}
