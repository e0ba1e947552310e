package cli

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/charmbracelet/lipgloss"

	"github.com/BuzzLyutic/todo-cli/internal/model"
	"github.com/BuzzLyutic/todo-cli/internal/repo"
	"github.com/BuzzLyutic/todo-cli/internal/service"
)

const msgNotFound = "Task not found."

func (a *app) create(title string) operation {
	return func(ctx context.Context, svc *service.TaskService) error {
		_, err := svc.Create(ctx, title)
		if errors.Is(err, service.ErrDuplicateTask) {
			fmt.Fprintf(a.out, "Task with the same title '%s' already exists with the %s status.\n", title, model.StatusIncomplete)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Task created successfully.")
		return nil
	}
}

func (a *app) editTitle(id, title string) operation {
	return func(ctx context.Context, svc *service.TaskService) error {
		_, err := svc.Rename(ctx, id, title)
		return a.report(err, "Task title updated successfully.")
	}
}

func (a *app) markComplete(id string) operation {
	return func(ctx context.Context, svc *service.TaskService) error {
		_, err := svc.Complete(ctx, id)
		return a.report(err, "Task marked as complete.")
	}
}

func (a *app) delete(id string) operation {
	return func(ctx context.Context, svc *service.TaskService) error {
		return a.report(svc.Delete(ctx, id), "Task deleted successfully.")
	}
}

func (a *app) listTasks(filter model.TaskFilter) operation {
	return func(ctx context.Context, svc *service.TaskService) error {
		tasks, err := svc.List(ctx, filter)
		if err != nil {
			return err
		}
		a.printTasks(tasks)
		return nil
	}
}

func (a *app) searchTasks(pattern string) operation {
	return func(ctx context.Context, svc *service.TaskService) error {
		tasks, err := svc.Search(ctx, pattern)
		if err != nil {
			return err
		}
		a.printTasks(tasks)
		return nil
	}
}

// report turns a missing task into ordinary feedback.
func (a *app) report(err error, success string) error {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		fmt.Fprintln(a.out, msgNotFound)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(a.out, success)
	return nil
}

func (a *app) printTasks(tasks iter.Seq[model.Task]) {
	r := lipgloss.NewRenderer(a.out)
	styles := map[model.Status]lipgloss.Style{
		model.StatusComplete:   r.NewStyle().Foreground(lipgloss.Color("2")),
		model.StatusIncomplete: r.NewStyle().Foreground(lipgloss.Color("3")),
	}
	for t := range tasks {
		fmt.Fprintf(a.out, "ID: %s, Title: %s, Status: %s\n", t.ID, t.Title, styles[t.Status].Render(string(t.Status)))
	}
}

func parseListFilter(v string) (model.TaskFilter, error) {
	if v == "all" {
		return model.TaskFilter{}, nil
	}
	status, err := model.ParseStatus(v)
	if err != nil {
		return model.TaskFilter{}, usageErrorf("--%s must be one of all, incomplete, complete (got %q)", flagList, v)
	}
	return model.TaskFilter{Status: &status}, nil
}
