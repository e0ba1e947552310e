package repo

import (
	"fmt"
	"strconv"

	"github.com/BuzzLyutic/todo-cli/internal/model"
)

// Header is the first row of the CSV file.
var Header = []string{"ID", "Title", "Created At", "Completed At", "Status"}

// record is the flat, all-text form of a task shared by every backend.
type record struct {
	ID          string `yaml:"id" toml:"id"`
	Title       string `yaml:"title" toml:"title"`
	CreatedAt   string `yaml:"created_at" toml:"created_at"`
	CompletedAt string `yaml:"completed_at" toml:"completed_at"`
	Status      string `yaml:"status" toml:"status"`
}

func newRecord(t model.Task) record {
	return record{
		ID:          t.ID,
		Title:       t.Title,
		CreatedAt:   model.FormatTime(t.CreatedAt),
		CompletedAt: model.FormatTime(t.CompletedAt),
		Status:      string(t.Status),
	}
}

func recordFromFields(fields []string) (record, error) {
	if len(fields) != len(Header) {
		return record{}, fmt.Errorf("%w: expected %d fields, got %d", ErrorMalformedRecord, len(Header), len(fields))
	}
	return record{
		ID:          fields[0],
		Title:       fields[1],
		CreatedAt:   fields[2],
		CompletedAt: fields[3],
		Status:      fields[4],
	}, nil
}

func (r record) fields() []string {
	return []string{r.ID, r.Title, r.CreatedAt, r.CompletedAt, r.Status}
}

func (r record) task() (model.Task, error) {
	if !validID(r.ID) {
		return model.Task{}, fmt.Errorf("%w: invalid id %q", ErrorMalformedRecord, r.ID)
	}
	status, err := model.ParseStatus(r.Status)
	if err != nil {
		return model.Task{}, fmt.Errorf("%w: id %s: %v", ErrorMalformedRecord, r.ID, err)
	}
	created, err := model.ParseTime(r.CreatedAt)
	if err != nil || created.IsZero() {
		return model.Task{}, fmt.Errorf("%w: id %s: bad created at %q", ErrorMalformedRecord, r.ID, r.CreatedAt)
	}
	completed, err := model.ParseTime(r.CompletedAt)
	if err != nil {
		return model.Task{}, fmt.Errorf("%w: id %s: bad completed at %q", ErrorMalformedRecord, r.ID, r.CompletedAt)
	}

	t := model.Task{
		ID:          r.ID,
		Title:       r.Title,
		Status:      status,
		CreatedAt:   created,
		CompletedAt: completed,
	}
	if err := t.Validate(); err != nil {
		return model.Task{}, fmt.Errorf("%w: %v", ErrorMalformedRecord, err)
	}
	return t, nil
}

// validID reports whether s is the canonical decimal form of a positive int.
func validID(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0 && strconv.Itoa(n) == s
}
