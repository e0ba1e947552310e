package repo

import (
	"fmt"
	"iter"
	"slices"

	"github.com/BuzzLyutic/todo-cli/internal/model"
)

// Collection is the in-memory task set. Iteration follows insertion order so
// a load/save round trip keeps the file stable.
type Collection struct {
	order []string
	byID  map[string]model.Task
}

func NewCollection() *Collection {
	return &Collection{byID: make(map[string]model.Task)}
}

func (c *Collection) Len() int { return len(c.order) }

func (c *Collection) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Collection) Get(id string) (model.Task, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Put replaces an existing task in place or appends a new one.
func (c *Collection) Put(t model.Task) {
	if !c.Has(t.ID) {
		c.order = append(c.order, t.ID)
	}
	c.byID[t.ID] = t
}

func (c *Collection) Delete(id string) bool {
	if !c.Has(id) {
		return false
	}
	delete(c.byID, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
	return true
}

func (c *Collection) All() iter.Seq[model.Task] {
	return func(yield func(model.Task) bool) {
		for _, id := range c.order {
			if !yield(c.byID[id]) {
				return
			}
		}
	}
}

// insert is used by loaders, which must reject a second row with the same id.
func (c *Collection) insert(t model.Task) error {
	if c.Has(t.ID) {
		return fmt.Errorf("%w: duplicate id %s", ErrorMalformedRecord, t.ID)
	}
	c.Put(t)
	return nil
}
