package service

import (
	"strconv"

	"github.com/BuzzLyutic/todo-cli/internal/repo"
)

// NextID returns the smallest positive integer whose decimal form is not a
// current id. Ids freed by Delete are handed out again.
func NextID(c *repo.Collection) string {
	for n := 1; ; n++ {
		id := strconv.Itoa(n)
		if !c.Has(id) {
			return id
		}
	}
}
