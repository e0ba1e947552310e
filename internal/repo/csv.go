package repo

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// CSVStore keeps tasks in a comma separated file with a header row.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string { return s.path }

// Load reads every row after the header. A missing file is created with just
// the header and loads as an empty collection.
func (s *CSVStore) Load(ctx context.Context) (*Collection, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		c := NewCollection()
		if err := s.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("initialize %s: %w", s.path, err)
		}
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	c := NewCollection()
	for header := true; ; header = false {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrorMalformedRecord, s.path, err)
		}
		if header {
			continue
		}

		line, _ := r.FieldPos(0)
		rec, err := recordFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.path, line, err)
		}
		t, err := rec.task()
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.path, line, err)
		}
		if err := c.insert(t); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.path, line, err)
		}
	}
	return c, nil
}

// Save refuses titles with a carriage return: csv.Reader drops the \r of a
// quoted \r\n, so such a title would not load back unchanged.
func (s *CSVStore) Save(_ context.Context, c *Collection) error {
	rows := make([][]string, 0, c.Len())
	for t := range c.All() {
		if strings.ContainsRune(t.Title, '\r') {
			return fmt.Errorf("task %s: title contains a carriage return", t.ID)
		}
		rows = append(rows, newRecord(t).fields())
	}

	return writeFileAtomic(s.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(Header); err != nil {
			return err
		}
		return cw.WriteAll(rows)
	})
}
