package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Codec turns a document into bytes and back.
type Codec struct {
	Name      string
	Marshal   func(v any) ([]byte, error)
	Unmarshal func(data []byte, v any) error
}

var (
	YAMLCodec = Codec{
		Name:      "yaml",
		Marshal:   yaml.Marshal,
		Unmarshal: yaml.Unmarshal,
	}
	TOMLCodec = Codec{
		Name: "toml",
		Marshal: func(v any) ([]byte, error) {
			var buf bytes.Buffer
			if err := toml.NewEncoder(&buf).Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Unmarshal: func(data []byte, v any) error {
			_, err := toml.Decode(string(data), v)
			return err
		},
	}
)

type document struct {
	Tasks []record `yaml:"tasks" toml:"tasks"`
}

// DocumentStore keeps the whole collection as a single structured document
// (YAML or TOML) instead of CSV rows.
type DocumentStore struct {
	path  string
	codec Codec
}

func NewDocumentStore(path string, codec Codec) *DocumentStore {
	return &DocumentStore{path: path, codec: codec}
}

func (s *DocumentStore) Load(ctx context.Context) (*Collection, error) {
	data, err := os.ReadFile(s.path)
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

	var doc document
	if err := s.codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrorMalformedRecord, s.path, err)
	}

	c := NewCollection()
	for i, rec := range doc.Tasks {
		t, err := rec.task()
		if err != nil {
			return nil, fmt.Errorf("%s: task %d: %w", s.path, i+1, err)
		}
		if err := c.insert(t); err != nil {
			return nil, fmt.Errorf("%s: task %d: %w", s.path, i+1, err)
		}
	}
	return c, nil
}

func (s *DocumentStore) Save(_ context.Context, c *Collection) error {
	doc := document{Tasks: make([]record, 0, c.Len())}
	for t := range c.All() {
		doc.Tasks = append(doc.Tasks, newRecord(t))
	}

	data, err := s.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.codec.Name, err)
	}
	return writeFileAtomic(s.path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
