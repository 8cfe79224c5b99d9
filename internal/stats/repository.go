package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"klaxon/pkg/errors"
)

// Repository persists statistics snapshots for the dashboard and across
// restarts.
type Repository interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context) (*Record, error)
}

// FileRepository stores the record as a single JSON file. Writes go through
// a temp file and rename so a crash mid-write never leaves a corrupt
// snapshot behind.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Save(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.ErrPersistence.WithCause(fmt.Errorf("marshal stats: %w", err))
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.ErrPersistence.WithCause(fmt.Errorf("create stats directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return errors.ErrPersistence.WithCause(fmt.Errorf("create temp stats file: %w", err))
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithCause(fmt.Errorf("write stats file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithCause(fmt.Errorf("close stats file: %w", err))
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return errors.ErrPersistence.WithCause(fmt.Errorf("replace stats file: %w", err))
	}

	return nil
}

func (r *FileRepository) Load(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrPersistence.WithCause(fmt.Errorf("read stats file: %w", err))
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.ErrPersistence.WithCause(fmt.Errorf("decode stats file: %w", err))
	}
	if record.PerRule == nil {
		record.PerRule = make(map[string]int64)
	}
	if record.PerChannel == nil {
		record.PerChannel = make(map[string]int64)
	}

	return &record, nil
}

// Path returns the backing file location.
func (r *FileRepository) Path() string {
	return r.path
}
