package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrichment/internal/filestore"
)

// Entry is one record returned by Store.List. Err is set when the record
// exists but cannot be decoded.
type Entry struct {
	ID  string
	Job *Job
	Err error
}

// Store persists job records.
type Store interface {
	// Put inserts or replaces a job.
	Put(ctx context.Context, job *Job) error
	// Get returns the job, or nil and no error when it does not exist.
	Get(ctx context.Context, id string) (*Job, error)
	// List returns every record, including undecodable ones.
	List(ctx context.Context) ([]Entry, error)
	// Delete removes the job. Deleting a missing job is not an error.
	Delete(ctx context.Context, id string) error
}

const jobsDir = "jobs"

// FileStore keeps one JSON document per job under jobs/.
type FileStore struct {
	files *filestore.Store
}

// NewFileStore creates a FileStore.
func NewFileStore(files *filestore.Store) *FileStore {
	return &FileStore{files: files}
}

func jobPath(id string) string {
	return path.Join(jobsDir, id+".json")
}

func (s *FileStore) Put(_ context.Context, job *Job) error {
	return eris.Wrapf(s.files.WriteJSON(jobPath(job.ID), job), "jobs: write %s", job.ID)
}

func (s *FileStore) Get(_ context.Context, id string) (*Job, error) {
	var j Job
	err := s.files.ReadJSON(jobPath(id), &j)
	if errors.Is(err, filestore.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "jobs: read %s", id)
	}
	return &j, nil
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	names, err := s.files.List(jobsDir)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: list")
	}
	var out []Entry
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "jobs: list")
		}
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		data, err := s.files.ReadFile(path.Join(jobsDir, name))
		if err != nil {
			out = append(out, Entry{ID: id, Err: err})
			continue
		}
		out = append(out, decodeEntry(id, data))
	}
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	return eris.Wrapf(s.files.Remove(jobPath(id)), "jobs: delete %s", id)
}

func decodeEntry(id string, data []byte) Entry {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Entry{ID: id, Err: eris.Wrapf(err, "jobs: decode %s", id)}
	}
	if j.ID == "" {
		return Entry{ID: id, Err: eris.Errorf("jobs: record %s has no id", id)}
	}
	return Entry{ID: id, Job: &j}
}
