package repository

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/atinyakov/GTDKeeper/internal/models"
)

// FileTaskRepository stores each account's data set in its own
// data_<username>.json file. Writers to the same account are serialized;
// different accounts never contend.
type FileTaskRepository struct {
	dir   string
	locks sync.Map // username -> *sync.Mutex
}

// NewFileTaskRepository stores data sets under dir.
func NewFileTaskRepository(dir string) *FileTaskRepository {
	return &FileTaskRepository{dir: dir}
}

// dataPath escapes the username so it can never leave dir.
func (r *FileTaskRepository) dataPath(username string) string {
	return filepath.Join(r.dir, "data_"+url.PathEscape(username)+".json")
}

func (r *FileTaskRepository) lock(username string) func() {
	v, _ := r.locks.LoadOrStore(username, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (r *FileTaskRepository) read(username string) (*models.AccountData, error) {
	d := models.NewAccountData()
	if _, err := readJSON(r.dataPath(username), d); err != nil {
		return nil, err
	}
	d.Normalize()
	return d, nil
}

// Load returns the account's data set, or an empty one.
func (r *FileTaskRepository) Load(_ context.Context, username string) (*models.AccountData, error) {
	unlock := r.lock(username)
	defer unlock()
	return r.read(username)
}

// Update applies fn under the account's lock and saves the result.
func (r *FileTaskRepository) Update(_ context.Context, username string, fn func(*models.AccountData) error) error {
	unlock := r.lock(username)
	defer unlock()

	d, err := r.read(username)
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	return writeJSON(r.dataPath(username), d)
}

// Delete removes the account's data file.
func (r *FileTaskRepository) Delete(_ context.Context, username string) error {
	unlock := r.lock(username)
	defer unlock()

	err := os.Remove(r.dataPath(username))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
