package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/filex"
)

// FSStore writes images below a root directory on local disk.
type FSStore struct {
	root string
}

// NewFSStore creates root if needed.
func NewFSStore(root string) (*FSStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &FSStore{root: abs}, nil
}

// Root returns the absolute image directory.
func (s *FSStore) Root() string { return s.root }

// Save replaces the user's folder contents with the new image.
func (s *FSStore) Save(ctx context.Context, username string, data []byte) error {
	dir, err := filex.SafeJoin(s.root, username)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear image dir: %w", err)
	}
	if _, err := filex.EnsureDir(dir); err != nil {
		return err
	}

	path, err := filex.SafeJoin(dir, ProfileFileName(username))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o660); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func (s *FSStore) Load(ctx context.Context, username, fileName string) ([]byte, string, error) {
	path, err := filex.SafeJoin(s.root, username, fileName)
	if err != nil {
		return nil, "", common.ErrorNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", common.ErrorNotFound
		}
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	return data, contentType(data), nil
}

func (s *FSStore) DeleteAll(ctx context.Context, username string) error {
	dir, err := filex.SafeJoin(s.root, username)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	return nil
}
