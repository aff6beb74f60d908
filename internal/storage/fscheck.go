package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNetworkFilesystem is returned by OpenSQLite when the journal would live
// on a share where SQLite file locks are unreliable.
var ErrNetworkFilesystem = errors.New("journal is on a network filesystem")

// fsTypeOf names the filesystem type holding an existing path.
type fsTypeOf func(path string) (string, error)

func checkJournalFilesystem(path string) error {
	return checkJournalFilesystemWith(path, filesystemType)
}

func checkJournalFilesystemWith(path string, typeOf fsTypeOf) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}

	dir, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve journal path %q: %w", path, err)
	}

	fsType, err := typeOf(dir)
	if err != nil {
		return fmt.Errorf("stat filesystem of %q: %w", dir, err)
	}

	if onNetworkShare(fsType) {
		return fmt.Errorf("%w: %q is on %s, set journal.path to a local file", ErrNetworkFilesystem, path, fsType)
	}
	return nil
}

// existingAncestor walks up from path until it reaches something that exists.
// The journal file and its directory may not have been created yet.
func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		case filepath.Dir(dir) == dir:
			return "", fmt.Errorf("no existing ancestor of %q", abs)
		}
	}
}

func onNetworkShare(fsType string) bool {
	switch strings.ToLower(strings.TrimSpace(fsType)) {
	case "nfs", "nfs4", "cifs", "smbfs", "smb2", "afpfs", "webdav", "fuse.sshfs":
		return true
	}
	return false
}
