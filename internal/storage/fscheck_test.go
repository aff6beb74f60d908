package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedFSType(fsType string) fsTypeOf {
	return func(string) (string, error) { return fsType, nil }
}

func TestCheckJournalFilesystem(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	require.NoError(t, checkJournalFilesystemWith(dbPath, fixedFSType("ext4")))

	err := checkJournalFilesystemWith(dbPath, fixedFSType("nfs"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFilesystem)
	assert.Contains(t, err.Error(), "journal.path")

	err = checkJournalFilesystemWith(dbPath, func(string) (string, error) { return "", errors.New("boom") })
	assert.ErrorContains(t, err, "boom")

	assert.Error(t, checkJournalFilesystemWith("", fixedFSType("ext4")))
}

func TestCheckJournalFilesystemInspectsExistingAncestor(t *testing.T) {
	root := t.TempDir()
	var inspected string
	err := checkJournalFilesystemWith(filepath.Join(root, "a", "b", "journal.db"), func(p string) (string, error) {
		inspected = p
		return "apfs", nil
	})
	require.NoError(t, err)
	assert.Equal(t, root, inspected)
}

func TestOnNetworkShare(t *testing.T) {
	cases := map[string]bool{
		"nfs":          true,
		" SMBFS ":      true,
		"fuse.sshfs":   true,
		"apfs":         false,
		"magic:0xef53": false,
	}
	for fsType, want := range cases {
		assert.Equal(t, want, onNetworkShare(fsType), fsType)
	}
}
