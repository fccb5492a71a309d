package runloop

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/category-labs/monad-go/monadtypes"
)

// trieStoreFiles are the Trie Store's on-disk file names (internal/trie's
// Store.Open layout); a snapshot is a raw copy of these plus the gob
// manifest below, since the store rebuilds its in-memory directory and
// node caches from the same files on the next Open.
var trieStoreFiles = []string{"nodes.db", "code.db"}

// Manifest is the gob-encoded record a snapshot carries alongside the raw
// chunk files: the loop state a fresh Loop needs to resume ingestion
// exactly where the snapshot was taken, since the Trie Store's own commit
// metadata records committed blocks but not the cross-block sender/
// authority history the Reserve-Balance Tracker needs.
type Manifest struct {
	ChainID     uint64
	LastBlock   uint64
	LastBlockID monadtypes.Word

	ParentHistory      []monadtypes.Address
	GrandparentHistory []monadtypes.Address
}

const manifestFileName = "manifest.gob"

// DumpSnapshot copies storeDir's Trie Store files and writes manifest into
// snapshotDir, creating it if necessary. storeDir's store should not be
// concurrently written to while this runs.
func DumpSnapshot(storeDir, snapshotDir string, manifest Manifest) error {
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return err
	}
	for _, name := range trieStoreFiles {
		if err := copyFile(filepath.Join(storeDir, name), filepath.Join(snapshotDir, name)); err != nil {
			return err
		}
	}
	f, err := os.Create(filepath.Join(snapshotDir, manifestFileName))
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(manifest)
}

// LoadSnapshot copies snapshotDir's Trie Store files into storeDir and
// returns the decoded manifest, for a runloop resuming from a prior dump.
// storeDir must not already hold a store — LoadSnapshot does not merge.
func LoadSnapshot(snapshotDir, storeDir string) (Manifest, error) {
	var manifest Manifest
	f, err := os.Open(filepath.Join(snapshotDir, manifestFileName))
	if err != nil {
		return manifest, err
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&manifest); err != nil {
		return manifest, err
	}

	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return manifest, err
	}
	for _, name := range trieStoreFiles {
		if err := copyFile(filepath.Join(snapshotDir, name), filepath.Join(storeDir, name)); err != nil {
			return manifest, err
		}
	}
	return manifest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// ResumeHistory reconstructs the parent/grandparent sender-and-authority
// sets a Loop needs after loading a snapshot.
func ResumeHistory(manifest Manifest) (parent, grandparent mapset.Set[monadtypes.Address]) {
	parent = mapset.NewThreadUnsafeSet(manifest.ParentHistory...)
	grandparent = mapset.NewThreadUnsafeSet(manifest.GrandparentHistory...)
	return parent, grandparent
}
