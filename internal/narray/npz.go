package narray

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// npzImageKeys is the member-name search order for .npz archives. These
// are the array names common medical-imaging bundles (MedMNIST and
// friends) use for their image stacks.
var npzImageKeys = []string{"images", "train_images", "val_images", "test_images"}

// DecodeNPZ extracts the first matching images array from a .npz
// archive (a zip of .npy members).
func DecodeNPZ(b []byte) (*Array, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("not a .npz archive: %w", err)
	}

	members := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		name := strings.TrimSuffix(f.Name, ".npy")
		members[name] = f
	}

	for _, key := range npzImageKeys {
		f, ok := members[key]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open npz member %s: %w", f.Name, err)
		}
		payload, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read npz member %s: %w", f.Name, err)
		}
		return DecodeNPY(payload)
	}
	return nil, fmt.Errorf("could not find any of %v in npz archive", npzImageKeys)
}

// Load decodes an artifact payload, picking the codec from the key's
// extension. Only .npy and .npz are loadable inputs.
func Load(key string, b []byte) (*Array, error) {
	switch path.Ext(key) {
	case ".npy":
		return DecodeNPY(b)
	case ".npz":
		return DecodeNPZ(b)
	default:
		return nil, fmt.Errorf("unsupported input format for %s: use .npy or .npz", key)
	}
}
