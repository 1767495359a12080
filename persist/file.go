package persist

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// fileJson is the codec SaveFile/LoadFile round-trip through.
var fileJson = jsoniter.ConfigCompatibleWithStandardLibrary

// SaveFile writes file to path: encode into a sibling temp file, flush
// and close it, then atomically rename over the destination so a
// concurrent reader never observes a partially written file.
func SaveFile(path string, file *File) (err error) {
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persist: create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	enc := fileJson.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(file); err != nil {
		f.Close()
		return fmt.Errorf("persist: encode %s: %w", path, err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("persist: sync %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("persist: close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persist: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// LoadFile reads and migrates the file at path, returning it at
// CurrentVersion.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persist: read %s: %w", path, err)
	}
	var file File
	if err := fileJson.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("persist: decode %s: %w", path, err)
	}
	if err := migrate(&file); err != nil {
		return nil, err
	}
	return &file, nil
}
