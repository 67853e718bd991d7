package persist

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
)

// File persists each key as a JSON file under a state directory.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *File) Set(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[PERSIST] marshal %s: %v", key, err)
		return
	}
	if err := os.WriteFile(f.path(key), data, 0o644); err != nil {
		log.Printf("[PERSIST] write %s: %v", key, err)
	}
}

func (f *File) Get(key string, dest interface{}) bool {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}
