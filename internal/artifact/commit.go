// Package artifact commits generated files to disk atomically and
// describes them with manifests and stage timings.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Staged is content written to a temporary file beside its destination,
// waiting to be renamed into place.
type Staged struct {
	path string
	tmp  string
}

// Stage writes data next to path without touching path itself.
func Stage(path string, data []byte) (*Staged, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return nil, fmt.Errorf("temp output file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("close output file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("chmod output file: %w", err)
	}
	return &Staged{path: path, tmp: tmp.Name()}, nil
}

// StageJSON marshals v as indented JSON and stages it for path.
func StageJSON(path string, v any) (*Staged, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return Stage(path, append(data, '\n'))
}

// Commit renames the staged file into place.
func (s *Staged) Commit() error {
	if s.tmp == "" {
		return fmt.Errorf("commit %s: already committed or discarded", s.path)
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		_ = os.Remove(s.tmp)
		s.tmp = ""
		return fmt.Errorf("rename output file: %w", err)
	}
	s.tmp = ""
	return nil
}

// Discard removes the temporary file. It does nothing after Commit.
func (s *Staged) Discard() {
	if s == nil || s.tmp == "" {
		return
	}
	_ = os.Remove(s.tmp)
	s.tmp = ""
}

// WriteAtomic writes data to a temporary file next to path and renames it
// into place. Readers see either the previous file or the complete new one.
func WriteAtomic(path string, data []byte) error {
	staged, err := Stage(path, data)
	if err != nil {
		return err
	}
	return staged.Commit()
}

// ToStdout reports whether an output path names the standard output.
func ToStdout(path string) bool {
	return path == "" || path == "-"
}

// Commit sends data to w in one Write when path is empty or "-", and
// commits it atomically to path otherwise.
func Commit(path string, data []byte, w io.Writer) error {
	if ToStdout(path) {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	return WriteAtomic(path, data)
}

// Digest summarises an artifact's content.
type Digest struct {
	Path   string `json:"path,omitempty"`
	Bytes  int    `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// DigestOf hashes data in memory.
func DigestOf(path string, data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest{Path: path, Bytes: len(data), SHA256: hex.EncodeToString(sum[:])}
}
