// Package storage provides the shared on-disk primitives for spark
// state: whole-file JSON rewritten atomically per mutation, newline-
// delimited JSON logs rotated by line count, and a short-wait advisory
// lock file. Reads treat "absent" and "corrupt" identically: both
// degrade to empty/default so a cold or damaged store is always a safe
// fallback.
package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteJSONAtomic marshals v and replaces path via write-temp-then-
// rename. A crash loses at most this one write.
func WriteJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadJSON unmarshals path into v. Returns false when the file is
// missing or unparseable; callers cannot (and should not) distinguish
// the two cases.
func ReadJSON(path string, v interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}

// AppendLine appends v as one NDJSON line, then rotates the file down
// to maxLines by dropping the oldest lines. maxLines <= 0 disables
// rotation.
func AppendLine(path string, v interface{}, maxLines int) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	_, werr := f.Write(append(data, '\n'))
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return cerr
	}
	if maxLines > 0 {
		return rotate(path, maxLines)
	}
	return nil
}

// ReadLines returns up to maxLines raw NDJSON lines from path, oldest
// first. Blank lines are skipped; maxLines <= 0 means all. A missing
// or unreadable file yields nil.
func ReadLines(path string, maxLines int) []json.RawMessage {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

// DecodeLines unmarshals each NDJSON line of path into a fresh T,
// skipping corrupt lines silently.
func DecodeLines[T any](path string, maxLines int) []T {
	raw := ReadLines(path, maxLines)
	out := make([]T, 0, len(raw))
	for _, line := range raw {
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// rotate truncates path to its newest maxLines lines, atomically.
func rotate(path string, maxLines int) error {
	lines := ReadLines(path, 0)
	if len(lines) <= maxLines {
		return nil
	}
	lines = lines[len(lines)-maxLines:]
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
