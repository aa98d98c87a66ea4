package cookiestore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jrsteele09/go-session-guard/credentials"
)

var _ credentials.Persister = (*FileStore)(nil)

// FileStore persists the session cookies as Set-Cookie lines in a file, the
// way a browser keeps them across a page reload.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(_ context.Context) (*credentials.Persisted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[FileStore Load] read %s: %w", f.path, err)
	}

	var cookies []*http.Cookie
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c, err := http.ParseSetCookie(line)
		if err != nil {
			return nil, fmt.Errorf("[FileStore Load] parse cookie: %w", err)
		}
		cookies = append(cookies, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[FileStore Load] scan: %w", err)
	}

	p, err := FromCookies(cookies)
	if err != nil {
		return nil, err
	}
	if p.IsEmpty() {
		return nil, nil
	}
	return &p, nil
}

// Save rewrites the file atomically through a temp file in the same directory.
func (f *FileStore) Save(_ context.Context, p credentials.Persisted) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p.IsEmpty() {
		return f.removeLocked()
	}

	cookies, err := Cookies(p)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, c := range cookies {
		buf.WriteString(c.String())
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("[FileStore Save] mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("[FileStore Save] create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore Save] write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore Save] chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileStore Save] close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("[FileStore Save] rename: %w", err)
	}
	return nil
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeLocked()
}

func (f *FileStore) removeLocked() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("[FileStore Clear] remove %s: %w", f.path, err)
	}
	return nil
}
