// Package execctx persists what the assistant last touched, so follow-up
// requests like "open it" can be resolved.
package execctx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Keys accepted by Update.
const (
	LastCreatedFile  = "last_created_file"
	LastOpenedFile   = "last_opened_file"
	LastModifiedFile = "last_modified_file"
	LastOpenedApp    = "last_opened_app"
	ActiveProjectDir = "active_project_dir"
	LastTaskSummary  = "last_task_summary"
	LastContentType  = "last_content_type"
	LastUpdated      = "last_updated"
)

// Context is the persisted execution state. Empty fields are unset.
type Context struct {
	LastCreatedFile  string `json:"last_created_file"`
	LastOpenedFile   string `json:"last_opened_file"`
	LastModifiedFile string `json:"last_modified_file"`
	LastOpenedApp    string `json:"last_opened_app"`
	ActiveProjectDir string `json:"active_project_dir"`
	LastTaskSummary  string `json:"last_task_summary"`
	LastContentType  string `json:"last_content_type"`
	LastUpdated      string `json:"last_updated"`
}

// TargetFile returns the file a pronoun most likely refers to: the last
// modified, else opened, else created file.
func (c Context) TargetFile() string {
	switch {
	case c.LastModifiedFile != "":
		return c.LastModifiedFile
	case c.LastOpenedFile != "":
		return c.LastOpenedFile
	default:
		return c.LastCreatedFile
	}
}

// Store keeps a Context in a JSON file. With an empty path it keeps the
// context in memory only. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	mem  Context
	now  func() time.Time
}

// Open opens or creates the context file at path.
func Open(path string) (*Store, error) {
	s := &Store{path: strings.TrimSpace(path), now: time.Now}
	if s.path == "" {
		return s, nil
	}
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return nil, fmt.Errorf("create context dir: %w", err)
		}
		if err := s.save(Context{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat context file: %w", err)
	}
	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory() *Store {
	s, _ := Open("")
	return s
}

// Get returns the current context. A corrupt or unreadable file reads as
// an empty context.
func (s *Store) Get() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update merges updates into the context and stamps last_updated. Unknown
// keys are ignored.
func (s *Store) Update(updates map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	fields := map[string]*string{
		LastCreatedFile:  &current.LastCreatedFile,
		LastOpenedFile:   &current.LastOpenedFile,
		LastModifiedFile: &current.LastModifiedFile,
		LastOpenedApp:    &current.LastOpenedApp,
		ActiveProjectDir: &current.ActiveProjectDir,
		LastTaskSummary:  &current.LastTaskSummary,
		LastContentType:  &current.LastContentType,
	}
	for k, v := range updates {
		if dst, ok := fields[k]; ok {
			*dst = v
		}
	}
	current.LastUpdated = s.now().Format(time.RFC3339Nano)
	return s.save(current)
}

// ResolvePath maps a reference like "it" or "the file I created" to a
// concrete path. An empty string means nothing is known.
func (s *Store) ResolvePath(ref string) string {
	ctx := s.Get()
	if strings.Contains(strings.ToLower(ref), "created") {
		return ctx.LastCreatedFile
	}
	return ctx.TargetFile()
}

func (s *Store) load() Context {
	if s.path == "" {
		return s.mem
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Context{}
	}
	var out Context
	if err := json.Unmarshal(data, &out); err != nil {
		return Context{}
	}
	return out
}

func (s *Store) save(c Context) error {
	if s.path == "" {
		s.mem = c
		return nil
	}
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace context: %w", err)
	}
	return nil
}
