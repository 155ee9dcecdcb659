package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/anay-go/anay/pkg/assistant/execctx"
)

const maxSearchResults = 20

// FileManager performs file operations confined to a workspace root.
type FileManager struct {
	root   string
	ctx    *execctx.Store
	logger *slog.Logger
}

// FileOption configures a FileManager.
type FileOption func(*FileManager)

func WithFileLogger(l *slog.Logger) FileOption {
	return func(f *FileManager) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFileManager creates a file manager rooted at root. An empty root uses
// the user's home directory. Symlinks in root are resolved up front.
func NewFileManager(root string, ctx *execctx.Store, opts ...FileOption) (*FileManager, error) {
	if strings.TrimSpace(root) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		root = home
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	resolved, err := realPath(filepath.Clean(abs))
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if ctx == nil {
		ctx = execctx.NewMemory()
	}
	f := &FileManager{root: resolved, ctx: ctx, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *FileManager) Name() string { return "file_manager" }

func (f *FileManager) Actions() []string {
	return []string{"write_file", "read_file", "create_folder", "delete_item", "list_files", "search_files"}
}

// Root returns the workspace root.
func (f *FileManager) Root() string { return f.root }

func (f *FileManager) Call(ctx context.Context, action string, params map[string]any) (string, error) {
	switch action {
	case "write_file":
		path, err := requireString(params, "path")
		if err != nil {
			return "", err
		}
		return f.WriteFile(path, stringParam(params, "content"), stringParam(params, "mode") == "a")
	case "read_file":
		path, err := requireString(params, "path")
		if err != nil {
			return "", err
		}
		return f.ReadFile(path)
	case "create_folder":
		path, err := requireString(params, "path")
		if err != nil {
			return "", err
		}
		return f.CreateFolder(path)
	case "delete_item":
		path, err := requireString(params, "path")
		if err != nil {
			return "", err
		}
		return f.DeleteItem(path)
	case "list_files":
		path := stringParam(params, "path")
		if path == "" {
			path = "."
		}
		return f.ListFiles(path)
	case "search_files":
		query, err := requireString(params, "query")
		if err != nil {
			return "", err
		}
		return f.SearchFiles(ctx, query, stringParam(params, "start_path", "path"), intParam(params, "depth", 2))
	default:
		return "", unknownAction(f.Name(), action)
	}
}

// resolve maps path into the workspace. Relative paths and the shorthands
// desktop, documents and downloads are joined to the root. The path must stay
// inside the root after symlinks are followed.
func (f *FileManager) resolve(path string) (string, error) {
	path = strings.TrimSpace(strings.ReplaceAll(path, `\`, "/"))
	if strings.HasPrefix(path, "~/") || path == "~" {
		path = strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/")
	}
	first, rest, _ := strings.Cut(path, "/")
	switch strings.ToLower(first) {
	case "desktop":
		path = filepath.Join("Desktop", rest)
	case "documents":
		path = filepath.Join("Documents", rest)
	case "downloads":
		path = filepath.Join("Downloads", rest)
	}

	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Join(f.root, path)
	}
	resolved, err := realPath(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	if !within(f.root, resolved) {
		return "", fmt.Errorf("path %q is outside the workspace %s", path, f.root)
	}
	if resolved == f.root {
		return f.root, nil
	}
	// Keep the last element unresolved so deleting a link removes the link.
	parent, err := realPath(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return filepath.Join(parent, filepath.Base(abs)), nil
}

func within(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// realPath resolves symlinks in the longest existing prefix of abs and
// appends the missing tail. A dangling symlink is an error, since creating
// through it would write wherever it points.
func realPath(abs string) (string, error) {
	existing := abs
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(existing); lerr == nil {
			return "", fmt.Errorf("dangling symlink %s", existing)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		tail = append([]string{filepath.Base(existing)}, tail...)
		existing = parent
	}
}

// remember records updates in the execution context. A failed write only
// loses follow-up resolution, so the tool call still succeeds.
func remember(store *execctx.Store, logger *slog.Logger, tool string, updates map[string]string) {
	if err := store.Update(updates); err != nil {
		logger.Warn("persist execution context", "tool", tool, "error", err)
	}
}

// WriteFile writes (or appends) content and records the file in the
// execution context.
func (f *FileManager) WriteFile(path, content string, appendMode bool) (string, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	_, statErr := os.Stat(abs)
	created := errors.Is(statErr, fs.ErrNotExist)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create parent dirs: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(abs, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	updates := map[string]string{
		execctx.LastModifiedFile: abs,
		execctx.LastContentType:  strings.TrimPrefix(strings.ToLower(filepath.Ext(abs)), "."),
	}
	if created {
		updates[execctx.LastCreatedFile] = abs
	}
	remember(f.ctx, f.logger, f.Name(), updates)
	return "Successfully wrote to " + abs, nil
}

// ReadFile returns a text file's content.
func (f *FileManager) ReadFile(path string) (string, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	remember(f.ctx, f.logger, f.Name(), map[string]string{execctx.LastOpenedFile: abs})
	if !utf8.Valid(data) {
		return "Binary file content not displayable.", nil
	}
	return string(data), nil
}

func (f *FileManager) CreateFolder(path string) (string, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	remember(f.ctx, f.logger, f.Name(), map[string]string{execctx.ActiveProjectDir: abs})
	return "Created folder " + abs, nil
}

func (f *FileManager) DeleteItem(path string) (string, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	if abs == f.root {
		return "", fmt.Errorf("refusing to delete the workspace root")
	}
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		return "Item does not exist.", nil
	}
	if err := os.RemoveAll(abs); err != nil {
		return "", fmt.Errorf("delete: %w", err)
	}
	return "Deleted " + abs, nil
}

// ListFiles describes a directory's entries; folders carry a trailing slash.
func (f *FileManager) ListFiles(path string) (string, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	remember(f.ctx, f.logger, f.Name(), map[string]string{execctx.ActiveProjectDir: abs})
	if len(names) == 0 {
		return abs + " is empty", nil
	}
	return fmt.Sprintf("%s contains %d items: %s", abs, len(names), strings.Join(names, ", ")), nil
}

// SearchFiles finds names containing query up to depth levels below start.
func (f *FileManager) SearchFiles(ctx context.Context, query, start string, depth int) (string, error) {
	if start == "" {
		start = "."
	}
	base, err := f.resolve(start)
	if err != nil {
		return "", err
	}
	query = strings.ToLower(query)
	var results []string
	errStop := errors.New("stop")

	walkErr := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, _ := filepath.Rel(base, p)
		if rel != "." && strings.Count(rel, string(filepath.Separator)) >= depth+1 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if rel != "." && strings.Contains(strings.ToLower(d.Name()), query) {
			results = append(results, p)
			if len(results) >= maxSearchResults {
				return errStop
			}
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errStop) {
		return "", walkErr
	}
	if len(results) == 0 {
		return fmt.Sprintf("No files matching %q", query), nil
	}
	return fmt.Sprintf("Found %d matches: %s", len(results), strings.Join(results, ", ")), nil
}
