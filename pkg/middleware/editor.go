package middleware

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vango-dev/vserve/pkg/dispatch"
)

// EditorOptions configures OpenInEditor.
type EditorOptions struct {
	// Command is the editor to launch, e.g. "code" or "vim".
	Command string

	// SrcDir is the project root. Files outside of it are refused.
	SrcDir string

	Logger *zap.Logger

	// Launch starts the editor. Defaults to starting the process without
	// waiting for it.
	Launch func(name string, args ...string) error
}

// OpenInEditor opens ?file=path[:line[:column]] in the configured editor.
func OpenInEditor(opts EditorOptions) dispatch.Middleware {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	launch := opts.Launch
	if launch == nil {
		launch = startDetached
	}
	root, err := filepath.Abs(opts.SrcDir)
	if err != nil {
		root = opts.SrcDir
	}

	return dispatch.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
		loc := r.URL.Query().Get("file")
		if loc == "" {
			http.Error(w, "file query parameter is required", http.StatusBadRequest)
			return
		}

		file, line, col := splitFileSpec(loc)
		abs := file
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, file)
		}
		abs = filepath.Clean(abs)
		if rel, err := filepath.Rel(root, abs); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			http.Error(w, "file is outside of the project", http.StatusForbidden)
			return
		}
		if _, err := os.Stat(abs); err != nil {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}

		name, args := editorArgs(opts.Command, abs, line, col)
		if err := launch(name, args...); err != nil {
			logger.Warn("could not open editor", zap.String("editor", name), zap.Error(err))
			http.Error(w, fmt.Sprintf("could not open %s: %v", name, err), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

// splitFileSpec splits "file:line:col". Windows drive letters survive
// because only numeric suffixes are taken.
func splitFileSpec(loc string) (file string, line, col int) {
	file = loc
	var nums []int
	for i := 0; i < 2; i++ {
		idx := strings.LastIndexByte(file, ':')
		if idx < 0 {
			break
		}
		n, err := strconv.Atoi(file[idx+1:])
		if err != nil {
			break
		}
		nums = append([]int{n}, nums...)
		file = file[:idx]
	}
	switch len(nums) {
	case 2:
		line, col = nums[0], nums[1]
	case 1:
		line = nums[0]
	}
	return file, line, col
}

// editorArgs builds the command line that opens file at line and column
// for the editors that understand a position.
func editorArgs(editor, file string, line, col int) (string, []string) {
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "code"
	}
	if line == 0 {
		return editor, []string{file}
	}
	if col == 0 {
		col = 1
	}

	switch strings.TrimSuffix(filepath.Base(editor), ".exe") {
	case "code", "code-insiders", "codium", "cursor":
		return editor, []string{"-g", fmt.Sprintf("%s:%d:%d", file, line, col)}
	case "subl", "atom", "zed":
		return editor, []string{fmt.Sprintf("%s:%d:%d", file, line, col)}
	case "vim", "nvim", "vi", "emacs", "nano":
		return editor, []string{fmt.Sprintf("+%d", line), file}
	case "idea", "webstorm", "goland", "phpstorm", "pycharm":
		return editor, []string{"--line", strconv.Itoa(line), file}
	default:
		return editor, []string{file}
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
