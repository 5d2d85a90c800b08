package ops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/errors"
)

// ExportExt is the extension every export file carries.
const ExportExt = ".pbx"

// MaxPayloadFileBytes bounds an encoded payload read from disk.
const MaxPayloadFileBytes = 256 << 20

// FilePurpose says what a path given to an operation is for. Each purpose
// has its own rules, see filePolicies.
type FilePurpose int

const (
	ImportSource  FilePurpose = iota // .pbx file read by Import
	ExportTarget                     // .pbx file written by Export
	PayloadSource                    // encoded payload read by copy --raw-file or inspect --file
	PayloadTarget                    // encoded payload written by paste --raw-out
)

func (p FilePurpose) String() string {
	switch p {
	case ImportSource:
		return "import"
	case ExportTarget:
		return "export"
	case PayloadSource:
		return "payload input"
	case PayloadTarget:
		return "payload output"
	default:
		return "file"
	}
}

type filePolicy struct {
	ext   string // required extension, empty for any
	write bool
	// confined files must sit directly in ~/.pasteboard/exports or one of
	// cfg.AllowedPaths unless cfg.AllowUnsafePaths is set.
	confined bool
}

// Export and import paths may come from an MCP client, so they are held to
// the exports directory. Payload files only come from the local CLI user.
var filePolicies = map[FilePurpose]filePolicy{
	ImportSource:  {ext: ExportExt, confined: true},
	ExportTarget:  {ext: ExportExt, write: true, confined: true},
	PayloadSource: {},
	PayloadTarget: {write: true},
}

// CheckPath validates path for purpose and returns it absolute and cleaned.
//
// Confined purposes reject ".." components and require the file to be
// directly inside an allowed directory whose own entry is not a symlink.
// Disallowing subdirectories leaves no intermediate component to swap
// between the check and the open; the final component is opened with
// O_NOFOLLOW. Every purpose rejects a symlink as the final component. Reads
// require an existing regular file; writes refuse to replace anything but a
// regular file.
func CheckPath(path string, purpose FilePurpose, cfg *config.Config) (string, error) {
	policy, ok := filePolicies[purpose]
	if !ok {
		return "", errors.NewInternal(fmt.Errorf("no path policy for purpose %d", purpose))
	}
	if path == "" {
		return "", errors.NewInvalidRequest(purpose.String() + " path is required")
	}
	if policy.confined && containsTraversal(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}
	cleaned := filepath.Clean(path)
	if policy.ext != "" && filepath.Ext(cleaned) != policy.ext {
		return "", errors.NewInvalidRequest(fmt.Sprintf("%s path must have %s extension", purpose, policy.ext))
	}
	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if policy.confined && (cfg == nil || !cfg.AllowUnsafePaths) {
		if err := checkConfined(absPath, cfg); err != nil {
			return "", err
		}
	}

	info, err := os.Lstat(absPath)
	switch {
	case os.IsNotExist(err):
		if !policy.write {
			return "", errors.NewFileNotFound(path)
		}
		return absPath, nil
	case err != nil:
		return "", errors.NewInternal(fmt.Errorf("stat %s: %w", path, err))
	case info.Mode()&os.ModeSymlink != 0:
		return "", errors.NewInvalidRequest("path must not be a symlink")
	case !info.Mode().IsRegular():
		return "", errors.NewInvalidRequest(fmt.Sprintf("%s path %q is not a regular file", purpose, path))
	}
	return absPath, nil
}

func checkConfined(absPath string, cfg *config.Config) error {
	allowedDirs, err := allowedDirs(cfg)
	if err != nil {
		return err
	}
	parentDir := filepath.Dir(absPath)
	if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
		return errors.NewInvalidRequest(
			fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v",
				allowedDirs))
	}
	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	return nil
}

// ReadPayloadFile reads an encoded payload from a local file.
func ReadPayloadFile(path string, cfg *config.Config) ([]byte, error) {
	absPath, err := CheckPath(path, PayloadSource, cfg)
	if err != nil {
		return nil, err
	}
	f, err := openFileNoFollowRead(absPath)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("open payload file: %w", err))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxPayloadFileBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read payload file: %w", err))
	}
	if len(data) > MaxPayloadFileBytes {
		return nil, errors.NewPayloadTooLarge(MaxPayloadFileBytes, len(data))
	}
	return data, nil
}

// WritePayloadFile writes an encoded payload to a local file with mode 0600,
// replacing a regular file already there.
func WritePayloadFile(path string, data []byte, cfg *config.Config) error {
	absPath, err := CheckPath(path, PayloadTarget, cfg)
	if err != nil {
		return err
	}
	f, err := openFileNoFollow(absPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			return err
		}
		return errors.NewInternal(fmt.Errorf("create payload file: %w", err))
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.NewInternal(fmt.Errorf("write payload file: %w", err))
	}
	if err := f.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("close payload file: %w", err))
	}
	return nil
}

// allowedDirs returns the directories confined files may live in, absolute
// and with a symlinked entry resolved to its target.
func allowedDirs(cfg *config.Config) ([]string, error) {
	defaultDir, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{defaultDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// DefaultExportsDir returns ~/.pasteboard/exports.
func DefaultExportsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, ".pasteboard", "exports"), nil
}

// containsTraversal reports a ".." component, splitting on '/' as well as
// the OS separator.
func containsTraversal(path string) bool {
	split := func(r rune) bool { return r == '/' || r == filepath.Separator }
	for _, part := range strings.FieldsFunc(path, split) {
		if part == ".." {
			return true
		}
	}
	return false
}

// exportFileName builds "<label>-<stamp>.pbx". The label is lowercased;
// letters, digits, '_' and single dots are kept and anything else becomes
// '-'.
func exportFileName(label, stamp string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	name := b.String()
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "history"
	}
	return name + "-" + stamp + ExportExt
}
