package htmlsplit

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/pasteboard/internal/errors"
)

// LocalFilePrefix starts every file URI.
const LocalFilePrefix = "file://"

// IsLocalURI reports whether uri names a file on this device: a file URI,
// or an absolute path with no scheme. Relative references, remote URLs and
// data URIs are not local.
func IsLocalURI(uri string) bool {
	if strings.HasPrefix(uri, LocalFilePrefix) {
		return true
	}
	return !strings.Contains(uri, "://") && strings.HasPrefix(uri, "/")
}

// LocalPath returns the filesystem path a local URI names.
func LocalPath(uri string) (string, error) {
	if !IsLocalURI(uri) {
		return "", errors.NewInvalidRequest("not a local uri: " + uri)
	}
	if !strings.HasPrefix(uri, LocalFilePrefix) {
		return filepath.Clean(uri), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.WrapMalformedInput("parse uri", err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", errors.NewInvalidRequest("file uri names another host: " + u.Host)
	}
	if u.Path == "" {
		return "", errors.NewInvalidRequest("file uri has no path: " + uri)
	}
	return filepath.Clean(u.Path), nil
}

// FileKind classifies what a local path points to.
type FileKind int

const (
	FileMissing FileKind = iota
	FileRegular
	FileDirectory
	FileOther
)

func (k FileKind) String() string {
	switch k {
	case FileRegular:
		return "regular"
	case FileDirectory:
		return "directory"
	case FileOther:
		return "other"
	default:
		return "missing"
	}
}

// Resolver tells whether a local URI names something that exists.
type Resolver interface {
	Resolve(uri string) (FileKind, error)
}

// FSResolver resolves URIs against the local filesystem. When Root is set,
// paths are taken relative to it, as for a sandboxed application whose
// view of the filesystem starts there.
type FSResolver struct {
	Root string
}

func (r FSResolver) Resolve(uri string) (FileKind, error) {
	path, err := LocalPath(uri)
	if err != nil {
		return FileMissing, err
	}
	if r.Root != "" {
		path = filepath.Join(r.Root, path)
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return FileMissing, nil
	}
	if err != nil {
		return FileMissing, err
	}
	switch {
	case info.Mode().IsRegular():
		return FileRegular, nil
	case info.IsDir():
		return FileDirectory, nil
	default:
		return FileOther, nil
	}
}
