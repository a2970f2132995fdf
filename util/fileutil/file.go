package fileutil

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/option"
	_ "github.com/viant/afsc/s3"
)

var FileSystem = afs.New()

func GetPathType(path string) string {
	if strings.HasPrefix(path, "s3://") {
		return "S3"
	}
	return "os"
}

// PathJoinSafe wrapper around filepath.Join to ensure that paths are correctly constructed
// if the path is a normal OS path, just use filepath.Join
// if the path is S3, trim any trailing slashes and construct it manually from the components
// so that double slashes (e.g. s3://) are preserved.
func PathJoinSafe(elem ...string) string {
	var path string

	switch GetPathType(elem[0]) {
	case "S3":
		basePath := strings.TrimSuffix(elem[0], "/")
		path = basePath + "/" + filepath.ToSlash(filepath.Join(elem[1:]...))
	default:
		path = filepath.Join(elem...)
	}
	return path
}

func OpenFile(ctx context.Context, filename string) (io.ReadCloser, error) {
	return FileSystem.OpenURL(ctx, filename)
}

func ReadFileBytes(ctx context.Context, filename string) (out []byte, err error) {
	file, err := OpenFile(ctx, filename)
	if err != nil {
		return nil, err
	}
	defer func(file io.Closer) {
		err = errors.Join(err, CloseFile(file))
	}(file)

	out, err = io.ReadAll(bufio.NewReader(file))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func CloseFile(file io.Closer) error {
	return file.Close()
}

func FileExists(ctx context.Context, filename string) (bool, error) {
	return FileSystem.Exists(ctx, filename)
}

// CreateDir creates the directory if it is not there yet. Calling it on an
// existing directory is a no-op.
func CreateDir(ctx context.Context, dir string) error {
	exists, err := FileExists(ctx, dir)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return FileSystem.Create(ctx, dir, os.ModePerm, true)
}

// NewFileWriter opens a writer on filename, replacing any previous content.
func NewFileWriter(ctx context.Context, filename string) (io.WriteCloser, error) {
	exists, err := FileExists(ctx, filename)
	if err != nil {
		return nil, err
	}
	if exists {
		if err = FileSystem.Delete(ctx, filename); err != nil {
			return nil, err
		}
	}
	return FileSystem.NewWriter(ctx, filename, 0o644, option.NewSkipChecksum(true))
}

// WriteFile streams the output of write into filename and closes the
// underlying writer, joining any close error with the write error.
func WriteFile(ctx context.Context, filename string, write func(w io.Writer) error) (err error) {
	writer, err := NewFileWriter(ctx, filename)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, CloseFile(writer))
	}()
	return write(writer)
}
