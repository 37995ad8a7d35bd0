package campaign

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/spf13/afero"
)

// LoadImageFile reads the file at path from fs for attaching to a Form. The
// content type is taken from the file extension, or sniffed from the content
// when the extension is unknown. A file over MaxImageSize is rejected before
// it is read.
func LoadImageFile(fs afero.Fs, path string) (File, error) {
	name := filepath.Base(path)

	info, err := fs.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", name, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s: is a directory", name)
	}
	if info.Size() > MaxImageSize {
		return File{}, AdmitImage(name, "image/*", info.Size())
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", name, err)
	}

	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	return File{Name: name, ContentType: ct, Data: data}, nil
}
