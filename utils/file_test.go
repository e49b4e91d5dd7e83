package utils

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// multipartFixture builds a real *multipart.FileHeader the same way
// fiber hands one to a handler.
func multipartFixture(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	assert.NoError(t, err)
	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	reader := multipart.NewReader(&buf, w.Boundary())
	form, err := reader.ReadForm(int64(len(content)) + 1024)
	assert.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })

	headers := form.File["file"]
	assert.Len(t, headers, 1)
	return headers[0]
}

// chdirTemp runs the test from a fresh temp dir so relative uploads/
// paths stay contained.
func chdirTemp(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	assert.NoError(t, err)
	dir := t.TempDir()
	assert.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestGetUploadPath(t *testing.T) {
	assert.Equal(t, filepath.Join("uploads", "cover.jpg"), GetUploadPath("cover.jpg"))
	assert.Equal(t, filepath.Join("uploads", "parties/p1/cover-court.jpg"),
		GetUploadPath("parties/p1/cover-court.jpg"))
}

func TestSaveFileCreatesNestedDirs(t *testing.T) {
	dir := chdirTemp(t)
	fh := multipartFixture(t, "court.jpg", []byte("jpeg-bytes"))

	dest := GetUploadPath("parties/p1/cover-court.jpg")
	assert.NoError(t, SaveFile(fh, dest))

	data, err := os.ReadFile(filepath.Join(dir, dest))
	assert.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestStoreUploadFallsBackToLocalDir(t *testing.T) {
	dir := chdirTemp(t)
	r2Client = nil

	fh := multipartFixture(t, "racket.jpg", []byte("photo"))
	url, err := StoreUpload(fh, "listings/l1/0-racket.jpg")
	assert.NoError(t, err)
	assert.Equal(t, "/uploads/listings/l1/0-racket.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "uploads", "listings/l1/0-racket.jpg"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("photo"), data)
}
