package utils

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cascadeHeader = `<?xml version="1.0"?>
<opencv_storage><cascade><width>2</width></cascade></opencv_storage>`

func TestUtils_ShouldBeValidUrl(t *testing.T) {
	assert.True(t, IsValidUrl("https://github.com/esimov/invhaar/"))
	assert.False(t, IsValidUrl("data/haarcascade_frontalface_default.xml"))
	assert.False(t, IsValidUrl("file-without-scheme"))
}

func TestUtils_ShouldDetectXMLContentType(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "cascade.xml")
	require.NoError(t, os.WriteFile(fname, []byte(cascadeHeader), 0644))

	ctype, err := DetectContentType(fname)
	require.NoError(t, err)
	assert.Contains(t, ctype, "xml")
}

func TestUtils_ShouldDownloadAcceptedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cascadeHeader))
	}))
	defer srv.Close()

	f, err := Download(srv.URL, "xml")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, cascadeHeader, string(data))

	_, err = Download(srv.URL, "image")
	assert.Error(t, err)
}

func TestUtils_ShouldFailOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Download(srv.URL, "xml")
	assert.Error(t, err)
}
