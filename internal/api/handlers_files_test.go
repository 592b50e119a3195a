package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHandler_HandleUploadFile(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		filename    string
		wantStatus  int
		wantErrCode string
	}{
		{name: "xml upload", field: "file", filename: "pump.xml", wantStatus: http.StatusCreated},
		{name: "l5x upload", field: "file", filename: "line.l5x", wantStatus: http.StatusCreated},
		{name: "no file", wantStatus: http.StatusBadRequest, wantErrCode: "BAD_REQUEST"},
		{name: "unsupported extension", field: "file", filename: "pump.csv", wantStatus: http.StatusBadRequest, wantErrCode: "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			handler := NewFileHandler(store, testExtensions)

			c, rec := newContext(multipartRequest(t, "/api/files", tt.field, tt.filename, testutil.SimpleRungXML), nil, nil)
			err := handler.HandleUploadFile(c)

			if tt.wantErrCode != "" {
				requireAPIError(t, err, tt.wantStatus, tt.wantErrCode)
				assert.Zero(t, store.GetFileCount())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var info models.FileInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, tt.filename, info.Name)
			assert.Equal(t, int64(len(testutil.SimpleRungXML)), info.Size)
			assert.Equal(t, 1, store.GetFileCount())
		})
	}
}

func TestFileHandler_GetAndRecent(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("a", "a.xml", []byte("<a/>"))
	store.AddFile("b", "b.xml", []byte("<b/>"))
	handler := NewFileHandler(store, testExtensions)

	c, rec := newContext(httpGet("/api/files/recent"), nil, nil)
	require.NoError(t, handler.HandleGetRecentFiles(c))
	var files []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 2)

	c, rec = newContext(httpGet("/api/files/a"), []string{"id"}, []string{"a"})
	require.NoError(t, handler.HandleGetFile(c))
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "a.xml", info.Name)

	c, _ = newContext(httpGet("/api/files/missing"), []string{"id"}, []string{"missing"})
	requireAPIError(t, handler.HandleGetFile(c), http.StatusNotFound, "NOT_FOUND")

	c, _ = newContext(httpGet("/api/files/"), []string{"id"}, []string{""})
	requireAPIError(t, handler.HandleGetFile(c), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestFileHandler_HandleGetConverted(t *testing.T) {
	dir := t.TempDir()
	store := testutil.NewMockStorage(dir)
	info := store.AddFile("a", "Pump.L5X", []byte("<a/>"))
	store.AddFile("b", "b.xml", []byte("<b/>"))

	converted := filepath.Join(dir, "a_Pump.txt")
	require.NoError(t, os.WriteFile(converted, []byte("XIC A OTE B\n"), 0644))
	info.ConvertedPath = converted

	handler := NewFileHandler(store, testExtensions)

	c, rec := newContext(httpGet("/api/files/a/converted"), []string{"id"}, []string{"a"})
	require.NoError(t, handler.HandleGetConverted(c))
	assert.Equal(t, "XIC A OTE B\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Pump.txt")

	c, _ = newContext(httpGet("/api/files/b/converted"), []string{"id"}, []string{"b"})
	requireAPIError(t, handler.HandleGetConverted(c), http.StatusNotFound, "NOT_FOUND")
}

func TestFileHandler_DeleteAndRename(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("a", "a.xml", []byte("<a/>"))
	handler := NewFileHandler(store, testExtensions)

	tests := []struct {
		name        string
		body        interface{}
		id          string
		wantErrCode string
		wantName    string
	}{
		{name: "rename", id: "a", body: map[string]string{"name": "renamed.xml"}, wantName: "renamed.xml"},
		{name: "empty name", id: "a", body: map[string]string{"name": ""}, wantErrCode: "VALIDATION_ERROR"},
		{name: "too long", id: "a", body: map[string]string{"name": strings.Repeat("x", 300)}, wantErrCode: "VALIDATION_ERROR"},
		{name: "unknown file", id: "zzz", body: map[string]string{"name": "x.xml"}, wantErrCode: "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(jsonRequest(t, http.MethodPut, "/api/files/"+tt.id, tt.body), []string{"id"}, []string{tt.id})
			err := handler.HandleRenameFile(c)
			if tt.wantErrCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrCode, err.(*APIError).Code)
				return
			}
			require.NoError(t, err)
			var info models.FileInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, tt.wantName, info.Name)
		})
	}

	c, rec := newContext(httptestRequest(http.MethodDelete, "/api/files/a"), []string{"id"}, []string{"a"})
	require.NoError(t, handler.HandleDeleteFile(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, store.GetFileCount())

	c, _ = newContext(httptestRequest(http.MethodDelete, "/api/files/a"), []string{"id"}, []string{"a"})
	requireAPIError(t, handler.HandleDeleteFile(c), http.StatusNotFound, "NOT_FOUND")
}
