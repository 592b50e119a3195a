// Package web serves the embedded upload page for air-gapped deployment.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed dist/*
var staticFiles embed.FS

// GetFileSystem returns the embedded filesystem with the dist folder as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "dist")
}

// RegisterStaticRoutes serves the embedded front end for every path that is
// not under one of the reserved prefixes. Unknown paths fall back to
// index.html; unknown reserved paths stay 404.
func RegisterStaticRoutes(e *echo.Echo, reserved ...string) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}
	index, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		return err
	}

	fileServer := http.FileServer(http.FS(staticFS))

	e.GET("/*", func(c echo.Context) error {
		requestPath := path.Clean(c.Request().URL.Path)
		for _, prefix := range reserved {
			if requestPath == prefix || strings.HasPrefix(requestPath, prefix+"/") {
				return echo.ErrNotFound
			}
		}

		name := strings.TrimPrefix(requestPath, "/")
		if name == "" || name == "." || name == "index.html" {
			return c.HTMLBlob(http.StatusOK, index)
		}

		stat, err := fs.Stat(staticFS, name)
		if err != nil || stat.IsDir() {
			return c.HTMLBlob(http.StatusOK, index)
		}

		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	return nil
}

// HasEmbeddedFiles returns true if the front end has been embedded.
func HasEmbeddedFiles() bool {
	_, err := fs.Stat(staticFiles, "dist/index.html")
	return err == nil
}
