// handlers_files.go - Uploaded ladder file handlers
package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/storage"
)

// recentFilesLimit caps GET /api/files/recent
const recentFilesLimit = 20

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store      storage.Store
	extensions []string
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store, extensions []string) FileHandler {
	return &FileHandlerImpl{
		store:      store,
		extensions: extensions,
	}
}

// HandleUploadFile accepts a multipart "file" and saves it to storage
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if file.Filename == "" {
		return NewValidationError("file")
	}
	if !hasExtension(file.Filename, h.extensions) {
		return NewBadRequestError("file must be XML or L5X format", nil)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns the most recently uploaded files
func (h *FileHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(recentFilesLimit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return FromStoreError("file", id, err)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleGetConverted downloads the converted text of a file
func (h *FileHandlerImpl) HandleGetConverted(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return FromStoreError("file", id, err)
	}
	if info.ConvertedPath == "" {
		return NewNotFoundError("converted text", id)
	}

	return c.Attachment(info.ConvertedPath, ladder.OutputName(info.Name))
}

// HandleDeleteFile deletes a file and its converted text
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return FromStoreError("file", id, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return FromStoreError("file", id, err)
	}

	return c.JSON(http.StatusOK, info)
}

type renameFileRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
