package files

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/openmined/syftsync/internal/server/filestore"
	"github.com/openmined/syftsync/internal/server/handlers/api"
	"github.com/openmined/syftsync/internal/server/lockstore"
	"github.com/openmined/syftsync/internal/utils"
)

// JSON escaping can grow content up to six times (\u00XX), plus the envelope
const bodyOverhead = 1024

type FilesHandler struct {
	files        *filestore.Store
	locks        *lockstore.Store
	tracked      mapset.Set[string]
	maxFileBytes int64
}

func New(files *filestore.Store, locks *lockstore.Store, tracked []string, maxFileBytes int64) *FilesHandler {
	return &FilesHandler{
		files:        files,
		locks:        locks,
		tracked:      mapset.NewSet(tracked...),
		maxFileBytes: maxFileBytes,
	}
}

func (h *FilesHandler) List(ctx *gin.Context) {
	projectID, ok := h.projectParam(ctx)
	if !ok {
		return
	}

	infos, err := h.files.List(ctx.Request.Context(), projectID)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	res := &ListFilesResponse{Files: make([]FileInfo, 0, len(infos))}
	for _, info := range infos {
		res.Files = append(res.Files, FileInfo{Name: info.Name, ModifiedAt: info.ModifiedAt, Size: info.Size})
	}
	ctx.PureJSON(http.StatusOK, res)
}

func (h *FilesHandler) Get(ctx *gin.Context) {
	projectID, name, ok := h.fileParams(ctx, http.StatusNotFound)
	if !ok {
		return
	}

	file, err := h.files.Get(ctx.Request.Context(), projectID, name)
	if errors.Is(err, filestore.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, fmt.Errorf("file %q not found", name))
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &FileContent{
		Name:       file.Name,
		Content:    string(file.Content),
		ModifiedAt: file.ModifiedAt,
	})
}

// Put stores a file. Uploads are refused while another client holds a live lease.
func (h *FilesHandler) Put(ctx *gin.Context) {
	projectID, name, ok := h.fileParams(ctx, http.StatusBadRequest)
	if !ok {
		return
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxFileBytes*6+bodyOverhead)
	raw, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.abortTooLarge(ctx)
			return
		}
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	// the JSON decoder would silently swap invalid bytes for U+FFFD
	if !utf8.Valid(raw) {
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "content is not valid UTF-8")
		return
	}

	var req PutFileRequest
	if err := binding.JSON.BindBody(raw, &req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	content := []byte(*req.Content)
	if int64(len(content)) > h.maxFileBytes {
		h.abortTooLarge(ctx)
		return
	}

	var info *filestore.FileInfo
	err = h.locks.GuardWrite(ctx.Request.Context(), projectID, ctx.GetHeader(api.HeaderClientID), func() error {
		var err error
		info, err = h.files.Put(ctx.Request.Context(), projectID, name, content)
		return err
	})

	var heldErr *lockstore.HeldError
	if errors.As(err, &heldErr) {
		api.AbortWithError(ctx, http.StatusConflict, api.CodeLockHeld,
			fmt.Errorf("project %s is locked by %s", projectID, heldErr.Lease.ClientID))
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &PutFileResponse{Name: info.Name, ModifiedAt: info.ModifiedAt})
}

func (h *FilesHandler) abortTooLarge(ctx *gin.Context) {
	api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeFileTooLarge,
		fmt.Errorf("file exceeds %s", humanize.IBytes(uint64(h.maxFileBytes))))
}

func (h *FilesHandler) projectParam(ctx *gin.Context) (string, bool) {
	projectID := ctx.Param("project")
	if !utils.IsValidProjectID(projectID) {
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "invalid project id")
		return "", false
	}
	return projectID, true
}

// fileParams rejects untracked names with badNameStatus: reads answer 404, writes 400
func (h *FilesHandler) fileParams(ctx *gin.Context, badNameStatus int) (string, string, bool) {
	projectID, ok := h.projectParam(ctx)
	if !ok {
		return "", "", false
	}

	name := ctx.Param("name")
	if !h.tracked.Contains(name) {
		api.AbortWithError(ctx, badNameStatus, api.CodeFileInvalidName, fmt.Errorf("%q is not a tracked file", name))
		return "", "", false
	}
	return projectID, name, true
}
