package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"indi-radio-go/internal/service"

	"github.com/gin-gonic/gin"
)

// AudioHandler 负责音频的上传、检索、重命名和删除
type AudioHandler struct {
	audioService   service.AudioService
	maxUploadBytes int64
}

func NewAudioHandler(audioService service.AudioService, maxUploadBytes int64) *AudioHandler {
	return &AudioHandler{audioService: audioService, maxUploadBytes: maxUploadBytes}
}

// Upload 处理 multipart 批量上传，字段 files 可重复出现
func (h *AudioHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	headers := append(form.File["files"], form.File["files[]"]...)
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}

	report, err := h.audioService.Upload(c.Request.Context(), service.AudioUploadRequest{
		Files:       files,
		Date:        c.PostForm("date"),
		ContentType: c.PostForm("type"),
		Channel:     c.PostForm("channel"),
		Region:      c.PostForm("region"),
		UserID:      userID,
	})
	if err != nil {
		respondError(c, "AudioUpload", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func uploadFile(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// List 按条件分页检索音频
func (h *AudioHandler) List(c *gin.Context) {
	clips, total, err := h.audioService.Search(c.Request.Context(), service.AudioClipQuery{
		Date:        c.Query("date"),
		ContentType: c.Query("type"),
		Channel:     c.Query("channel"),
		Region:      c.Query("region"),
		Name:        c.Query("name"),
		Pagination:  pagination(c),
	})
	if err != nil {
		respondError(c, "AudioList", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Audio clips retrieved successfully",
		"data":    clips,
		"total":   total,
	})
}

type renameRequest struct {
	FileName string `json:"fileName"`
}

func (h *AudioHandler) Rename(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	clip, err := h.audioService.Rename(c.Request.Context(), id, req.FileName, userID)
	if err != nil {
		respondError(c, "AudioRename", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "File name updated successfully",
		"data":    clip,
	})
}

func (h *AudioHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.audioService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, "AudioDelete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Audio clip deleted successfully"})
}
