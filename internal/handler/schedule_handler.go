package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"indi-radio-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ScheduleHandler 负责排期导入、按日期查询、节目单和去重列表
type ScheduleHandler struct {
	scheduleService service.ScheduleService
	maxUploadBytes  int64
}

func NewScheduleHandler(scheduleService service.ScheduleService, maxUploadBytes int64) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService, maxUploadBytes: maxUploadBytes}
}

// Upload 接受 multipart 字段 file 中的 JSON 文件，或直接以 JSON 作为请求体
func (h *ScheduleHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	payload, err := h.readPayload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing JSON file"})
		return
	}

	report, err := h.scheduleService.Ingest(c.Request.Context(), payload)
	if err != nil {
		respondError(c, "ScheduleUpload", err)
		return
	}
	status := http.StatusOK
	if report.Inserted > 0 {
		status = http.StatusCreated
	}
	c.JSON(status, report)
}

func (h *ScheduleHandler) readPayload(c *gin.Context) ([]byte, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return io.ReadAll(c.Request.Body)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ByDate 返回某天的排期，可选 startTime/endTime（HH:MM）过滤
func (h *ScheduleHandler) ByDate(c *gin.Context) {
	page, err := h.scheduleService.ListByDate(c.Request.Context(), service.ScheduleQuery{
		Date:       c.Param("date"),
		StartTime:  c.Query("startTime"),
		EndTime:    c.Query("endTime"),
		Pagination: pagination(c),
	})
	if err != nil {
		respondError(c, "ScheduleByDate", err)
		return
	}

	message := "RadioData retrieved successfully"
	if page.Total == 0 {
		message = "No RadioData found for this date"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    page.Records,
		"total":   page.Total,
	})
}

// EPG 返回节目单视图，hasMore 供前端“加载更多”追加下一页
func (h *ScheduleHandler) EPG(c *gin.Context) {
	page, err := h.scheduleService.ListEPG(c.Request.Context(), service.ScheduleQuery{
		Date:       c.Param("date"),
		StartTime:  c.Query("startTime"),
		EndTime:    c.Query("endTime"),
		Channel:    c.Query("channel"),
		Pagination: pagination(c),
	})
	if err != nil {
		respondError(c, "EPG", err)
		return
	}

	message := "EPG data retrieved successfully"
	if page.Total == 0 {
		message = "No EPG data found"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    page.Records,
		"total":   page.Total,
		"hasMore": page.HasMore,
	})
}

// SaveEPG 按 (date, channel, start) 新增或更新一条节目单
func (h *ScheduleHandler) SaveEPG(c *gin.Context) {
	var entry service.EPGEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	record, err := h.scheduleService.UpsertEPGEntry(c.Request.Context(), entry)
	if err != nil {
		respondError(c, "SaveEPG", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "EPG data saved successfully",
		"data":    record,
	})
}

func (h *ScheduleHandler) Channels(c *gin.Context) {
	channels, err := h.scheduleService.Channels(c.Request.Context())
	if err != nil {
		respondError(c, "Channels", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Channels retrieved successfully",
		"data":    channels,
	})
}

func (h *ScheduleHandler) Dates(c *gin.Context) {
	dates, err := h.scheduleService.Dates(c.Request.Context())
	if err != nil {
		respondError(c, "Dates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Dates retrieved successfully",
		"data":    dates,
	})
}
