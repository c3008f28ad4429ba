package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"poll_web/internal/service"
)

// RoomHandler 處理與投票房間相關的請求
type RoomHandler struct {
	roomService *service.RoomService
	pollService *service.PollService
}

// NewRoomHandler 創建一個新的 RoomHandler 實例
func NewRoomHandler(roomService *service.RoomService, pollService *service.PollService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		pollService: pollService,
	}
}

// CreateRoom 處理創建新房間的請求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var input struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.CreateRoom(input.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "創建房間失敗"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"roomCode": room.RoomCode,
		"name":     room.Name,
		"id":       room.ID,
	})
}

// GetRoom 處理獲取房間訊息的請求
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Param("roomCode"))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查詢房間失敗"})
		return
	}

	c.JSON(http.StatusOK, room)
}

// CloseRoom 處理關閉房間的請求
func (h *RoomHandler) CloseRoom(c *gin.Context) {
	err := h.roomService.CloseRoom(c.Param("roomCode"))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "關閉房間失敗"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "房間已關閉"})
}

// GetPollHistory 獲取房間內已完成的題目列表
func (h *RoomHandler) GetPollHistory(c *gin.Context) {
	history, err := h.pollService.GetPollHistory(c.Param("roomCode"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查詢歷史題目失敗"})
		return
	}

	c.JSON(http.StatusOK, history)
}

// GetParticipantReport 獲取房間的個人成績報表
func (h *RoomHandler) GetParticipantReport(c *gin.Context) {
	report, err := h.roomService.GetParticipantReport(c.Param("roomCode"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "產生報表失敗"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// csvRow 將欄位組成一列 CSV，引號以雙寫跳脫
func csvRow(cells ...string) string {
	quoted := make([]string, len(cells))
	for i, cell := range cells {
		quoted[i] = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

// ExportPollCSV 將單一題目的選票與統計匯出為 CSV
func (h *RoomHandler) ExportPollCSV(c *gin.Context) {
	pollID, err := strconv.ParseUint(c.Param("pollId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的題目編號"})
		return
	}

	poll, err := h.pollService.GetPoll(uint(pollID))
	if err != nil {
		if errors.Is(err, service.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查詢題目失敗"})
		return
	}

	rows := []string{
		csvRow("Question", poll.Question),
		csvRow("Type", string(poll.Type)),
		csvRow("Total Votes", strconv.Itoa(len(poll.Votes))),
		csvRow("Timer", fmt.Sprintf("%ds", poll.Timer)),
	}
	if poll.CorrectAnswer != "" {
		rows = append(rows, csvRow("Correct Answer", poll.CorrectAnswer))
	}

	rows = append(rows, csvRow("Participant Name", "Answer", "Correct", "Score", "Time"))
	for _, vote := range poll.Votes {
		correct := "N/A"
		if vote.IsCorrect != nil {
			correct = strconv.FormatBool(*vote.IsCorrect)
		}
		rows = append(rows, csvRow(vote.ParticipantName, vote.Choice, correct,
			strconv.Itoa(vote.Score), vote.VotedAt.Format(time.RFC3339)))
	}

	rows = append(rows, csvRow("Option", "Votes", "Percentage"))
	for _, result := range poll.Results {
		rows = append(rows, csvRow(result.Option, strconv.Itoa(result.Count),
			fmt.Sprintf("%d%%", result.Percentage)))
	}

	filename := fmt.Sprintf("poll-%d-%d.csv", poll.ID, time.Now().UnixMilli())
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.String(http.StatusOK, strings.Join(rows, "\n"))
}
