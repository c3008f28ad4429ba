package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"poll_web/internal/models"
	"poll_web/internal/repository"
)

// TemplateHandler 處理題組範本的管理請求
type TemplateHandler struct {
	templateRepo repository.TemplateRepository
}

// NewTemplateHandler 創建一個新的 TemplateHandler 實例
func NewTemplateHandler(templateRepo repository.TemplateRepository) *TemplateHandler {
	return &TemplateHandler{templateRepo: templateRepo}
}

// ListTemplates 獲取所有範本
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templateRepo.FindAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查詢範本失敗"})
		return
	}

	c.JSON(http.StatusOK, templates)
}

// SaveTemplate 保存一個新範本
func (h *TemplateHandler) SaveTemplate(c *gin.Context) {
	var input struct {
		Name      string                    `json:"name" binding:"required"`
		Questions []models.TemplateQuestion `json:"questions" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "範本名稱與題目為必填"})
		return
	}

	template := &models.Template{
		Name:      input.Name,
		Questions: input.Questions,
	}
	if err := h.templateRepo.Create(template); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存範本失敗"})
		return
	}

	c.JSON(http.StatusCreated, template)
}

// DeleteTemplate 刪除指定範本
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的範本編號"})
		return
	}

	if err := h.templateRepo.Delete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "刪除範本失敗"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "範本已刪除"})
}
