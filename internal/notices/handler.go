package notices

import (
	"context"
	"strings"
	"time"

	"gym-backend/internal/audit"
	"gym-backend/internal/auth"
	"gym-backend/internal/database"
	"gym-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type NoticeResponse struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	IsActive  bool   `json:"isActive"`
	UserID    uint   `json:"user"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type CreateNoticeRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsActive *bool  `json:"isActive"`
}

type UpdateNoticeRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	IsActive *bool   `json:"isActive"`
}

func toNoticeResponse(n *models.Notice) NoticeResponse {
	return NoticeResponse{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		IsActive:  n.IsActive,
		UserID:    n.UserID,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// applyUpdate validates body against n and reports whether anything changed.
func applyUpdate(n *models.Notice, body UpdateNoticeRequest) (bool, error) {
	changed := false
	if body.Title != nil {
		t := strings.TrimSpace(*body.Title)
		if t == "" {
			return false, fiber.NewError(fiber.StatusBadRequest, "Title cannot be empty")
		}
		changed = changed || t != n.Title
		n.Title = t
	}
	if body.Content != nil {
		ct := strings.TrimSpace(*body.Content)
		if ct == "" {
			return false, fiber.NewError(fiber.StatusBadRequest, "Content cannot be empty")
		}
		changed = changed || ct != n.Content
		n.Content = ct
	}
	if body.IsActive != nil {
		changed = changed || *body.IsActive != n.IsActive
		n.IsActive = *body.IsActive
	}
	return changed, nil
}

// GET /api/notices (public; ?all=true includes inactive ones)
func ListNoticesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Notice{})
		if c.Query("all") != "true" {
			dbq = dbq.Where("is_active = ?", true)
		}

		var list []models.Notice
		if err := dbq.Order("created_at DESC").Find(&list).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list notices")
		}

		resp := make([]NoticeResponse, 0, len(list))
		for i := range list {
			resp = append(resp, toNoticeResponse(&list[i]))
		}
		return c.JSON(resp)
	}
}

func findNotice(c *fiber.Ctx) (*models.Notice, error) {
	var n models.Notice
	if err := database.DB.WithContext(c.UserContext()).First(&n, "id = ?", c.Params("id")).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Notice not found")
	}
	return &n, nil
}

// GET /api/notices/:id
func GetNoticeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := findNotice(c)
		if err != nil {
			return err
		}
		return c.JSON(toNoticeResponse(n))
	}
}

// POST /api/notices
func CreateNoticeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := auth.CurrentIdentity(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
		}

		var body CreateNoticeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Title = strings.TrimSpace(body.Title)
		body.Content = strings.TrimSpace(body.Content)
		if body.Title == "" || body.Content == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Title and content are required")
		}

		n := models.Notice{
			Title:    body.Title,
			Content:  body.Content,
			IsActive: body.IsActive == nil || *body.IsActive,
			UserID:   who.UserID,
		}
		ctx := c.UserContext()
		if err := database.DB.WithContext(ctx).Create(&n).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create notice")
		}

		writeAudit(ctx, who, n.ID, models.AuditActionCreate, nil, toNoticeResponse(&n), "Notice created: "+n.Title)
		return c.Status(fiber.StatusCreated).JSON(toNoticeResponse(&n))
	}
}

// PUT /api/notices/:id
func UpdateNoticeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := findNotice(c)
		if err != nil {
			return err
		}
		before := toNoticeResponse(n)

		var body UpdateNoticeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		changed, err := applyUpdate(n, body)
		if err != nil {
			return err
		}
		if !changed {
			return c.JSON(before)
		}

		ctx := c.UserContext()
		if err := database.DB.WithContext(ctx).Model(n).Updates(map[string]interface{}{
			"title":     n.Title,
			"content":   n.Content,
			"is_active": n.IsActive,
		}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update notice")
		}

		who, _ := auth.CurrentIdentity(c)
		writeAudit(ctx, who, n.ID, models.AuditActionUpdate, before, toNoticeResponse(n), "Notice updated: "+n.Title)
		return c.JSON(toNoticeResponse(n))
	}
}

// PUT /api/notices/:id/toggle
func ToggleNoticeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := findNotice(c)
		if err != nil {
			return err
		}
		before := toNoticeResponse(n)
		n.IsActive = !n.IsActive

		ctx := c.UserContext()
		if err := database.DB.WithContext(ctx).Model(n).Update("is_active", n.IsActive).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update notice")
		}

		who, _ := auth.CurrentIdentity(c)
		writeAudit(ctx, who, n.ID, models.AuditActionUpdate, before, toNoticeResponse(n), "Notice toggled: "+n.Title)
		return c.JSON(toNoticeResponse(n))
	}
}

// DELETE /api/notices/:id
func DeleteNoticeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := findNotice(c)
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		if err := database.DB.WithContext(ctx).Delete(&models.Notice{}, n.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete notice")
		}

		who, _ := auth.CurrentIdentity(c)
		writeAudit(ctx, who, n.ID, models.AuditActionDelete, toNoticeResponse(n), nil, "Notice deleted: "+n.Title)
		return c.JSON(fiber.Map{"id": n.ID})
	}
}

func writeAudit(ctx context.Context, who auth.Identity, id uint, action models.AuditAction, before, after any, desc string) {
	if err := audit.WriteLog(ctx, audit.LogOptions{
		UserID:      who.UserID,
		UserName:    who.Name,
		EntityType:  "notice",
		EntityID:    id,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	}); err != nil {
		zap.S().Warnw("audit log write failed", "notice_id", id, "error", err)
	}
}
