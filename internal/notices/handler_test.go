package notices

import (
	"testing"
	"time"

	"gym-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func TestApplyUpdate(t *testing.T) {
	base := func() *models.Notice {
		return &models.Notice{ID: 1, Title: "Horarios", Content: "Abrimos 7am", IsActive: true}
	}

	n := base()
	changed, err := applyUpdate(n, UpdateNoticeRequest{Title: strp("  Horarios  ")})
	require.NoError(t, err)
	assert.False(t, changed)

	n = base()
	changed, err = applyUpdate(n, UpdateNoticeRequest{Content: strp("Abrimos 6am"), IsActive: boolp(false)})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Abrimos 6am", n.Content)
	assert.False(t, n.IsActive)

	_, err = applyUpdate(base(), UpdateNoticeRequest{Title: strp(" ")})
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusBadRequest, fe.Code)

	_, err = applyUpdate(base(), UpdateNoticeRequest{Content: strp("")})
	assert.Error(t, err)
}

func TestToNoticeResponse(t *testing.T) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.FixedZone("ART", -3*3600))
	resp := toNoticeResponse(&models.Notice{ID: 2, Title: "t", Content: "c", UserID: 9, CreatedAt: at, UpdatedAt: at})
	assert.Equal(t, "2026-05-04T15:00:00Z", resp.CreatedAt)
	assert.Equal(t, uint(9), resp.UserID)
	assert.False(t, resp.IsActive)
}
