package inventory

import (
	"sort"
	"strings"

	"gym-backend/internal/config"
	"gym-backend/internal/database"
	"gym-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type LocationResponse struct {
	Name     string `json:"name"`
	Products int    `json:"products"` // products with a ledger entry here
	Units    int    `json:"units"`
	Staff    int    `json:"staff"`
}

type locationStock struct {
	Location string
	Products int
	Units    int
}

type locationStaff struct {
	Location string
	Staff    int
}

// mergeLocations combines ledger and staff counts. Names are trimmed and
// sorted; the default location is always listed.
func mergeLocations(stocks []locationStock, staff []locationStaff, defaultLocation string) []LocationResponse {
	byName := map[string]*LocationResponse{}
	get := func(name string) *LocationResponse {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil
		}
		if l, ok := byName[name]; ok {
			return l
		}
		l := &LocationResponse{Name: name}
		byName[name] = l
		return l
	}

	get(defaultLocation)
	for _, s := range stocks {
		if l := get(s.Location); l != nil {
			l.Products += s.Products
			l.Units += s.Units
		}
	}
	for _, s := range staff {
		if l := get(s.Location); l != nil {
			l.Staff += s.Staff
		}
	}

	out := make([]LocationResponse, 0, len(byName))
	for _, l := range byName {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GET /api/locations
func ListLocationsHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		db := database.DB.WithContext(c.UserContext())

		var stocks []locationStock
		if err := db.Model(&models.ProductStock{}).
			Select("location, COUNT(*) AS products, COALESCE(SUM(quantity), 0) AS units").
			Group("location").
			Scan(&stocks).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list locations")
		}

		var staff []locationStaff
		if err := db.Model(&models.User{}).
			Select("assigned_gym AS location, COUNT(*) AS staff").
			Where("assigned_gym <> ''").
			Group("assigned_gym").
			Scan(&staff).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list locations")
		}

		return c.JSON(mergeLocations(stocks, staff, cfg.DefaultLocation))
	}
}
