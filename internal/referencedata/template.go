package referencedata

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"lmis-backend/internal/models"
)

func validateTemplate(_ *gorm.DB, t *models.RequisitionTemplate, _ bool) error {
	if t.ProgramID == uuid.Nil {
		return errors.NotValidf("requisition template without program")
	}
	names := set.NewStrings()
	for _, col := range t.Columns {
		if col.Name == "" {
			return errors.NotValidf("template column without name")
		}
		if names.Contains(col.Name) {
			return errors.NotValidf("duplicate template column %q", col.Name)
		}
		names.Add(col.Name)
	}
	return nil
}

// GET /api/requisitionTemplates/search?program=<id>
func SearchTemplatesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		programID, ok, err := ParseOptionalID(c, "program")
		if err != nil {
			return err
		}

		q := db.WithContext(c.UserContext()).
			Preload("Columns", func(db *gorm.DB) *gorm.DB { return db.Order("display_order") })
		if ok {
			q = q.Where("program_id = ?", programID)
		}

		var templates []models.RequisitionTemplate
		if err := q.Find(&templates).Error; err != nil {
			logger.Errorf("searching templates: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "cannot search requisition templates")
		}
		return c.JSON(templates)
	}
}
