package referencedata

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"lmis-backend/internal/models"
)

// GET /api/programProducts/search?program=<id>&fullSupply=true
func SearchProgramProductsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		programID, ok, err := ParseOptionalID(c, "program")
		if err != nil {
			return err
		}
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "program is required")
		}

		q := db.WithContext(c.UserContext()).
			Preload("Product").
			Preload("ProductCategory").
			Where("program_id = ?", programID)

		if raw := c.Query("fullSupply"); raw != "" {
			fullSupply, err := strconv.ParseBool(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid fullSupply")
			}
			q = q.Where("full_supply = ?", fullSupply)
		}

		var items []models.ProgramProduct
		if err := q.Order("display_order").Find(&items).Error; err != nil {
			logger.Errorf("searching program products: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "cannot search program products")
		}
		return c.JSON(items)
	}
}

// GET /api/facilityTypeApprovedProducts/search?facilityType=<id>&program=<id>
func SearchApprovedProductsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		facilityTypeID, ok, err := ParseOptionalID(c, "facilityType")
		if err != nil {
			return err
		}
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "facilityType is required")
		}
		programID, hasProgram, err := ParseOptionalID(c, "program")
		if err != nil {
			return err
		}

		q := db.WithContext(c.UserContext()).
			Preload("ProgramProduct.Product").
			Where("facility_type_approved_products.facility_type_id = ?", facilityTypeID)
		if hasProgram {
			q = q.Joins("JOIN program_products ON program_products.id = facility_type_approved_products.program_product_id").
				Where("program_products.program_id = ?", programID)
		}

		var items []models.FacilityTypeApprovedProduct
		if err := q.Find(&items).Error; err != nil {
			logger.Errorf("searching approved products: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "cannot search approved products")
		}
		return c.JSON(items)
	}
}

func validateApprovedProduct(_ *gorm.DB, a *models.FacilityTypeApprovedProduct, _ bool) error {
	if !a.MaxMonthsOfStock.IsPositive() {
		return errors.NotValidf("maxMonthsOfStock %s", a.MaxMonthsOfStock)
	}
	if a.MinMonthsOfStock.Valid && a.MinMonthsOfStock.Decimal.GreaterThan(a.MaxMonthsOfStock) {
		return errors.NotValidf("minMonthsOfStock above maxMonthsOfStock")
	}
	if a.EmergencyOrderPoint.Valid && a.EmergencyOrderPoint.Decimal.IsNegative() {
		return errors.NotValidf("negative emergencyOrderPoint")
	}
	return nil
}
