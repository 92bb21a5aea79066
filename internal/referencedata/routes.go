package referencedata

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lmis-backend/internal/models"
)

// RegisterRoutes mounts every reference data resource under api. Writes
// require the guard handler, reads only authentication.
func RegisterRoutes(api fiber.Router, db *gorm.DB, guard fiber.Handler) {
	Resource[models.GeographicLevel, *models.GeographicLevel]{
		EntityType: "geographicLevel",
		Order:      "level_number",
	}.Register(api.Group("/geographicLevels"), db, guard)

	Resource[models.GeographicZone, *models.GeographicZone]{
		EntityType: "geographicZone",
		Preloads:   []string{"Level", "Parent"},
		Order:      "code",
	}.Register(api.Group("/geographicZones"), db, guard)

	Resource[models.FacilityType, *models.FacilityType]{
		EntityType: "facilityType",
		Order:      "code",
	}.Register(api.Group("/facilityTypes"), db, guard)

	Resource[models.FacilityOperator, *models.FacilityOperator]{
		EntityType: "facilityOperator",
		Order:      "code",
	}.Register(api.Group("/facilityOperators"), db, guard)

	Resource[models.Facility, *models.Facility]{
		EntityType: "facility",
		Preloads:   []string{"GeographicZone", "Type", "Operator"},
		Order:      "code",
	}.Register(api.Group("/facilities"), db, guard)

	Resource[models.Program, *models.Program]{
		EntityType: "program",
		Order:      "code",
	}.Register(api.Group("/programs"), db, guard)

	Resource[models.ProductCategory, *models.ProductCategory]{
		EntityType: "productCategory",
		Order:      "display_order",
	}.Register(api.Group("/productCategories"), db, guard)

	Resource[models.Product, *models.Product]{
		EntityType: "product",
		Order:      "code",
	}.Register(api.Group("/products"), db, guard)

	programProducts := api.Group("/programProducts")
	programProducts.Get("/search", SearchProgramProductsHandler(db))
	Resource[models.ProgramProduct, *models.ProgramProduct]{
		EntityType: "programProduct",
		Preloads:   []string{"Program", "Product", "ProductCategory"},
		Order:      "display_order",
	}.Register(programProducts, db, guard)

	approvedProducts := api.Group("/facilityTypeApprovedProducts")
	approvedProducts.Get("/search", SearchApprovedProductsHandler(db))
	Resource[models.FacilityTypeApprovedProduct, *models.FacilityTypeApprovedProduct]{
		EntityType: "facilityTypeApprovedProduct",
		Preloads:   []string{"FacilityType", "ProgramProduct.Product"},
		Validate:   validateApprovedProduct,
	}.Register(approvedProducts, db, guard)

	schedules := api.Group("/processingSchedules")
	schedules.Get("/:id/difference", ScheduleDifferenceHandler(db))
	Resource[models.ProcessingSchedule, *models.ProcessingSchedule]{
		EntityType: "processingSchedule",
		Order:      "code",
	}.Register(schedules, db, guard)

	periods := api.Group("/processingPeriods")
	periods.Get("/search", SearchPeriodsHandler(db))
	Resource[models.ProcessingPeriod, *models.ProcessingPeriod]{
		EntityType: "processingPeriod",
		Preloads:   []string{"ProcessingSchedule"},
		Order:      "start_date",
		Validate:   ValidatePeriod,
	}.Register(periods, db, guard)

	Resource[models.SupervisoryNode, *models.SupervisoryNode]{
		EntityType: "supervisoryNode",
		Preloads:   []string{"Facility", "Parent", "Children"},
		Order:      "code",
		Validate:   validateSupervisoryNode,
	}.Register(api.Group("/supervisoryNodes"), db, guard)

	Resource[models.RequisitionGroup, *models.RequisitionGroup]{
		EntityType: "requisitionGroup",
		Preloads:   []string{"SupervisoryNode"},
		Order:      "code",
	}.Register(api.Group("/requisitionGroups"), db, guard)

	Resource[models.RequisitionGroupProgramSchedule, *models.RequisitionGroupProgramSchedule]{
		EntityType: "requisitionGroupProgramSchedule",
		Preloads:   []string{"RequisitionGroup", "Program", "ProcessingSchedule", "DropOffFacility"},
	}.Register(api.Group("/requisitionGroupProgramSchedules"), db, guard)

	Resource[models.Right, *models.Right]{
		EntityType: "right",
		Order:      "name",
	}.Register(api.Group("/rights"), db, guard)

	Resource[models.Role, *models.Role]{
		EntityType: "role",
		Preloads:   []string{"Rights"},
		Order:      "name",
	}.Register(api.Group("/roles"), db, guard)

	templates := api.Group("/requisitionTemplates")
	templates.Get("/search", SearchTemplatesHandler(db))
	Resource[models.RequisitionTemplate, *models.RequisitionTemplate]{
		EntityType: "requisitionTemplate",
		Preloads:   []string{"Program", "Columns"},
		Validate:   validateTemplate,
	}.Register(templates, db, guard)

	Resource[models.ConfigurationSetting, *models.ConfigurationSetting]{
		EntityType: "configurationSetting",
		Order:      "key",
	}.Register(api.Group("/configurationSettings"), db, guard)
}
