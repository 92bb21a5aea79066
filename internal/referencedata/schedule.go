package referencedata

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"lmis-backend/internal/database"
	"lmis-backend/internal/models"
)

const dateLayout = "2006-01-02"

// ValidatePeriod checks the period's dates and, for a new period of a
// schedule that already has periods, that it starts the day after the
// latest one ends.
func ValidatePeriod(tx *gorm.DB, p *models.ProcessingPeriod, creating bool) error {
	if p.StartDate.IsZero() {
		return errors.NotValidf("empty startDate")
	}
	if p.EndDate.IsZero() {
		return errors.NotValidf("empty endDate")
	}
	if !p.EndDate.After(p.StartDate) {
		return errors.NotValidf("endDate %s not after startDate %s",
			p.EndDate.Format(dateLayout), p.StartDate.Format(dateLayout))
	}
	if !creating {
		return nil
	}

	var last models.ProcessingPeriod
	err := tx.Where("processing_schedule_id = ?", p.ProcessingScheduleID).
		Order("start_date DESC").
		First(&last).Error
	if database.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return errors.Trace(err)
	}

	expected := truncateDay(last.EndDate).AddDate(0, 0, 1)
	if !truncateDay(p.StartDate).Equal(expected) {
		return errors.NotValidf("startDate %s, expected %s",
			p.StartDate.Format(dateLayout), expected.Format(dateLayout))
	}
	return nil
}

// GET /api/processingSchedules/:id/difference
func ScheduleDifferenceHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ParseID(c, "id")
		if err != nil {
			return err
		}

		var schedule models.ProcessingSchedule
		if err := db.WithContext(c.UserContext()).First(&schedule, "id = ?", id).Error; err != nil {
			if database.IsNotFound(err) {
				return fiber.NewError(fiber.StatusNotFound, "processingSchedule not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "cannot load processing schedule")
		}

		var periods []models.ProcessingPeriod
		if err := db.WithContext(c.UserContext()).
			Where("processing_schedule_id = ?", id).
			Order("start_date").
			Find(&periods).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "cannot load processing periods")
		}

		months, days := 0, 0
		if len(periods) > 0 {
			months, days = MonthsAndDays(periods[0].StartDate, periods[len(periods)-1].EndDate)
		}
		return c.JSON(fiber.Map{
			"months":  months,
			"days":    days,
			"message": fmt.Sprintf("Period lasts %d months and %d days", months, days),
		})
	}
}

// GET /api/processingPeriods/search?processingSchedule=<id>&toDate=2017-01-31
func SearchPeriodsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheduleID, ok, err := ParseOptionalID(c, "processingSchedule")
		if err != nil {
			return err
		}
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "processingSchedule is required")
		}

		q := db.WithContext(c.UserContext()).Where("processing_schedule_id = ?", scheduleID)
		if raw := c.Query("toDate"); raw != "" {
			toDate, err := time.Parse(dateLayout, raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid toDate, expected YYYY-MM-DD")
			}
			q = q.Where("start_date < ?", toDate)
		}

		var periods []models.ProcessingPeriod
		if err := q.Order("start_date DESC").Find(&periods).Error; err != nil {
			logger.Errorf("searching periods: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "cannot search processing periods")
		}
		return c.JSON(periods)
	}
}

// MonthsAndDays splits the calendar distance between from and to into
// whole months and remaining days. Month arithmetic clamps to the end of
// shorter months, so Jan 31 plus one month is Feb 28 or 29.
func MonthsAndDays(from, to time.Time) (int, int) {
	from, to = truncateDay(from), truncateDay(to)
	if to.Before(from) {
		return 0, 0
	}

	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if addMonths(from, months).After(to) {
		months--
	}
	anchor := addMonths(from, months)
	days := int(to.Sub(anchor).Hours() / 24)
	return months, days
}

func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
