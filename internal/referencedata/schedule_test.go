package referencedata

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"lmis-backend/internal/models"
)

type scheduleSuite struct {
	baseSuite
	schedule models.ProcessingSchedule
}

var _ = gc.Suite(&scheduleSuite{})

func (s *scheduleSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	s.schedule = models.ProcessingSchedule{Code: "SCH001", Name: "Monthly"}
	c.Assert(s.db.Create(&s.schedule).Error, jc.ErrorIsNil)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *scheduleSuite) createPeriod(c *gc.C, name string, start, end time.Time) (int, map[string]any) {
	code, data := s.do(c, "POST", "/api/processingPeriods", map[string]any{
		"processingScheduleId": s.schedule.ID,
		"name":                 name,
		"startDate":            start,
		"endDate":              end,
	})
	var out map[string]any
	s.decode(c, data, &out)
	return code, out
}

func (s *scheduleSuite) TestModifiedDateSet(c *gc.C) {
	c.Check(s.schedule.ModifiedDate.IsZero(), jc.IsFalse)
}

func (s *scheduleSuite) TestPeriodsMustBeContiguous(c *gc.C) {
	code, out := s.createPeriod(c, "Jan2017", date(2017, 1, 1), date(2017, 1, 31))
	c.Assert(code, gc.Equals, fiber.StatusCreated, gc.Commentf("%v", out))

	code, out = s.createPeriod(c, "Mar2017", date(2017, 3, 1), date(2017, 3, 31))
	c.Assert(code, gc.Equals, fiber.StatusBadRequest)
	c.Check(out["error"], gc.Equals, "startDate 2017-03-01, expected 2017-02-01 not valid")

	code, _ = s.createPeriod(c, "Feb2017", date(2017, 2, 1), date(2017, 2, 28))
	c.Assert(code, gc.Equals, fiber.StatusCreated)
}

func (s *scheduleSuite) TestPeriodEndBeforeStart(c *gc.C) {
	code, out := s.createPeriod(c, "Bad", date(2017, 2, 1), date(2017, 1, 1))
	c.Assert(code, gc.Equals, fiber.StatusBadRequest)
	c.Check(out["error"], gc.Equals, "endDate 2017-01-01 not after startDate 2017-02-01 not valid")
}

func (s *scheduleSuite) TestDifference(c *gc.C) {
	code, out := s.do(c, "GET", "/api/processingSchedules/"+s.schedule.ID.String()+"/difference", nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	c.Check(string(out), jc.Contains, "Period lasts 0 months and 0 days")

	for _, p := range []struct {
		name       string
		start, end time.Time
	}{
		{"Jan2017", date(2017, 1, 1), date(2017, 1, 31)},
		{"Feb2017", date(2017, 2, 1), date(2017, 2, 28)},
		{"Mar2017", date(2017, 3, 1), date(2017, 3, 31)},
	} {
		code, _ := s.createPeriod(c, p.name, p.start, p.end)
		c.Assert(code, gc.Equals, fiber.StatusCreated)
	}

	code, out = s.do(c, "GET", "/api/processingSchedules/"+s.schedule.ID.String()+"/difference", nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	c.Check(string(out), jc.Contains, "Period lasts 2 months and 30 days")

	code, _ = s.do(c, "GET", "/api/processingSchedules/"+uuid.NewString()+"/difference", nil)
	c.Check(code, gc.Equals, fiber.StatusNotFound)
}

func (s *scheduleSuite) TestSearchPeriods(c *gc.C) {
	for _, p := range []struct {
		name       string
		start, end time.Time
	}{
		{"Jan2017", date(2017, 1, 1), date(2017, 1, 31)},
		{"Feb2017", date(2017, 2, 1), date(2017, 2, 28)},
		{"Mar2017", date(2017, 3, 1), date(2017, 3, 31)},
	} {
		code, _ := s.createPeriod(c, p.name, p.start, p.end)
		c.Assert(code, gc.Equals, fiber.StatusCreated)
	}

	code, data := s.do(c, "GET", "/api/processingPeriods/search?processingSchedule="+s.schedule.ID.String()+"&toDate=2017-02-15", nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	var periods []models.ProcessingPeriod
	s.decode(c, data, &periods)
	c.Assert(periods, gc.HasLen, 2)
	c.Check(periods[0].Name, gc.Equals, "Feb2017")
	c.Check(periods[1].Name, gc.Equals, "Jan2017")

	code, data = s.do(c, "GET", "/api/processingPeriods/search?processingSchedule="+s.schedule.ID.String()+"&toDate=2017-03-01", nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	periods = nil
	s.decode(c, data, &periods)
	c.Assert(periods, gc.HasLen, 2)
	c.Check(periods[0].Name, gc.Equals, "Feb2017")

	code, _ = s.do(c, "GET", "/api/processingPeriods/search?processingSchedule="+s.schedule.ID.String()+"&toDate=15.02.2017", nil)
	c.Check(code, gc.Equals, fiber.StatusBadRequest)
}

type monthsAndDaysSuite struct{}

var _ = gc.Suite(&monthsAndDaysSuite{})

func (s *monthsAndDaysSuite) TestMonthsAndDays(c *gc.C) {
	for i, test := range []struct {
		from, to     time.Time
		months, days int
	}{
		{date(2017, 1, 1), date(2017, 1, 1), 0, 0},
		{date(2017, 1, 1), date(2017, 1, 31), 0, 30},
		{date(2017, 1, 1), date(2017, 3, 31), 2, 30},
		{date(2017, 1, 15), date(2017, 3, 10), 1, 23},
		{date(2016, 11, 1), date(2017, 2, 1), 3, 0},
		{date(2017, 1, 31), date(2017, 2, 28), 1, 0},
		{date(2017, 3, 1), date(2017, 1, 1), 0, 0},
	} {
		c.Logf("test %d: %s -> %s", i, test.from.Format(dateLayout), test.to.Format(dateLayout))
		months, days := MonthsAndDays(test.from, test.to)
		c.Check(months, gc.Equals, test.months)
		c.Check(days, gc.Equals, test.days)
	}
}
