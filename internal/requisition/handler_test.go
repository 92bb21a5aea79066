package requisition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	jc "github.com/juju/testing/checkers"
	"github.com/xuri/excelize/v2"
	gc "gopkg.in/check.v1"
	"gorm.io/gorm"

	"lmis-backend/internal/auth"
	"lmis-backend/internal/database/databasetest"
	"lmis-backend/internal/httperr"
	"lmis-backend/internal/models"
	"lmis-backend/internal/settings"
)

type transitionCounter map[string]int

func (t transitionCounter) RecordTransition(action string) {
	t[action]++
}

type handlerSuite struct {
	db          *gorm.DB
	app         *fiber.App
	transitions transitionCounter
	now         time.Time

	// userID is the authenticated user of the next request.
	userID uuid.UUID

	facility   models.Facility
	program    models.Program
	product    models.Product
	january    models.ProcessingPeriod
	february   models.ProcessingPeriod
	region     models.SupervisoryNode
	district   models.SupervisoryNode
	clerk      models.User
	supervisor models.User
}

var _ = gc.Suite(&handlerSuite{})

func (s *handlerSuite) SetUpTest(c *gc.C) {
	db, err := databasetest.OpenInMemory()
	c.Assert(err, jc.ErrorIsNil)
	s.db = db
	s.now = time.Date(2017, 3, 2, 9, 30, 0, 0, time.UTC)
	s.transitions = transitionCounter{}
	s.seed(c)
	s.userID = s.clerk.ID

	s.app = fiber.New(fiber.Config{ErrorHandler: httperr.ErrorHandler})
	s.app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, s.userID)
		c.Locals(auth.CtxUsernameKey, "tester")
		return c.Next()
	})
	h := NewHandler(db, testclock.NewClock(s.now), s.transitions)
	h.Register(s.app.Group("/api/requisitions"), nil)
	h.RegisterOrders(s.app.Group("/api/facilities"))
}

func (s *handlerSuite) TearDownTest(c *gc.C) {
	sqlDB, err := s.db.DB()
	c.Assert(err, jc.ErrorIsNil)
	_ = sqlDB.Close()
}

func (s *handlerSuite) create(c *gc.C, v any) {
	c.Assert(s.db.Create(v).Error, jc.ErrorIsNil)
}

func (s *handlerSuite) seed(c *gc.C) {
	level := models.GeographicLevel{Code: "country", Name: "Country", LevelNumber: 1}
	s.create(c, &level)
	zone := models.GeographicZone{Code: "MW", Name: "Malawi", LevelID: level.ID}
	s.create(c, &zone)
	facilityType := models.FacilityType{Code: "health_center", Name: "Health Center"}
	s.create(c, &facilityType)
	s.facility = models.Facility{Code: "HC01", Name: "Comfort Health Clinic", GeographicZoneID: zone.ID, TypeID: facilityType.ID, Active: true, Enabled: true}
	s.create(c, &s.facility)

	s.program = models.Program{Code: "PRG001", Name: "Family Planning"}
	s.create(c, &s.program)
	s.product = models.Product{Code: "C100", PrimaryName: "Levora", DispensingUnit: "10 tab strip", PackSize: 1}
	s.create(c, &s.product)

	schedule := models.ProcessingSchedule{Code: "SCH001", Name: "Monthly"}
	s.create(c, &schedule)
	s.january = models.ProcessingPeriod{
		ProcessingScheduleID: schedule.ID,
		Name:                 "Jan2017",
		StartDate:            time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:              time.Date(2017, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	s.create(c, &s.january)
	s.february = models.ProcessingPeriod{
		ProcessingScheduleID: schedule.ID,
		Name:                 "Feb2017",
		StartDate:            time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:              time.Date(2017, 2, 28, 0, 0, 0, 0, time.UTC),
	}
	s.create(c, &s.february)

	s.region = models.SupervisoryNode{Code: "SN1", Name: "Region", FacilityID: &s.facility.ID}
	s.create(c, &s.region)
	s.district = models.SupervisoryNode{Code: "SN1.1", Name: "District", FacilityID: &s.facility.ID, ParentID: &s.region.ID}
	s.create(c, &s.district)

	s.clerk = models.User{Username: "clerk", Active: true}
	s.create(c, &s.clerk)
	s.supervisor = models.User{Username: "supervisor", Active: true, SupervisedNodeID: &s.region.ID}
	s.create(c, &s.supervisor)
}

func (s *handlerSuite) do(c *gc.C, method, path string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		c.Assert(err, jc.ErrorIsNil)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req, -1)
	c.Assert(err, jc.ErrorIsNil)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	c.Assert(err, jc.ErrorIsNil)
	return resp.StatusCode, data
}

func (s *handlerSuite) decode(c *gc.C, data []byte, v any) {
	c.Assert(json.Unmarshal(data, v), jc.ErrorIsNil, gc.Commentf("body: %s", data))
}

func (s *handlerSuite) errorOf(c *gc.C, data []byte) string {
	var out map[string]string
	s.decode(c, data, &out)
	return out["error"]
}

func (s *handlerSuite) initiate(c *gc.C, period models.ProcessingPeriod) models.Requisition {
	code, data := s.do(c, "POST", "/api/requisitions/initiate", map[string]any{
		"facilityId":         s.facility.ID,
		"programId":          s.program.ID,
		"processingPeriodId": period.ID,
		"supervisoryNodeId":  s.district.ID,
		"requisitionLines":   []map[string]any{{"productId": s.product.ID}},
	})
	c.Assert(code, gc.Equals, fiber.StatusCreated, gc.Commentf("%s", data))
	var req models.Requisition
	s.decode(c, data, &req)
	return req
}

func (s *handlerSuite) lineValues(received, consumed int) map[string]any {
	return map[string]any{
		"requisitionLines": []map[string]any{{
			"productId":             s.product.ID,
			"totalReceivedQuantity": received,
			"totalConsumedQuantity": consumed,
			"requestedQuantity":     50,
		}},
	}
}

func (s *handlerSuite) put(c *gc.C, id uuid.UUID, action string, body any) (int, models.Requisition, []byte) {
	code, data := s.do(c, "PUT", fmt.Sprintf("/api/requisitions/%s/%s", id, action), body)
	var req models.Requisition
	if code == fiber.StatusOK {
		s.decode(c, data, &req)
	}
	return code, req, data
}

func (s *handlerSuite) TestWorkflow(c *gc.C) {
	req := s.initiate(c, s.february)
	c.Check(req.Status, gc.Equals, models.StatusInitiated)
	c.Assert(req.Lines, gc.HasLen, 1)
	c.Check(*req.Lines[0].BeginningBalance, gc.Equals, 0)
	c.Check(*req.Lines[0].TotalReceivedQuantity, gc.Equals, 0)

	code, req, data := s.put(c, req.ID, "submit", s.lineValues(30, 12))
	c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))
	c.Check(req.Status, gc.Equals, models.StatusSubmitted)
	c.Check(*req.Lines[0].StockOnHand, gc.Equals, 18)

	code, req, data = s.put(c, req.ID, "authorize", s.lineValues(30, 10))
	c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))
	c.Check(req.Status, gc.Equals, models.StatusAuthorized)
	c.Check(*req.Lines[0].StockOnHand, gc.Equals, 20)

	code, data = s.do(c, "GET", "/api/requisitions/search?status=AUTHORIZED&facility="+s.facility.ID.String(), nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	var found []models.Requisition
	s.decode(c, data, &found)
	c.Assert(found, gc.HasLen, 1)
	c.Check(found[0].ID, gc.Equals, req.ID)

	s.userID = s.supervisor.ID
	code, data = s.do(c, "GET", "/api/requisitions/requisitionsForApproval", nil)
	c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))
	found = nil
	s.decode(c, data, &found)
	c.Assert(found, gc.HasLen, 1)
	c.Check(found[0].ID, gc.Equals, req.ID)

	code, req, _ = s.put(c, req.ID, "reject", nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	c.Check(req.Status, gc.Equals, models.StatusInitiated)

	code, data = s.do(c, "GET", "/api/requisitions/"+req.ID.String()+"/statusChanges", nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	var changes []models.StatusChange
	s.decode(c, data, &changes)
	c.Check(changes, gc.HasLen, 4)

	c.Check(s.transitions, jc.DeepEquals, transitionCounter{"initiate": 1, "submit": 1, "authorize": 1, "reject": 1})

	var logs int64
	c.Assert(s.db.Model(&models.AuditLog{}).Where("entity_id = ?", req.ID).Count(&logs).Error, jc.ErrorIsNil)
	c.Check(logs, gc.Equals, int64(4))
}

func (s *handlerSuite) TestInitiateCarriesPreviousStock(c *gc.C) {
	prior := models.Requisition{
		CreatedDate:        s.now,
		FacilityID:         s.facility.ID,
		ProgramID:          s.program.ID,
		ProcessingPeriodID: s.january.ID,
		Status:             models.StatusReleased,
	}
	s.create(c, &prior)
	s.create(c, &models.RequisitionLine{RequisitionID: prior.ID, ProductID: s.product.ID, StockOnHand: intPtr(15)})

	req := s.initiate(c, s.february)
	c.Assert(req.Lines, gc.HasLen, 1)
	c.Check(*req.Lines[0].BeginningBalance, gc.Equals, 15)

	code, req, data := s.put(c, req.ID, "submit", map[string]any{
		"requisitionLines": []map[string]any{{
			"productId":        s.product.ID,
			"beginningBalance": 99,
		}},
	})
	c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))
	c.Check(*req.Lines[0].BeginningBalance, gc.Equals, 15)
}

func (s *handlerSuite) TestInitiateTwiceConflicts(c *gc.C) {
	s.initiate(c, s.february)

	code, data := s.do(c, "POST", "/api/requisitions/initiate", map[string]any{
		"facilityId":         s.facility.ID,
		"programId":          s.program.ID,
		"processingPeriodId": s.february.ID,
	})
	c.Assert(code, gc.Equals, fiber.StatusConflict)
	c.Check(s.errorOf(c, data), jc.Contains, "already exists")
}

func (s *handlerSuite) TestSubmitTwiceIsBadStatus(c *gc.C) {
	req := s.initiate(c, s.february)
	code, _, _ := s.put(c, req.ID, "submit", s.lineValues(1, 1))
	c.Assert(code, gc.Equals, fiber.StatusOK)

	code, _, data := s.put(c, req.ID, "submit", s.lineValues(1, 1))
	c.Assert(code, gc.Equals, fiber.StatusBadRequest)
	c.Check(s.errorOf(c, data), jc.Contains, "requisition has bad status")
}

func (s *handlerSuite) TestNegativeStockOnHandBlocksOnlyAuthorize(c *gc.C) {
	req := s.initiate(c, s.february)
	code, req, data := s.put(c, req.ID, "submit", s.lineValues(1, 5))
	c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))
	c.Check(req.Status, gc.Equals, models.StatusSubmitted)
	c.Check(*req.Lines[0].StockOnHand, gc.Equals, -4)

	code, _, data = s.put(c, req.ID, "authorize", s.lineValues(1, 5))
	c.Assert(code, gc.Equals, fiber.StatusBadRequest)
	c.Check(s.errorOf(c, data), jc.Contains, "stockOnHand of product")

	var stored models.Requisition
	c.Assert(s.db.First(&stored, "id = ?", req.ID).Error, jc.ErrorIsNil)
	c.Check(stored.Status, gc.Equals, models.StatusSubmitted)
}

func (s *handlerSuite) TestAuthorizeSkippedBySetting(c *gc.C) {
	s.create(c, &models.ConfigurationSetting{Key: settings.SkipAuthorization, Value: "true"})
	req := s.initiate(c, s.february)
	code, _, _ := s.put(c, req.ID, "submit", s.lineValues(1, 1))
	c.Assert(code, gc.Equals, fiber.StatusOK)

	code, _, data := s.put(c, req.ID, "authorize", s.lineValues(1, 1))
	c.Assert(code, gc.Equals, fiber.StatusBadRequest)
	c.Check(s.errorOf(c, data), gc.Equals, string(ErrAuthorizationSkipped))
}

func (s *handlerSuite) TestSkip(c *gc.C) {
	req := s.initiate(c, s.february)
	code, _, data := s.put(c, req.ID, "skip", nil)
	c.Assert(code, gc.Equals, fiber.StatusBadRequest)
	c.Check(s.errorOf(c, data), jc.Contains, "skip failed")

	c.Assert(s.db.Model(&s.program).Update("periods_skippable", true).Error, jc.ErrorIsNil)
	code, req, _ = s.put(c, req.ID, "skip", nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	c.Check(req.Status, gc.Equals, models.StatusSkipped)
}

func (s *handlerSuite) TestReleaseAsOrderIsAllOrNothing(c *gc.C) {
	req := s.initiate(c, s.february)

	code, data := s.do(c, "POST", "/api/requisitions/releaseAsOrder", []uuid.UUID{req.ID, uuid.New()})
	c.Assert(code, gc.Equals, fiber.StatusNotFound, gc.Commentf("%s", data))

	var stored models.Requisition
	c.Assert(s.db.First(&stored, "id = ?", req.ID).Error, jc.ErrorIsNil)
	c.Check(stored.Status, gc.Equals, models.StatusInitiated)

	code, data = s.do(c, "POST", "/api/requisitions/releaseAsOrder", []uuid.UUID{req.ID})
	c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))
	var released []models.Requisition
	s.decode(c, data, &released)
	c.Assert(released, gc.HasLen, 1)
	c.Check(released[0].Status, gc.Equals, models.StatusReleased)

	code, data = s.do(c, "GET", "/api/requisitions/search?supplyingFacility="+s.facility.ID.String(), nil)
	c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))
	var found []models.Requisition
	s.decode(c, data, &found)
	c.Assert(found, gc.HasLen, 1)
	c.Check(found[0].Status, gc.Equals, models.StatusReleased)
}

func (s *handlerSuite) TestFacilityOrders(c *gc.C) {
	january := s.initiate(c, s.january)
	s.initiate(c, s.february)

	code, data := s.do(c, "POST", "/api/requisitions/releaseAsOrder", []uuid.UUID{january.ID})
	c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))

	for i, test := range []struct {
		query string
		want  int
	}{
		{"", 1},
		{"?program=" + s.program.ID.String(), 1},
		{"?facility=" + s.facility.ID.String(), 1},
		{"?program=" + uuid.NewString(), 0},
	} {
		c.Logf("test %d: %q", i, test.query)
		code, data := s.do(c, "GET", "/api/facilities/"+s.facility.ID.String()+"/requisitions"+test.query, nil)
		c.Assert(code, gc.Equals, fiber.StatusOK, gc.Commentf("%s", data))
		var found []models.Requisition
		s.decode(c, data, &found)
		c.Check(found, gc.HasLen, test.want)
	}

	code, _ = s.do(c, "GET", "/api/facilities/"+uuid.NewString()+"/requisitions", nil)
	c.Check(code, gc.Equals, fiber.StatusOK)
	code, _ = s.do(c, "GET", "/api/facilities/nope/requisitions", nil)
	c.Check(code, gc.Equals, fiber.StatusBadRequest)
}

func (s *handlerSuite) TestDelete(c *gc.C) {
	req := s.initiate(c, s.february)
	code, _ := s.do(c, "POST", "/api/requisitions/"+req.ID.String()+"/comments", map[string]string{"body": "first"})
	c.Assert(code, gc.Equals, fiber.StatusCreated)

	code, _ = s.do(c, "DELETE", "/api/requisitions/"+req.ID.String(), nil)
	c.Assert(code, gc.Equals, fiber.StatusNoContent)

	code, _ = s.do(c, "GET", "/api/requisitions/"+req.ID.String(), nil)
	c.Check(code, gc.Equals, fiber.StatusNotFound)

	var lines int64
	c.Assert(s.db.Model(&models.RequisitionLine{}).Where("requisition_id = ?", req.ID).Count(&lines).Error, jc.ErrorIsNil)
	c.Check(lines, gc.Equals, int64(0))
}

func (s *handlerSuite) TestDeleteSubmittedIsBadStatus(c *gc.C) {
	req := s.initiate(c, s.february)
	code, _, _ := s.put(c, req.ID, "submit", s.lineValues(1, 1))
	c.Assert(code, gc.Equals, fiber.StatusOK)

	code, _ = s.do(c, "DELETE", "/api/requisitions/"+req.ID.String(), nil)
	c.Check(code, gc.Equals, fiber.StatusBadRequest)
}

func (s *handlerSuite) TestComments(c *gc.C) {
	req := s.initiate(c, s.february)
	path := "/api/requisitions/" + req.ID.String() + "/comments"

	code, _ := s.do(c, "POST", path, map[string]string{"body": "stock-out expected"})
	c.Assert(code, gc.Equals, fiber.StatusCreated)
	code, _ = s.do(c, "POST", path, map[string]string{"body": ""})
	c.Check(code, gc.Equals, fiber.StatusBadRequest)

	code, data := s.do(c, "GET", path, nil)
	c.Assert(code, gc.Equals, fiber.StatusOK)
	var comments []models.Comment
	s.decode(c, data, &comments)
	c.Assert(comments, gc.HasLen, 1)
	c.Check(comments[0].Body, gc.Equals, "stock-out expected")
	c.Check(comments[0].AuthorID, gc.Equals, s.clerk.ID)

	code, _ = s.do(c, "GET", "/api/requisitions/"+uuid.NewString()+"/comments", nil)
	c.Check(code, gc.Equals, fiber.StatusNotFound)
}

func (s *handlerSuite) TestGetInvalidID(c *gc.C) {
	code, _ := s.do(c, "GET", "/api/requisitions/not-a-uuid", nil)
	c.Check(code, gc.Equals, fiber.StatusBadRequest)
}

func (s *handlerSuite) TestExport(c *gc.C) {
	req := s.initiate(c, s.february)
	code, _, _ := s.put(c, req.ID, "submit", s.lineValues(30, 12))
	c.Assert(code, gc.Equals, fiber.StatusOK)

	httpReq := httptest.NewRequest("GET", "/api/requisitions/"+req.ID.String()+"/export", nil)
	resp, err := s.app.Test(httpReq, -1)
	c.Assert(err, jc.ErrorIsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, gc.Equals, fiber.StatusOK)
	c.Check(resp.Header.Get(fiber.HeaderContentType), gc.Equals, xlsxContentType)

	f, err := excelize.OpenReader(resp.Body)
	c.Assert(err, jc.ErrorIsNil)
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	c.Assert(err, jc.ErrorIsNil)

	var header, line []string
	for i, row := range rows {
		if len(row) > 0 && row[0] == exportColumns[0] {
			header = row
			c.Assert(len(rows) > i+1, jc.IsTrue)
			line = rows[i+1]
		}
	}
	c.Assert(header, jc.DeepEquals, exportColumns)
	c.Check(line[0], gc.Equals, "C100")
	c.Check(line[1], gc.Equals, "Levora")
	c.Check(line[6], gc.Equals, "18")
	c.Check(strings.Join(rows[1], " "), gc.Equals, "Status SUBMITTED")
}
