package requisition

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"lmis-backend/internal/models"
)

// lineRules holds what line calculations need to know about a
// requisition's template and the requisition of the preceding period.
type lineRules struct {
	displayed bool
	editable  bool
	// carry is set when a preceding period exists.
	carry bool
	prior map[uuid.UUID]int
}

// beginningBalanceColumn reports how the template treats the beginning
// balance. A program without a template behaves as if the column were
// displayed and not editable.
func beginningBalanceColumn(t *models.RequisitionTemplate) (displayed, editable bool) {
	if t == nil {
		return true, false
	}
	col := t.Column(models.ColumnBeginningBalance)
	if col == nil {
		return false, false
	}
	return col.IsDisplayed, col.CanBeChangedByUser
}

func (s *Service) lineRules(ctx context.Context, req *models.Requisition) (lineRules, error) {
	template, err := s.st.GetTemplate(ctx, req.ProgramID)
	if err != nil {
		return lineRules{}, errors.Trace(err)
	}
	rules := lineRules{prior: map[uuid.UUID]int{}}
	rules.displayed, rules.editable = beginningBalanceColumn(template)

	period, err := s.st.GetPeriod(ctx, req.ProcessingPeriodID)
	if err != nil {
		return lineRules{}, errors.Trace(err)
	}
	previous, err := s.st.PreviousPeriod(ctx, period)
	if err != nil {
		return lineRules{}, errors.Trace(err)
	}
	if previous == nil {
		return rules, nil
	}
	rules.carry = true

	prior, err := s.st.FindRegularRequisition(ctx, req.FacilityID, req.ProgramID, previous.ID)
	if err != nil {
		return lineRules{}, errors.Trace(err)
	}
	if prior == nil {
		return rules, nil
	}
	for _, line := range prior.Lines {
		rules.prior[line.ProductID] = value(line.StockOnHand)
	}
	return rules, nil
}

// carried is the beginning balance a line of product takes over from the
// preceding period.
func (r lineRules) carried(productID uuid.UUID) int {
	if !r.carry {
		return 0
	}
	return r.prior[productID]
}

// initiate carries the beginning balance over only while the template
// displays it; hidden balances start at zero.
func (r lineRules) initiate(line *models.RequisitionLine) {
	switch {
	case !r.displayed || !r.carry:
		line.BeginningBalance = intPtr(0)
	case line.BeginningBalance == nil:
		line.BeginningBalance = intPtr(r.carried(line.ProductID))
	}
	line.TotalReceivedQuantity = intPtr(0)
}

func (r lineRules) save(line *models.RequisitionLine) {
	if !r.editable {
		line.BeginningBalance = intPtr(r.carried(line.ProductID))
	}
}

// InitiateLineFields sets the starting values of every line of a new
// requisition. Lines take the stock on hand of the preceding period's
// requisition as beginning balance when the template displays it, and
// start at zero otherwise. Nothing is received yet.
func (s *Service) InitiateLineFields(ctx context.Context, req *models.Requisition) error {
	if req == nil {
		return errors.NotValidf("nil requisition")
	}
	rules, err := s.lineRules(ctx, req)
	if err != nil {
		return errors.Trace(err)
	}
	for i := range req.Lines {
		rules.initiate(&req.Lines[i])
	}
	return nil
}

// SaveLine prepares an updated line of req for storage. When the template
// does not let users change the beginning balance, displayed or not, it is
// recomputed from the preceding period, overwriting the supplied value.
func (s *Service) SaveLine(ctx context.Context, req *models.Requisition, line *models.RequisitionLine) error {
	if line == nil {
		return errors.NotValidf("nil requisition line")
	}
	rules, err := s.lineRules(ctx, req)
	if err != nil {
		return errors.Trace(err)
	}
	rules.save(line)
	return nil
}

// CalculateLineFields recomputes the stock on hand of every line.
func CalculateLineFields(req *models.Requisition) {
	for i := range req.Lines {
		req.Lines[i].StockOnHand = intPtr(StockOnHand(&req.Lines[i]))
	}
}

// StockOnHand is beginning balance plus received quantity plus losses and
// adjustments minus consumed quantity. Missing values count as zero.
func StockOnHand(line *models.RequisitionLine) int {
	return value(line.BeginningBalance) +
		value(line.TotalReceivedQuantity) +
		value(line.TotalLossesAndAdjustments) -
		value(line.TotalConsumedQuantity)
}

// Validate checks the line values of req. Quantities may not be negative,
// losses and adjustments excepted, and neither may the resulting stock on
// hand.
func Validate(req *models.Requisition) error {
	if req == nil {
		return errors.NotValidf("nil requisition")
	}
	var problems []string
	for i, line := range req.Lines {
		if line.ProductID == uuid.Nil {
			problems = append(problems, fmt.Sprintf("line %d has no product", i))
			continue
		}
		for _, q := range []struct {
			name  string
			value *int
		}{
			{models.ColumnBeginningBalance, line.BeginningBalance},
			{models.ColumnTotalReceivedQuantity, line.TotalReceivedQuantity},
			{models.ColumnTotalConsumedQuantity, line.TotalConsumedQuantity},
			{"requestedQuantity", line.RequestedQuantity},
		} {
			if value(q.value) < 0 {
				problems = append(problems, fmt.Sprintf("%s of product %s is negative", q.name, line.ProductID))
			}
		}
		if StockOnHand(&line) < 0 {
			problems = append(problems, fmt.Sprintf("%s of product %s is negative", models.ColumnStockOnHand, line.ProductID))
		}
	}
	if len(problems) > 0 {
		return errors.NotValidf("requisition %s (%s)", req.ID, strings.Join(problems, "; "))
	}
	return nil
}

// matchLine finds the line of req the payload line updates, by line id
// when given and by product otherwise.
func matchLine(req *models.Requisition, update *models.RequisitionLine) (*models.RequisitionLine, error) {
	for i := range req.Lines {
		line := &req.Lines[i]
		if update.ID != uuid.Nil && line.ID == update.ID {
			return line, nil
		}
		if update.ID == uuid.Nil && line.ProductID == update.ProductID {
			return line, nil
		}
	}
	if update.ID != uuid.Nil {
		return nil, errors.NotValidf("requisition line %s", update.ID)
	}
	return nil, errors.NotValidf("requisition line for product %s", update.ProductID)
}

func copyLineValues(dst, src *models.RequisitionLine) {
	dst.BeginningBalance = src.BeginningBalance
	dst.TotalReceivedQuantity = src.TotalReceivedQuantity
	dst.TotalConsumedQuantity = src.TotalConsumedQuantity
	dst.TotalLossesAndAdjustments = src.TotalLossesAndAdjustments
	dst.RequestedQuantity = src.RequestedQuantity
	dst.RequestedQuantityExplanation = src.RequestedQuantityExplanation
	dst.Remarks = src.Remarks
}

func intPtr(v int) *int {
	return &v
}

func value(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
