package requisition

import (
	"bytes"

	"github.com/juju/errors"
	"github.com/xuri/excelize/v2"

	"lmis-backend/internal/models"
)

const exportSheet = "Requisition"

var exportColumns = []string{
	"Product code",
	"Product",
	"Beginning balance",
	"Total received quantity",
	"Total consumed quantity",
	"Total losses and adjustments",
	"Stock on hand",
	"Requested quantity",
	"Requested quantity explanation",
	"Remarks",
}

// Export renders the requisition as an xlsx workbook: a header block
// followed by one row per line.
func Export(req *models.Requisition) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, errors.Trace(err)
	}

	header := [][]any{
		{"Requisition", req.ID.String()},
		{"Status", string(req.Status)},
		{"Emergency", req.Emergency},
		{"Facility", facilityName(req)},
		{"Program", programName(req)},
		{"Period", periodName(req)},
	}
	for i, row := range header {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, errors.Trace(err)
		}
	}

	first := len(header) + 2
	cell, _ := excelize.CoordinatesToCellName(1, first)
	if err := f.SetSheetRow(exportSheet, cell, &exportColumns); err != nil {
		return nil, errors.Trace(err)
	}
	for i, line := range req.Lines {
		var code, name string
		if line.Product != nil {
			code, name = line.Product.Code, line.Product.PrimaryName
		}
		row := []any{
			code,
			name,
			cellValue(line.BeginningBalance),
			cellValue(line.TotalReceivedQuantity),
			cellValue(line.TotalConsumedQuantity),
			cellValue(line.TotalLossesAndAdjustments),
			cellValue(line.StockOnHand),
			cellValue(line.RequestedQuantity),
			line.RequestedQuantityExplanation,
			line.Remarks,
		}
		cell, _ := excelize.CoordinatesToCellName(1, first+1+i)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, errors.Trace(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Annotate(err, "writing workbook")
	}
	return buf, nil
}

func cellValue(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func facilityName(req *models.Requisition) string {
	if req.Facility == nil {
		return req.FacilityID.String()
	}
	return req.Facility.Code + " " + req.Facility.Name
}

func programName(req *models.Requisition) string {
	if req.Program == nil {
		return req.ProgramID.String()
	}
	return req.Program.Code + " " + req.Program.Name
}

func periodName(req *models.Requisition) string {
	if req.ProcessingPeriod == nil {
		return req.ProcessingPeriodID.String()
	}
	p := req.ProcessingPeriod
	return p.Name + " (" + p.StartDate.Format(dateLayout) + " - " + p.EndDate.Format(dateLayout) + ")"
}
