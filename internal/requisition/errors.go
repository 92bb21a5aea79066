package requisition

import (
	"github.com/juju/errors"

	"lmis-backend/internal/httperr"
	"lmis-backend/internal/models"
)

const (
	// ErrBadStatus is returned when the requisition's status does not allow
	// the requested operation.
	ErrBadStatus = httperr.ClientError("requisition has bad status")

	// ErrSkipNotAllowed is returned when skipping a period of a program
	// whose periods are not skippable.
	ErrSkipNotAllowed = httperr.ClientError("program does not allow skipping periods")

	// ErrAuthorizationSkipped is returned by Authorize while the
	// skipAuthorization setting is on.
	ErrAuthorizationSkipped = httperr.ClientError("authorization is configured to be skipped")
)

func badStatus(req *models.Requisition, want models.RequisitionStatus) error {
	return errors.Annotatef(ErrBadStatus, "requisition %s is %s, not %s", req.ID, req.Status, want)
}
