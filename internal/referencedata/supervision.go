package referencedata

import (
	"github.com/google/uuid"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"lmis-backend/internal/database"
	"lmis-backend/internal/models"
)

// validateSupervisoryNode rejects parents that would close a cycle in the
// supervision hierarchy.
func validateSupervisoryNode(tx *gorm.DB, n *models.SupervisoryNode, _ bool) error {
	if n.ParentID == nil {
		return nil
	}
	if n.ID != uuid.Nil && *n.ParentID == n.ID {
		return errors.NotValidf("supervisory node %q as its own parent", n.Code)
	}

	seen := set.NewStrings()
	next := n.ParentID
	for next != nil {
		if n.ID != uuid.Nil && *next == n.ID {
			return errors.NotValidf("parent of %q creating a cycle", n.Code)
		}
		if seen.Contains(next.String()) {
			return errors.NotValidf("cyclic supervision hierarchy above %q", n.Code)
		}
		seen.Add(next.String())

		var parent models.SupervisoryNode
		err := tx.Select("id", "parent_id").First(&parent, "id = ?", *next).Error
		if database.IsNotFound(err) {
			return errors.NotFoundf("parent supervisory node %s", *next)
		}
		if err != nil {
			return errors.Trace(err)
		}
		next = parent.ParentID
	}
	return nil
}
