// Package users serves user accounts: CRUD, search and the password
// operations.
package users

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lmis-backend/internal/audit"
	"lmis-backend/internal/auth"
	"lmis-backend/internal/database"
	"lmis-backend/internal/httperr"
	"lmis-backend/internal/models"
	"lmis-backend/internal/referencedata"
)

var logger = loggo.GetLogger("lmis.users")

const minPasswordLength = 8

// Resource is the CRUD resource of users. A "password" member of the
// request body sets the password; new users start unverified.
var Resource = referencedata.Resource[models.User, *models.User]{
	EntityType: "user",
	Preloads:   []string{"Roles", "HomeFacility"},
	Order:      "username",
	Prepare:    prepareUser,
}

// RegisterRoutes mounts the user routes on router. guard protects every
// route except changePassword.
func RegisterRoutes(router fiber.Router, db *gorm.DB, guard fiber.Handler) {
	guarded := func(h fiber.Handler) []fiber.Handler {
		if guard == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{guard, h}
	}

	router.Get("/search", guarded(SearchHandler(db))...)
	router.Post("/passwordReset", guarded(PasswordResetHandler(db))...)
	router.Post("/changePassword", ChangePasswordHandler(db))
	Resource.Register(router, db, guard)
}

type passwordField struct {
	Password string `json:"password"`
}

func prepareUser(c *fiber.Ctx, user *models.User) error {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" {
		return fiber.NewError(fiber.StatusBadRequest, "username is required")
	}
	if c.Method() == fiber.MethodPost {
		user.Verified = false
	}

	var body passwordField
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.Password == "" {
		return nil
	}
	hash, err := hashPassword(body.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fiber.NewError(fiber.StatusBadRequest, "password must be at least 8 characters long")
	}
	if strings.ContainsAny(password, " \t\n") {
		return "", fiber.NewError(fiber.StatusBadRequest, "password must not contain spaces")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Annotate(err, "hashing password")
	}
	return string(hash), nil
}

// GET /api/users/search?username=&firstName=&lastName=&homeFacility=&active=&verified=
func SearchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.WithContext(c.UserContext()).Preload("Roles").Preload("HomeFacility")

		for param, column := range map[string]string{
			"username":  "username",
			"firstName": "first_name",
			"lastName":  "last_name",
		} {
			if v := c.Query(param); v != "" {
				q = q.Where(column+" = ?", v)
			}
		}
		facilityID, ok, err := referencedata.ParseOptionalID(c, "homeFacility")
		if err != nil {
			return err
		}
		if ok {
			q = q.Where("home_facility_id = ?", facilityID)
		}
		for _, param := range []string{"active", "verified"} {
			if c.Query(param) != "" {
				q = q.Where(param+" = ?", c.QueryBool(param))
			}
		}

		var users []models.User
		if err := q.Order("username").Find(&users).Error; err != nil {
			return httperr.FromDomain(err)
		}
		return c.JSON(users)
	}
}

type PasswordResetRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"newPassword"`
}

type PasswordChangeRequest struct {
	Username    string `json:"username"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// POST /api/users/passwordReset
func PasswordResetHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PasswordResetRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		err := setPassword(c, db, body.Username, body.NewPassword, nil)
		if err != nil {
			return httperr.FromDomain(err)
		}
		return c.JSON(fiber.Map{"message": "password reset"})
	}
}

// POST /api/users/changePassword
func ChangePasswordHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PasswordChangeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		check := func(user *models.User) error {
			if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.OldPassword)) != nil {
				return fiber.NewError(fiber.StatusForbidden, "old password does not match")
			}
			return nil
		}
		if err := setPassword(c, db, body.Username, body.NewPassword, check); err != nil {
			return httperr.FromDomain(err)
		}
		return c.JSON(fiber.Map{"message": "password changed"})
	}
}

// setPassword replaces the user's password and marks the account
// verified. check, when set, may veto the change.
func setPassword(c *fiber.Ctx, db *gorm.DB, username, password string, check func(*models.User) error) error {
	if strings.TrimSpace(username) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "username is required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	return db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("username = ?", username).First(&user).Error
		if database.IsNotFound(err) {
			return errors.NotFoundf("user %q", username)
		}
		if err != nil {
			return errors.Trace(err)
		}
		if check != nil {
			if err := check(&user); err != nil {
				return err
			}
		}

		before := user
		err = tx.Model(&user).Updates(map[string]any{
			"password_hash": hash,
			"verified":      true,
		}).Error
		if err != nil {
			return errors.Annotatef(err, "updating password of %q", username)
		}
		logger.Infof("password of user %q replaced", username)

		opts := audit.LogOptions{
			UserName:    auth.Username(c),
			EntityType:  Resource.EntityType,
			EntityID:    user.ID,
			Action:      models.AuditActionUpdate,
			Description: "password of user " + username + " replaced",
			Before:      before,
			After:       user,
		}
		if id, ok := auth.UserID(c); ok {
			opts.UserID = &id
		}
		return audit.WriteLog(tx, opts)
	})
}
