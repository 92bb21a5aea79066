package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lmis-backend/internal/models"
)

var logger = loggo.GetLogger("lmis.auth")

type RegisterAdminRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// builtinRights are created with the bootstrap administrator.
var builtinRights = []models.Right{
	{Name: models.RightAdministration, RightType: models.RightTypeAdmin, Description: "manage reference data and users"},
	{Name: models.RightCreateRequisition, RightType: models.RightTypeRequisition, Description: "initiate and submit requisitions"},
	{Name: models.RightAuthorizeRequisition, RightType: models.RightTypeRequisition, Description: "authorize requisitions"},
	{Name: models.RightApproveRequisition, RightType: models.RightTypeRequisition, Description: "approve and reject requisitions"},
	{Name: models.RightDeleteRequisition, RightType: models.RightTypeRequisition, Description: "delete initiated requisitions"},
	{Name: models.RightConvertToOrder, RightType: models.RightTypeFulfillment, Description: "release requisitions as orders"},
}

// RegisterAdminHandler creates the first user of an empty installation,
// together with the built-in rights and an "Admin" role holding them.
func RegisterAdminHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Username = strings.TrimSpace(body.Username)
		if body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username and password are required")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "cannot hash password")
		}

		user := models.User{
			Username:     body.Username,
			FirstName:    body.FirstName,
			LastName:     body.LastName,
			PasswordHash: string(hash),
			Verified:     true,
			Active:       true,
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fiber.NewError(fiber.StatusForbidden, "an administrator is already registered")
			}

			rights := make([]models.Right, 0, len(builtinRights))
			for _, r := range builtinRights {
				existing := models.Right{}
				if err := tx.Where(models.Right{Name: r.Name}).Attrs(r).FirstOrCreate(&existing).Error; err != nil {
					return err
				}
				rights = append(rights, existing)
			}

			role := models.Role{Name: "Admin", Description: "built-in administrator role"}
			if err := tx.Where(models.Role{Name: role.Name}).Attrs(role).FirstOrCreate(&role).Error; err != nil {
				return err
			}
			if err := tx.Model(&role).Association("Rights").Replace(rights); err != nil {
				return err
			}

			if err := tx.Omit("Roles").Create(&user).Error; err != nil {
				return err
			}
			return tx.Model(&user).Association("Roles").Append(&role)
		})
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				return fe
			}
			logger.Errorf("registering administrator: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "cannot create administrator")
		}

		logger.Infof("registered administrator %q", user.Username)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":       user.ID,
			"username": user.Username,
		})
	}
}

func LoginHandler(db *gorm.DB, secret string, ttl time.Duration, clk clock.Clock) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Username = strings.TrimSpace(body.Username)

		var user models.User
		if err := db.WithContext(c.UserContext()).Where("username = ?", body.Username).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid username or password")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid username or password")
		}
		if !user.Active || user.LoginRestricted {
			return fiber.NewError(fiber.StatusForbidden, "login is not allowed for this user")
		}

		token, err := GenerateToken(secret, ttl, &user, clk.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "cannot create token")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":        user.ID,
				"username":  user.Username,
				"firstName": user.FirstName,
				"lastName":  user.LastName,
				"verified":  user.Verified,
			},
		})
	}
}

func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := UserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "no authenticated user")
		}

		var user models.User
		err := db.WithContext(c.UserContext()).
			Preload("Roles.Rights").
			Preload("HomeFacility").
			Preload("SupervisedNode").
			First(&user, "id = ?", userID).Error
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return c.JSON(user)
	}
}
