package controller

import (
	"errors"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"

	adminauth "github.com/goliatone/go-admin-auth"
)

// Routes holds the paths served by AdminAuthController, relative to the
// router it is registered on.
type Routes struct {
	Login         string
	Logout        string
	Session       string
	Permission    string
	PasswordReset string
	RememberMe    string
	Attempts      string
}

// AdminAuthController exposes the admin gate over HTTP.
//
// Every request acts on the single session held by the identity provider, so
// the controller belongs on a loopback listener next to one admin UI.
type AdminAuthController struct {
	Logger     adminauth.Logger
	Gate       *adminauth.LoginGate
	Authorizer *adminauth.AdminAuthorizer
	Routes     *Routes
}

// NewAdminAuthController returns a controller with the default routes.
func NewAdminAuthController(gate *adminauth.LoginGate, authorizer *adminauth.AdminAuthorizer, logger adminauth.Logger) *AdminAuthController {
	if logger == nil {
		logger = adminauth.NopLogger()
	}
	return &AdminAuthController{
		Logger:     logger,
		Gate:       gate,
		Authorizer: authorizer,
		Routes: &Routes{
			Login:         "/login",
			Logout:        "/logout",
			Session:       "/session",
			Permission:    "/permissions/:name",
			PasswordReset: "/password-reset",
			RememberMe:    "/remember-me",
			Attempts:      "/attempts",
		},
	}
}

// Register mounts every route on r.
func (a *AdminAuthController) Register(r fiber.Router) {
	r.Post(a.Routes.Login, a.LoginPost)
	r.Post(a.Routes.Logout, a.LogoutPost)
	r.Get(a.Routes.Session, a.SessionGet)
	r.Get(a.Routes.Permission, a.PermissionGet)
	r.Post(a.Routes.PasswordReset, a.PasswordResetPost)
	r.Get(a.Routes.RememberMe, a.RememberMeGet)
	r.Get(a.Routes.Attempts, a.AttemptsGet)
}

// LoginPayload is the login form payload
type LoginPayload struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 4096)),
	)
}

// PasswordResetPayload holds the email to send a reset link to
type PasswordResetPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// SessionResponse describes an admin session.
type SessionResponse struct {
	Session *adminauth.SessionInfo  `json:"session"`
	Profile *adminauth.AdminProfile `json:"profile,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error             string         `json:"error"`
	Message           string         `json:"message"`
	RetryAfter        int            `json:"retry_after,omitempty"`
	RemainingAttempts *int           `json:"remaining_attempts,omitempty"`
	Fields            map[string]any `json:"fields,omitempty"`
}

func (a *AdminAuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("admin login parse payload", "error", err)
		return a.badRequest(c, "Failed to parse body", nil)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(c, "Error validating payload", err)
	}

	identity, err := a.Gate.Login(c.UserContext(), adminauth.LoginRequest{
		Email:      payload.Email,
		Password:   payload.Password,
		RememberMe: payload.RememberMe,
	})
	if err != nil {
		return a.loginError(c, err)
	}

	res := SessionResponse{
		Session: &adminauth.SessionInfo{
			ID:           identity.ID(),
			Email:        identity.Email(),
			CreatedAt:    identity.CreatedAt(),
			LastSignInAt: identity.LastSignInAt(),
		},
	}
	if session, err := a.Authorizer.ResolveSession(c.UserContext(), identity); err == nil {
		res.Profile = session.Profile
	}

	return c.Status(fiber.StatusOK).JSON(res)
}

func (a *AdminAuthController) LogoutPost(c *fiber.Ctx) error {
	if err := a.Gate.Logout(c.UserContext()); err != nil {
		return a.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AdminAuthController) SessionGet(c *fiber.Ctx) error {
	session, err := a.Authorizer.ValidateSession(c.UserContext())
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(SessionResponse{
		Session: &adminauth.SessionInfo{
			ID:           session.Identity.ID(),
			Email:        session.Identity.Email(),
			CreatedAt:    session.Identity.CreatedAt(),
			LastSignInAt: session.Identity.LastSignInAt(),
		},
		Profile: session.Profile,
	})
}

func (a *AdminAuthController) PermissionGet(c *fiber.Ctx) error {
	identity := a.Authorizer.Provider().CurrentIdentity()
	if identity == nil {
		return a.fail(c, adminauth.ErrNoSession)
	}

	permission := c.Params("name")
	return c.JSON(fiber.Map{
		"permission": permission,
		"granted":    a.Authorizer.HasPermission(c.UserContext(), identity, permission),
	})
}

func (a *AdminAuthController) PasswordResetPost(c *fiber.Ctx) error {
	payload := new(PasswordResetPayload)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("password reset parse payload", "error", err)
		return a.badRequest(c, "Failed to parse body", nil)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(c, "Error validating payload", err)
	}

	if err := a.Authorizer.SendPasswordReset(c.UserContext(), payload.Email); err != nil {
		return a.fail(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (a *AdminAuthController) RememberMeGet(c *fiber.Ctx) error {
	hint, ok := a.Gate.RememberedLogin(c.UserContext())
	if !ok {
		return c.JSON(adminauth.RememberMeHint{})
	}
	return c.JSON(hint)
}

func (a *AdminAuthController) AttemptsGet(c *fiber.Ctx) error {
	return c.JSON(a.Gate.Attempts())
}

func (a *AdminAuthController) loginError(c *fiber.Ctx, err error) error {
	res, status := errorResponse(err)

	if adminauth.ClassifyFailure(err).CountsTowardLockout() {
		remaining := a.Gate.Attempts().RemainingAttempts
		res.RemainingAttempts = &remaining
	}

	if rl, ok := adminauth.IsRateLimited(err); ok {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(rl.RemainingSeconds()))
	}

	return c.Status(status).JSON(res)
}

func (a *AdminAuthController) fail(c *fiber.Ctx, err error) error {
	res, status := errorResponse(err)
	if status >= fiber.StatusInternalServerError {
		a.Logger.Error("admin auth request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(res)
}

func (a *AdminAuthController) badRequest(c *fiber.Ctx, message string, err error) error {
	res := ErrorResponse{
		Error:   "validation",
		Message: message,
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		res.Fields = map[string]any{}
		for field, ferr := range verrs {
			res.Fields[field] = ferr.Error()
		}
	}

	return c.Status(fiber.StatusBadRequest).JSON(res)
}

func errorResponse(err error) (ErrorResponse, int) {
	res := ErrorResponse{Message: err.Error()}

	switch {
	case errors.Is(err, adminauth.ErrRateLimited):
		res.Error = string(adminauth.FailureRateLimited)
		if rl, ok := adminauth.IsRateLimited(err); ok {
			res.RetryAfter = rl.RemainingSeconds()
		}
		return res, fiber.StatusTooManyRequests
	case errors.Is(err, adminauth.ErrLoginInProgress):
		res.Error = string(adminauth.FailureInProgress)
		return res, fiber.StatusConflict
	case errors.Is(err, adminauth.ErrNoSession):
		res.Error = "no_session"
		return res, fiber.StatusUnauthorized
	case errors.Is(err, adminauth.ErrInactiveAccount):
		res.Error = string(adminauth.FailureInactiveAccount)
		return res, fiber.StatusForbidden
	case errors.Is(err, adminauth.ErrAccessDenied):
		res.Error = string(adminauth.FailureAccessDenied)
		return res, fiber.StatusForbidden
	case errors.Is(err, adminauth.ErrPermissionDenied):
		res.Error = "permission_denied"
		return res, fiber.StatusForbidden
	case errors.Is(err, adminauth.ErrNotFound):
		res.Error = "not_found"
		return res, fiber.StatusNotFound
	case errors.Is(err, adminauth.ErrNetwork):
		res.Error = string(adminauth.FailureNetwork)
		return res, fiber.StatusBadGateway
	case errors.Is(err, adminauth.ErrInvalidCredential):
		res.Error = string(adminauth.FailureInvalidCredential)
		// never echo provider details for credential failures
		res.Message = adminauth.ErrInvalidCredential.Error()
		return res, fiber.StatusUnauthorized
	default:
		res.Error = "internal"
		return res, fiber.StatusInternalServerError
	}
}
