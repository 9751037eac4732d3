package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/command"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/query"
)

type Handlers struct {
	Command *command.UseCase
	Query   *query.UseCase

	validate *validator.Validate
}

func NewHandlers(cmd *command.UseCase, qry *query.UseCase) *Handlers {
	return &Handlers{Command: cmd, Query: qry, validate: validator.New()}
}

func (h *Handlers) bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperr.Validation("malformed request body", err)
	}

	if err := h.validate.Struct(req); err != nil {
		return apperr.Validation("request failed validation", err)
	}

	return nil
}

type bootstrapStatusResponse struct {
	NeedsBootstrap bool `json:"needs_bootstrap"`
}

func (h *Handlers) BootstrapStatus(c *fiber.Ctx) error {
	count, err := h.Command.ReadModel.CountUsers(c.Context())
	if err != nil {
		return WithError(c, apperr.Internal("checking bootstrap status", err))
	}

	return OK(c, bootstrapStatusResponse{NeedsBootstrap: count == 0})
}

type registerUserRequest struct {
	Username          string  `json:"username" validate:"required,min=3,max=255"`
	Email             string  `json:"email" validate:"required,email"`
	PasswordPlaintext string  `json:"password_plaintext" validate:"required,min=8"`
	InitialRole       string  `json:"initial_role" validate:"required"`
	TenantID          *string `json:"tenant_id"`
}

type registerUserResponse struct {
	UserID string `json:"user_id"`
}

// RegisterUser serves POST /api/users. Authentication is optional here:
// the bootstrap exception permits an unauthenticated call when zero users
// exist (spec.md §4.9), so this route runs OptionalAuth rather than
// RequireAuth.
func (h *Handlers) RegisterUser(c *fiber.Ctx) error {
	var req registerUserRequest
	if err := h.bind(c, &req); err != nil {
		return WithError(c, err)
	}

	role, err := domain.ParseRole(req.InitialRole)
	if err != nil {
		return WithError(c, apperr.Validation("unknown initial_role", err))
	}

	principal := principalFromLocals(c)

	userID, err := h.Command.RegisterUser(c.Context(), principal, command.RegisterUserInput{
		Username:          req.Username,
		Email:             req.Email,
		PasswordPlaintext: req.PasswordPlaintext,
		InitialRole:       role,
		TenantID:          req.TenantID,
	})
	if err != nil {
		return WithError(c, err)
	}

	return Created(c, registerUserResponse{UserID: userID})
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

type createTenantResponse struct {
	TenantID string `json:"tenant_id"`
}

func (h *Handlers) CreateTenant(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return WithError(c, err)
	}

	var req createTenantRequest
	if err := h.bind(c, &req); err != nil {
		return WithError(c, err)
	}

	tenantID, err := h.Command.CreateTenant(c.Context(), principal, req.Name)
	if err != nil {
		return WithError(c, err)
	}

	return Created(c, createTenantResponse{TenantID: tenantID})
}

type generateApiKeyRequest struct {
	KeyName string `json:"key_name" validate:"required,min=1,max=255"`
}

type generateApiKeyResponse struct {
	KeyID  string `json:"key_id"`
	ApiKey string `json:"api_key"`
}

// GenerateApiKey serves POST /api/users/{uid}/apikeys. Like RegisterUser,
// the bootstrap exception (a brand new user's first key) permits an
// unauthenticated call, so this route also runs OptionalAuth.
func (h *Handlers) GenerateApiKey(c *fiber.Ctx) error {
	targetUserID := c.Params("uid")

	var req generateApiKeyRequest
	if err := h.bind(c, &req); err != nil {
		return WithError(c, err)
	}

	principal := principalFromLocals(c)

	keyID, plaintext, err := h.Command.GenerateApiKey(c.Context(), principal, targetUserID, req.KeyName)
	if err != nil {
		return WithError(c, err)
	}

	return Created(c, generateApiKeyResponse{KeyID: keyID, ApiKey: plaintext})
}

func (h *Handlers) RevokeApiKey(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return WithError(c, err)
	}

	targetUserID := c.Params("uid")
	keyID := c.Params("kid")

	if err := h.Command.RevokeApiKey(c.Context(), principal, targetUserID, keyID); err != nil {
		return WithError(c, err)
	}

	return NoContent(c)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h *Handlers) ChangePassword(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return WithError(c, err)
	}

	targetUserID := c.Params("uid")

	var req changePasswordRequest
	if err := h.bind(c, &req); err != nil {
		return WithError(c, err)
	}

	if err := h.Command.ChangePassword(c.Context(), principal, targetUserID, req.OldPassword, req.NewPassword); err != nil {
		return WithError(c, err)
	}

	return NoContent(c)
}

func (h *Handlers) ListTenants(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return WithError(c, err)
	}

	limit, offset := paginationParams(c)

	page, err := h.Query.ListTenants(c.Context(), *principal, limit, offset)
	if err != nil {
		return WithError(c, err)
	}

	return OK(c, page)
}

func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return WithError(c, err)
	}

	limit, offset := paginationParams(c)

	page, err := h.Query.ListUsers(c.Context(), *principal, limit, offset)
	if err != nil {
		return WithError(c, err)
	}

	return OK(c, page)
}

type selfResponse struct {
	User query.UserView `json:"user"`
}

func (h *Handlers) Self(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return WithError(c, err)
	}

	view, err := h.Query.GetSelf(c.Context(), *principal)
	if err != nil {
		return WithError(c, err)
	}

	return OK(c, selfResponse{User: view})
}

func paginationParams(c *fiber.Ctx) (limit, offset int) {
	return c.QueryInt("limit", 50), c.QueryInt("offset", 0)
}
