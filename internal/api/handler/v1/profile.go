package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/api/handler/v1/request"
	"github.com/vecollab/backend/internal/api/handler/v1/response"
	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/pkg/identity"
	"github.com/vecollab/backend/internal/service"
)

type ProfileService interface {
	GetProfile(ctx context.Context, username string) (domain.Profile, error)
	GetProfiles(ctx context.Context, usernames []string) ([]domain.Profile, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error)
	Update(ctx context.Context, username string, u domain.ProfileUpdate) (domain.Profile, error)
	Follow(ctx context.Context, username, target string) error
	Unfollow(ctx context.Context, username, target string) error
	GetFollowers(ctx context.Context, username string) ([]string, error)
	SetNotificationSettings(ctx context.Context, username string, settings map[domain.Category]domain.Preference) (map[domain.Category]domain.Preference, error)
	SetRole(ctx context.Context, actor, username string, role domain.Role) error
}

type AuthService interface {
	ListPersonas(ctx context.Context, passcode string) ([]service.Persona, error)
	LookupUser(ctx context.Context, key string) (identity.User, error)
}

type ProfileHandler struct {
	svc  ProfileService
	auth AuthService
}

func NewProfileHandler(svc ProfileService, auth AuthService) *ProfileHandler {
	return &ProfileHandler{
		svc:  svc,
		auth: auth,
	}
}

// public hides the private parts of a profile shown to someone else.
func public(p domain.Profile) domain.Profile {
	p.Email = ""
	p.NotificationSettings = nil
	return p
}

// HandleGetMe godoc
// @Summary      Profile of the current user
// @Tags         profiles
// @Produce      json
// @Success      200  {object}  domain.Profile
// @Failure      401  {object}  response.Err
// @Router       /profiles/me [get]
// @Security BearerAuth
func (h *ProfileHandler) HandleGetMe(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	p, err := h.svc.GetProfile(ctx.Request.Context(), user)
	if err != nil {
		response.Render(ctx, "v1.HandleGetMe -> h.svc.GetProfile", err)
		return
	}

	ctx.JSON(http.StatusOK, p)
}

// HandleGetProfile godoc
// @Summary      Profile of a user
// @Tags         profiles
// @Produce      json
// @Param        username  path      string  true  "username"
// @Success      200       {object}  domain.Profile
// @Failure      404       {object}  response.Err
// @Router       /profiles/{username} [get]
// @Security BearerAuth
func (h *ProfileHandler) HandleGetProfile(ctx *gin.Context) {
	if _, ok := currentUser(ctx); !ok {
		return
	}

	p, err := h.svc.GetProfile(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		response.Render(ctx, "v1.HandleGetProfile -> h.svc.GetProfile", err)
		return
	}

	ctx.JSON(http.StatusOK, public(p))
}

// HandleGetProfiles godoc
// @Summary      Several profiles
// @Description  Unknown usernames are left out.
// @Tags         profiles
// @Produce      json
// @Param        usernames  query     []string  true  "usernames"
// @Success      200        {array}   domain.Profile
// @Router       /profiles [get]
// @Security BearerAuth
func (h *ProfileHandler) HandleGetProfiles(ctx *gin.Context) {
	if _, ok := currentUser(ctx); !ok {
		return
	}

	profiles, err := h.svc.GetProfiles(ctx.Request.Context(), ctx.QueryArray("usernames"))
	if err != nil {
		response.Render(ctx, "v1.HandleGetProfiles -> h.svc.GetProfiles", err)
		return
	}
	for i := range profiles {
		profiles[i] = public(profiles[i])
	}

	ctx.JSON(http.StatusOK, profiles)
}

// HandleUpdateMe godoc
// @Summary      Update the current user's profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        request  body      request.UpdateProfileRequest  true  "changes"
// @Success      200      {object}  domain.Profile
// @Router       /profiles/me [patch]
// @Security BearerAuth
func (h *ProfileHandler) HandleUpdateMe(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.UpdateProfileRequest
	if !bindJSON(ctx, &req) {
		return
	}
	pic, err := optionalID(req.ProfilePic)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	p, err := h.svc.Update(ctx.Request.Context(), user, domain.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Institution: req.Institution,
		Bio:         req.Bio,
		ProfilePic:  pic,
	})
	if err != nil {
		response.Render(ctx, "v1.HandleUpdateMe -> h.svc.Update", err)
		return
	}

	ctx.JSON(http.StatusOK, p)
}

// HandleFollow godoc
// @Summary      Follow a user
// @Tags         profiles
// @Param        username  path  string  true  "user to follow"
// @Success      204
// @Failure      409  {object}  response.Err
// @Router       /profiles/{username}/follow [post]
// @Security BearerAuth
func (h *ProfileHandler) HandleFollow(ctx *gin.Context) {
	h.follow(ctx, "v1.HandleFollow -> h.svc.Follow", h.svc.Follow)
}

// HandleUnfollow godoc
// @Summary      Stop following a user
// @Tags         profiles
// @Param        username  path  string  true  "followed user"
// @Success      204
// @Router       /profiles/{username}/follow [delete]
// @Security BearerAuth
func (h *ProfileHandler) HandleUnfollow(ctx *gin.Context) {
	h.follow(ctx, "v1.HandleUnfollow -> h.svc.Unfollow", h.svc.Unfollow)
}

func (h *ProfileHandler) follow(ctx *gin.Context, site string, op func(ctx context.Context, username, target string) error) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	if err := op(ctx.Request.Context(), user, ctx.Param("username")); err != nil {
		response.Render(ctx, site, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleFollowers godoc
// @Summary      Followers of a user
// @Tags         profiles
// @Produce      json
// @Param        username  path     string  true  "username"
// @Success      200       {array}  string
// @Router       /profiles/{username}/followers [get]
// @Security BearerAuth
func (h *ProfileHandler) HandleFollowers(ctx *gin.Context) {
	if _, ok := currentUser(ctx); !ok {
		return
	}

	followers, err := h.svc.GetFollowers(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		response.Render(ctx, "v1.HandleFollowers -> h.svc.GetFollowers", err)
		return
	}

	ctx.JSON(http.StatusOK, followers)
}

// HandleSetNotificationSettings godoc
// @Summary      Choose the delivery channel per notification category
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        request  body      request.NotificationSettingsRequest  true  "settings"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  response.Err
// @Router       /profiles/me/notification_settings [put]
// @Security BearerAuth
func (h *ProfileHandler) HandleSetNotificationSettings(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.NotificationSettingsRequest
	if !bindJSON(ctx, &req) {
		return
	}

	settings, err := h.svc.SetNotificationSettings(ctx.Request.Context(), user, req.Settings)
	if err != nil {
		response.Render(ctx, "v1.HandleSetNotificationSettings -> h.svc.SetNotificationSettings", err)
		return
	}

	ctx.JSON(http.StatusOK, settings)
}

// HandleSetRole godoc
// @Summary      Change the platform role of a user
// @Tags         admin
// @Accept       json
// @Param        request  body  request.RoleRequest  true  "user and role"
// @Success      204
// @Failure      403  {object}  response.Err
// @Router       /admin/roles [put]
// @Security BearerAuth
func (h *ProfileHandler) HandleSetRole(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req request.RoleRequest
	if !bindJSON(ctx, &req) {
		return
	}

	if err := h.svc.SetRole(ctx.Request.Context(), user, req.Username, domain.Role(req.Role)); err != nil {
		response.Render(ctx, "v1.HandleSetRole -> h.svc.SetRole", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleListByRole godoc
// @Summary      Profiles holding a role
// @Tags         admin
// @Produce      json
// @Param        role  query    string  true  "admin, user or guest"
// @Success      200   {array}  domain.Profile
// @Router       /admin/profiles [get]
// @Security BearerAuth
func (h *ProfileHandler) HandleListByRole(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	me, err := h.svc.GetProfile(ctx.Request.Context(), user)
	if err != nil {
		response.Render(ctx, "v1.HandleListByRole -> h.svc.GetProfile", err)
		return
	}
	if me.Role != domain.RoleAdmin {
		response.RenderErr(ctx, response.ErrPermissionDenied(domain.ErrInsufficientPermission))
		return
	}
	role := domain.Role(ctx.Query("role"))
	if !role.Valid() {
		response.RenderErr(ctx, response.ErrBadRequest(&domain.FieldError{Kind: domain.ErrWrongType, Field: "role"}))
		return
	}

	profiles, err := h.svc.ListByRole(ctx.Request.Context(), role)
	if err != nil {
		response.Render(ctx, "v1.HandleListByRole -> h.svc.ListByRole", err)
		return
	}

	ctx.JSON(http.StatusOK, profiles)
}

// HandleListPersonas godoc
// @Summary      Test accounts of the identity provider
// @Tags         auth
// @Produce      json
// @Param        X-Passcode  header   string  true  "dummy personas passcode"
// @Success      200         {array}  service.Persona
// @Failure      403         {object}  response.Err
// @Router       /personas [get]
func (h *ProfileHandler) HandleListPersonas(ctx *gin.Context) {
	personas, err := h.auth.ListPersonas(ctx.Request.Context(), ctx.GetHeader("X-Passcode"))
	if err != nil {
		response.Render(ctx, "v1.HandleListPersonas -> h.auth.ListPersonas", err)
		return
	}

	ctx.JSON(http.StatusOK, personas)
}

// HandleLookupUser godoc
// @Summary      Look up an account of the identity provider
// @Description  key is either the account id or the username.
// @Tags         auth
// @Produce      json
// @Param        key  path      string  true  "id or username"
// @Success      200  {object}  identity.User
// @Failure      404  {object}  response.Err
// @Router       /users/{key} [get]
// @Security BearerAuth
func (h *ProfileHandler) HandleLookupUser(ctx *gin.Context) {
	if _, ok := currentUser(ctx); !ok {
		return
	}

	u, err := h.auth.LookupUser(ctx.Request.Context(), ctx.Param("key"))
	if err != nil {
		response.Render(ctx, "v1.HandleLookupUser -> h.auth.LookupUser", err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}
