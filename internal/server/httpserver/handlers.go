package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	"github.com/dmitrijs2005/userportal/internal/server/services"
	"github.com/labstack/echo/v4"
)

// maxImageSize bounds uploaded profile images.
const maxImageSize = 5 << 20

// UserAPI is the service surface the handlers need.
type UserAPI interface {
	TokenVerifier
	Login(ctx context.Context, username, password string) (*models.User, string, error)
	Register(ctx context.Context, firstName, lastName, username, email string) (*models.User, error)
	AddNewUser(ctx context.Context, in services.NewUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, in services.UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, username string) error
	ResetPassword(ctx context.Context, email string) error
	UpdateProfileImage(ctx context.Context, username string, img *services.Image) (*models.User, error)
	GetUsers(ctx context.Context) ([]*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	ProfileImage(ctx context.Context, username, fileName string) ([]byte, string, error)
	TempProfileImage(ctx context.Context, username string) ([]byte, string, error)
}

type handlers struct {
	users UserAPI
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

func (h *handlers) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("malformed login request")
	}

	u, token, err := h.users.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	c.Response().Header().Set(common.TokenHeaderName, token)
	c.Response().Header().Set("Access-Control-Expose-Headers", common.TokenHeaderName)
	return c.JSON(http.StatusOK, u)
}

func (h *handlers) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("malformed registration request")
	}
	if req.Username == "" || req.Email == "" {
		return badRequest("username and email are required")
	}

	u, err := h.users.Register(c.Request().Context(), req.FirstName, req.LastName, req.Username, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// userForm reads the multipart/urlencoded fields shared by add and update.
func userForm(c echo.Context) (services.NewUserInput, error) {
	in := services.NewUserInput{
		FirstName: c.FormValue("firstName"),
		LastName:  c.FormValue("lastName"),
		Username:  c.FormValue("username"),
		Email:     c.FormValue("email"),
		Role:      c.FormValue("role"),
	}

	var err error
	if in.Active, err = formBool(c, "isActive"); err != nil {
		return in, err
	}
	if in.NonLocked, err = formBool(c, "isNotLocked"); err != nil {
		return in, err
	}
	if in.ProfileImage, err = formImage(c); err != nil {
		return in, err
	}
	return in, nil
}

func formBool(c echo.Context, name string) (bool, error) {
	v, err := strconv.ParseBool(c.FormValue(name))
	if err != nil {
		return false, badRequest(name + " must be true or false")
	}
	return v, nil
}

// formImage returns nil when no profileImage part was sent.
func formImage(c echo.Context) (*services.Image, error) {
	fh, err := c.FormFile("profileImage")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest("malformed profile image")
	}
	if fh.Size > maxImageSize {
		return nil, badRequest("profile image is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize))
	if err != nil {
		return nil, err
	}
	return &services.Image{ContentType: fh.Header.Get(echo.HeaderContentType), Data: data}, nil
}

func (h *handlers) addUser(c echo.Context) error {
	in, err := userForm(c)
	if err != nil {
		return err
	}
	if in.Username == "" || in.Email == "" {
		return badRequest("username and email are required")
	}

	u, err := h.users.AddNewUser(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *handlers) updateUser(c echo.Context) error {
	in, err := userForm(c)
	if err != nil {
		return err
	}
	current := c.FormValue("currentUsername")
	if current == "" {
		return badRequest("currentUsername is required")
	}

	u, err := h.users.UpdateUser(c.Request().Context(), services.UpdateUserInput{CurrentUsername: current, NewUserInput: in})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *handlers) findUser(c echo.Context) error {
	u, err := h.users.FindUserByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *handlers) listUsers(c echo.Context) error {
	list, err := h.users.GetUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *handlers) resetPassword(c echo.Context) error {
	email := c.Param("email")
	if err := h.users.ResetPassword(c.Request().Context(), email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newHttpResponse(http.StatusOK, "an email with a new password was sent to: "+email))
}

// updateProfileImage is allowed for the user themself or anyone holding
// user:update.
func (h *handlers) updateProfileImage(c echo.Context) error {
	username := c.FormValue("username")
	claims := claimsFrom(c)
	if claims == nil || (claims.Subject != username && !claims.HasAuthority(models.AuthorityUpdate)) {
		return common.ErrForbidden
	}

	img, err := formImage(c)
	if err != nil {
		return err
	}

	u, err := h.users.UpdateProfileImage(c.Request().Context(), username, img)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *handlers) deleteUser(c echo.Context) error {
	if err := h.users.DeleteUser(c.Request().Context(), c.Param("username")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) profileImage(c echo.Context) error {
	data, ct, err := h.users.ProfileImage(c.Request().Context(), c.Param("username"), c.Param("fileName"))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, ct, data)
}

func (h *handlers) tempProfileImage(c echo.Context) error {
	data, ct, err := h.users.TempProfileImage(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	if ct == "" {
		ct = "image/jpeg"
	}
	return c.Blob(http.StatusOK, ct, data)
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
