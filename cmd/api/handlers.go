package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storerate/admin"
	"storerate/apperr"
	"storerate/auth"
	"storerate/gate"
	"storerate/rating"
)

var errMalformedBody = apperr.New(apperr.KindValidation, "Malformed JSON body")

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Token string    `json:"token"`
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Role  auth.Role `json:"role"`
}

type userResponse struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Address string    `json:"address"`
	Role    auth.Role `json:"role"`
}

type createdUserResponse struct {
	Message string          `json:"message"`
	User    userResponse    `json:"user"`
	Store   *admin.StoreRow `json:"store,omitempty"`
}

type createdStoreResponse struct {
	Message string         `json:"message"`
	Store   admin.StoreRow `json:"store"`
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Address: u.Address, Role: u.Role}
}

// bindJSON decodes the request body, reporting malformed input as a
// validation error. An empty body leaves dst zeroed.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		_ = c.Error(err)
		gate.Abort(c, errMalformedBody)
		return false
	}
	return true
}

// caller returns the authenticated identity. The gate guarantees it exists
// on every route that calls this.
func caller(c *gin.Context) (auth.Identity, bool) {
	id, ok := gate.IdentityFrom(c)
	if !ok {
		gate.Abort(c, gate.ErrMissingToken)
	}
	return id, ok
}

func (s *Server) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := s.authService.Register(c.Request.Context(), req); err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, messageResponse{Message: "User registered successfully!"})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := s.authService.Login(c.Request.Context(), req)
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Token: res.Token,
		ID:    res.User.ID,
		Name:  res.User.Name,
		Role:  res.User.Role,
	})
}

func (s *Server) handleUpdatePassword(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req auth.UpdatePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := s.authService.UpdatePassword(c.Request.Context(), id.ID, req); err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

func (s *Server) handleMe(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	user, err := s.authService.Profile(c.Request.Context(), id.ID)
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(*user))
}

func (s *Server) handleLogout(c *gin.Context) {
	token, ok := gate.TokenFrom(c)
	if !ok {
		gate.Abort(c, gate.ErrMissingToken)
		return
	}
	claims, err := s.authService.VerifyToken(token)
	if err != nil {
		gate.Abort(c, err)
		return
	}

	ttl := claims.ExpiresAt.Sub(s.clock())
	if err := s.revocations.Revoke(c.Request.Context(), token, ttl); err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *Server) handleListStores(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	stores, err := s.ratingService.ListStores(c.Request.Context(), id.ID, c.Query("search"))
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stores)
}

func (s *Server) handleRateStore(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	storeID, err := strconv.ParseInt(c.Param("storeId"), 10, 64)
	if err != nil || storeID <= 0 {
		gate.Abort(c, rating.ErrStoreNotFound)
		return
	}

	var req rating.RateRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Rating == nil {
		gate.Abort(c, rating.ValidateRating(0))
		return
	}

	if err := s.ratingService.SubmitOrUpdateRating(c.Request.Context(), id.ID, storeID, *req.Rating); err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Rating submitted successfully"})
}

func (s *Server) handleOwnerDashboard(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	dash, err := s.ratingService.OwnerDashboard(c.Request.Context(), id.ID)
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (s *Server) handleAdminDashboard(c *gin.Context) {
	stats, err := s.adminService.DashboardStats(c.Request.Context())
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleAddUser(c *gin.Context) {
	var req admin.AddUserRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := s.adminService.AddUser(c.Request.Context(), req)
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, createdUserResponse{
		Message: "User added successfully",
		User:    toUserResponse(created.User),
		Store:   created.Store,
	})
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.adminService.ListUsers(c.Request.Context(), c.Query("search"))
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) handleAddStore(c *gin.Context) {
	var req admin.AddStoreRequest
	if !bindJSON(c, &req) {
		return
	}

	store, err := s.adminService.AddStore(c.Request.Context(), req)
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, createdStoreResponse{Message: "Store added successfully", Store: store})
}

func (s *Server) handleAdminListStores(c *gin.Context) {
	stores, err := s.adminService.ListStores(c.Request.Context(), c.Query("search"))
	if err != nil {
		gate.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stores)
}
