package authhandler

import (
	"errors"
	"net/http"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/services/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *auth.Service
}

func New(svc *auth.Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/api/register", h.register)
	r.POST("/api/login", h.login)
}

// @Summary		Register an account
// @Tags			Auth
// @Param			body	body		RegisterBody	true	"Account payload"
// @Success		201		{object}	auth.Session
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/api/register [post]
func (h *Handler) register(ginCtx *gin.Context) {
	var body RegisterBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	sess, err := h.svc.Register(ginCtx.Request.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, sess)
}

// @Summary		Log in
// @Tags			Auth
// @Param			body	body		LoginBody	true	"Credentials"
// @Success		200		{object}	auth.Session
// @Failure		401		{object}	ErrorResponse
// @Router			/api/login [post]
func (h *Handler) login(ginCtx *gin.Context) {
	var body LoginBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	sess, err := h.svc.Login(ginCtx.Request.Context(), body.Email, body.Password)
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, sess)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auctionerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auctionerrors.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, auctionerrors.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
