package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"focusflow/internal/apperr"
	"focusflow/internal/repository"
	"focusflow/internal/view"
)

func statusFor(err error) int {
	if errors.Is(err, view.ErrClosed) || errors.Is(err, repository.ErrChatLinked) {
		return http.StatusConflict
	}
	if errors.Is(err, apperr.ErrValidation) {
		return http.StatusUnprocessableEntity
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindQuery, apperr.KindWrite, apperr.KindUpload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperr.Validation("decode request", err))
}

// errorMessage is the text shown on the auth forms.
func errorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Email":
			return "Enter a valid email address."
		case "Password":
			return "Password must be between 6 and 72 characters."
		}
	}
	var e *apperr.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
