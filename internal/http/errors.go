package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"identity-service/internal/domain"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidToken       = "invalid token"
	msgInternal           = "internal server error"
)

// translateError maps an internal error to the status and message a client
// may see. Nothing but a validation message is ever taken from err itself.
func translateError(err error) (int, string) {
	var (
		validationErr *domain.ValidationError
		conflictErr   *domain.ConflictError
		authErr       *domain.AuthError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.As(err, &conflictErr):
		return http.StatusConflict, conflictErr.Error()
	case errors.As(err, &authErr):
		if authErr.Reason == domain.ReasonInvalidCredentials {
			return http.StatusUnauthorized, msgInvalidCredentials
		}
		return http.StatusUnauthorized, msgInvalidToken
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, msg := translateError(err)

	entry := h.logger.WithError(err).WithField("path", c.Request.URL.Path)
	switch {
	case status >= http.StatusInternalServerError:
		entry.Error("request failed")
	case status == http.StatusUnauthorized:
		if reason, ok := domain.AuthReasonOf(err); ok {
			entry = entry.WithField("reason", reason.String())
		}
		entry.Debug("request unauthorized")
		if msg == msgInvalidToken {
			c.Header("WWW-Authenticate", `Bearer realm="identity-service"`)
		}
	default:
		entry.Debug("request rejected")
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
