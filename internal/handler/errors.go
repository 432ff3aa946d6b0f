package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// writeError maps service errors to API responses. Unknown errors are
// logged and reported as internal errors with fallback as the message.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrPasswordTooLong),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrInvalidImage),
		errors.Is(err, domain.ErrSelfMessage),
		errors.Is(err, domain.ErrInvalidCursor):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Unauthorized(c, "invalid email or password")
	case errors.Is(err, repository.ErrEmailExists):
		response.Conflict(c, "email already exists")
	case errors.Is(err, repository.ErrUserNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, domain.ErrImageTooLarge):
		response.PayloadTooLarge(c, err.Error())
	case errors.Is(err, domain.ErrMediaUnavailable):
		response.ServiceUnavailable(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(fallback)
		_ = c.Error(err)
		response.InternalError(c, fallback)
	}
}
