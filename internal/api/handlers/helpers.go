package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/middleware"
)

var errBadRequest = errs.ErrInvalidInput.WithMessage("invalid request body")

// statusFor maps an error kind to its HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindBusinessRule:
		return http.StatusConflict
	case errs.KindLimit:
		return http.StatusTooManyRequests
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindExternal:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": code, "message": msg}. Unclassified
// errors are logged and hidden behind a generic internal error.
func respondError(c *gin.Context, err error) {
	e, ok := errs.From(err)
	if !ok || e.Kind == errs.KindInternal {
		log.Printf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(statusFor(e.Kind), e)
}

func userID(c *gin.Context) string {
	return c.GetString(middleware.KeyUserID)
}

func adminID(c *gin.Context) string {
	return c.GetString(middleware.KeyAdminID)
}

// paging reads limit/offset query params, clamping limit to [1, max].
func paging(c *gin.Context, def, max int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, errs.ErrInvalidInput.WithMessagef("invalid %s", name))
		return 0, false
	}
	return id, true
}
