package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/repair"
	"github.com/suPer8Hu/fixo/internal/store/redisstore"
	"go.uber.org/zap"
)

type apiError struct {
	status int
	code   int
}

var errorTable = []struct {
	err error
	apiError
}{
	{repair.ErrNotFound, apiError{http.StatusNotFound, 40400}},
	{redisstore.ErrJobNotFound, apiError{http.StatusNotFound, 40401}},
	{repair.ErrUnauthorized, apiError{http.StatusForbidden, 40300}},
	{repair.ErrInvalidInput, apiError{http.StatusBadRequest, 10002}},
	{repair.ErrEmptyMessage, apiError{http.StatusBadRequest, 10003}},
	{repair.ErrInvalidRating, apiError{http.StatusBadRequest, 10004}},
	{repair.ErrInvalidReview, apiError{http.StatusBadRequest, 10009}},
	{repair.ErrInvalidState, apiError{http.StatusConflict, 40900}},
	{repair.ErrInvalidTransition, apiError{http.StatusConflict, 40901}},
	{repair.ErrAlreadyAssigned, apiError{http.StatusConflict, 40902}},
	{repair.ErrNoPendingRequest, apiError{http.StatusConflict, 40903}},
	{repair.ErrSelfApproval, apiError{http.StatusConflict, 40904}},
	{repair.ErrTerminalRequest, apiError{http.StatusConflict, 40905}},
	{repair.ErrProfessionalUnavailable, apiError{http.StatusConflict, 40906}},
	{repair.ErrProfessionalExists, apiError{http.StatusConflict, 40907}},
	{repair.ErrAlreadyRated, apiError{http.StatusConflict, 40908}},
	{repair.ErrConflict, apiError{http.StatusConflict, 40909}},
	{repair.ErrNotApproved, apiError{http.StatusConflict, 40910}},
}

// writeError maps a service error to its envelope. Unknown errors are logged
// and reported as 500 without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			common.Fail(c, e.status, e.code, err.Error())
			return
		}
	}
	h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
}

func unauthorized(c *gin.Context) {
	common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
}

func invalidJSON(c *gin.Context) {
	common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
}
