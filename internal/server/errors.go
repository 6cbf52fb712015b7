package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lox/downforce/internal/game"
	"github.com/lox/downforce/internal/i18n"
	"github.com/lox/downforce/internal/room"
	"github.com/lox/downforce/internal/scoring"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

var errorTable = []struct {
	err    error
	status int
	key    i18n.Key
}{
	{game.ErrRoomNotFound, http.StatusNotFound, i18n.ErrRoomNotFound},
	{game.ErrPlayerNotFound, http.StatusNotFound, i18n.ErrPlayerNotFound},
	{game.ErrCarAlreadyClaimed, http.StatusConflict, i18n.ErrCarAlreadyClaimed},
	{game.ErrAlreadyBet, http.StatusConflict, i18n.ErrAlreadyBet},
	{game.ErrPlayerExists, http.StatusConflict, i18n.ErrPlayerExists},
	{game.ErrRoundInProgress, http.StatusConflict, i18n.ErrRoundInProgress},
	{game.ErrWrongPhase, http.StatusConflict, i18n.ErrWrongPhase},
	{game.ErrPositionsNotSet, http.StatusConflict, i18n.ErrPositionsNotSet},
	{game.ErrNotAllPlayersBet, http.StatusConflict, i18n.ErrNotAllPlayersBet},
	{scoring.ErrNotFinished, http.StatusConflict, i18n.ErrNotFinished},
	{game.ErrNotOwner, http.StatusForbidden, i18n.ErrNotOwner},
	{game.ErrNotHost, http.StatusForbidden, i18n.ErrNotHost},
	{game.ErrInvalidPermutation, http.StatusBadRequest, i18n.ErrInvalidPermutation},
	{game.ErrUnknownCar, http.StatusBadRequest, i18n.ErrUnknownCar},
	{game.ErrInvalidPrice, http.StatusBadRequest, i18n.ErrInvalidPrice},
	{room.ErrInvalidName, http.StatusBadRequest, i18n.ErrInvalidName},
	{room.ErrContention, http.StatusConflict, i18n.ErrContention},
}

// classify maps an error to its HTTP status and message key.
func classify(err error) (int, i18n.Key) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.key
		}
	}
	var perr *game.PersistenceError
	if errors.As(err, &perr) || errors.Is(err, room.ErrNoFreeCode) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable, i18n.ErrInternal
	}
	return http.StatusInternalServerError, i18n.ErrInternal
}

func errorCode(key i18n.Key) string {
	return strings.TrimPrefix(string(key), "error.")
}

// abortWithKey writes a localized error without an underlying error value.
func abortWithKey(c *gin.Context, status int, key i18n.Key) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:  errorCode(key),
		Error: i18n.T(locale(c), key),
	})
}
