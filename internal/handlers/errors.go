package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"alive-keeper/internal/services"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindUserRejected:     http.StatusBadRequest,
	services.KindInvalid:          http.StatusBadRequest,
	services.KindNetwork:          http.StatusBadGateway,
	services.KindServerRejected:   http.StatusUnprocessableEntity,
	services.KindUnauthorized:     http.StatusUnauthorized,
	services.KindNotAuthenticated: http.StatusUnauthorized,
	services.KindWrongChain:       http.StatusConflict,
}

// respondError writes err with the status of its kind. The error field is
// the user-facing message.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)

	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := "Something went wrong, please retry"
	var ae *services.ActionError
	if errors.As(err, &ae) && ae.Message != "" {
		message = ae.Message
	}

	c.JSON(status, gin.H{
		"error":   message,
		"kind":    kind,
		"details": err.Error(),
	})
}
