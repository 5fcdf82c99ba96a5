package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// errorResponse повторяет формат ошибок публичного API.
type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
}

const internalErrorMessage = "Internal server error"

// writeError пишет ошибку в JSON и прерывает цепочку обработчиков.
// Детали внутренних ошибок уходят только в лог.
func writeError(c *gin.Context, err error) {
	status := domain.HTTPStatus(err)
	resp := errorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    err.Error(),
	}
	if de, ok := domain.AsError(err); ok {
		resp.Message = de.Message
		resp.Code = de.Code
	}
	if domain.KindOf(err) == domain.KindInternal && status >= http.StatusInternalServerError {
		resp.Message = internalErrorMessage
		resp.Code = ""
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// badRequest: ошибка разбора параметров запроса.
func badRequest(c *gin.Context, msg string) {
	writeError(c, domain.InvalidInput(msg))
}
