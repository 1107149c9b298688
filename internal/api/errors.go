package api

import (
	"errors"
	"net/http"

	"PickSync/internal/repository"
	"PickSync/internal/service"
)

// httpStatusFromError 业务错误到HTTP状态码的映射
// 上游不可用映射为503，记录缺失映射为404，其余一律500
func httpStatusFromError(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUpstreamUnavailable), errors.Is(err, service.ErrSourceDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
