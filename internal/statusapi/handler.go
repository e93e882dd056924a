package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/germanramos/hydra-app-manager/internal/config"
)

// 采集本机负载的超时时间
const loadTimeout = 5 * time.Second

// Response 通用API响应
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handler 状态API处理器
type handler struct {
	iterations IterationProvider
	load       LoadProvider
	logger     config.Logger
}

func newHandler(iterations IterationProvider, load LoadProvider, logger config.Logger) *handler {
	return &handler{
		iterations: iterations,
		load:       load,
		logger:     logger,
	}
}

// RegisterRoutes 注册路由
func (h *handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	api := e.Group("/api/v1")
	api.GET("/report", h.GetReport)
	api.GET("/iteration", h.GetIteration)
	api.GET("/load", h.GetLoad)
}

// Health 健康检查
func (h *handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "app-manager",
	})
}

// GetReport 返回最近一次发布的报告，格式与发送给hydra的一致
func (h *handler) GetReport(c echo.Context) error {
	last := h.iterations.Last()
	if last == nil {
		return c.JSON(http.StatusNotFound, Response{
			Code:    http.StatusNotFound,
			Message: "尚未完成任何迭代",
		})
	}
	return c.JSON(http.StatusOK, last.Report)
}

// GetIteration 返回最近一次迭代的详情，包括每个hydra的发布结果
func (h *handler) GetIteration(c echo.Context) error {
	last := h.iterations.Last()
	if last == nil {
		return c.JSON(http.StatusNotFound, Response{
			Code:    http.StatusNotFound,
			Message: "尚未完成任何迭代",
		})
	}
	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    last,
	})
}

// GetLoad 以被监控服务器的状态格式返回本机负载，本机也可以作为被轮询的服务器
func (h *handler) GetLoad(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), loadTimeout)
	defer cancel()

	status, err := h.load.Status(ctx)
	if err != nil {
		h.logger.Warn("采集本机负载失败", zap.Error(err))
	}
	return c.JSON(http.StatusOK, status)
}
