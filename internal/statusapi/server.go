package statusapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/internal/reporter"
	"github.com/germanramos/hydra-app-manager/pkg/model"
)

// IterationProvider 提供最近一次迭代结果
type IterationProvider interface {
	Last() *reporter.IterationResult
}

// LoadProvider 提供本机负载
type LoadProvider interface {
	Status(ctx context.Context) (model.ServerStatus, error)
}

// Server 状态API服务
type Server struct {
	e      *echo.Echo
	host   string
	port   int
	logger config.Logger
}

// NewServer 创建状态API服务
func NewServer(cfg config.StatusAPIConfig, iterations IterationProvider, load LoadProvider, logger config.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// 添加中间件
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("状态API请求",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))

	h := newHandler(iterations, load, logger)
	h.RegisterRoutes(e)

	return &Server{
		e:      e,
		host:   cfg.ListenAddress,
		port:   cfg.Port,
		logger: logger,
	}
}

// Start 以非阻塞方式启动服务
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("状态API服务启动", zap.String("addr", addr))

	go func() {
		if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
			s.logger.Error("状态API服务启动失败", zap.String("addr", addr), zap.Error(err))
		}
	}()

	return nil
}

// ServeHTTP 实现http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Shutdown 关闭服务
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
