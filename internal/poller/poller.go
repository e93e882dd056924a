package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/internal/workerpool"
	"github.com/germanramos/hydra-app-manager/pkg/model"
	"go.uber.org/zap"
)

// DefaultTimeout 单次轮询的超时时间
const DefaultTimeout = 5 * time.Second

// 状态响应体的最大长度
const maxBodySize = 1 << 20

// statusResponse 被监控服务器返回的状态
// 字段使用指针以区分缺失和零值
type statusResponse struct {
	State   *int     `json:"state"`
	CPULoad *float64 `json:"cpuLoad"`
	MemLoad *float64 `json:"memLoad"`
}

// Poller 通过HTTP GET获取服务器状态
type Poller struct {
	client  *http.Client
	timeout time.Duration
	logger  config.Logger
	now     func() time.Time
}

// New 创建Poller，timeout<=0时使用默认超时
func New(timeout time.Duration, logger config.Logger) *Poller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Poller{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Fetch 获取单个服务器的状态，失败时返回AgentError
func (p *Poller) Fetch(ctx context.Context, server model.ServerConfig) (model.ServerStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.PrivateURL, nil)
	if err != nil {
		return model.ServerStatus{}, model.NewPollTransportError(server.PrivateURL, fmt.Errorf("创建HTTP请求失败: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return model.ServerStatus{}, model.NewPollTransportError(server.PrivateURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return model.ServerStatus{}, model.NewPollTransportError(server.PrivateURL,
			fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.ServerStatus{}, model.NewPollTransportError(server.PrivateURL, fmt.Errorf("读取响应体失败: %w", err))
	}

	status, err := parseStatus(body)
	if err != nil {
		return model.ServerStatus{}, model.NewPollParseError(server.PrivateURL, err)
	}
	status.Timestamp = p.now().UnixMilli()

	return status, nil
}

// Poll 获取服务器状态，任何错误都记录日志并转换为UNAVAILABLE状态
// 轮询过程中的panic同样视为失败，时间戳取恢复时的当前时间
func (p *Poller) Poll(ctx context.Context, server model.ServerConfig) (status model.ServerStatus) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("获取服务器状态异常",
				zap.String("server", server.PrivateURL),
				zap.Any("panic", r),
				zap.Stack("stack"))
			status = model.UnavailableStatus(time.Now())
		}
	}()

	p.logger.Debug("获取服务器状态", zap.String("server", server.PrivateURL))

	status, err := p.Fetch(ctx, server)
	if err != nil {
		p.logger.Error("获取服务器状态失败",
			zap.String("server", server.PrivateURL),
			zap.Error(err))
		return model.UnavailableStatus(p.now())
	}

	return status
}

// PollAll 通过协程池并发轮询所有服务器，结果顺序与servers一致
func (p *Poller) PollAll(ctx context.Context, pool *workerpool.Pool, servers []model.ServerConfig) []model.ServerStatus {
	statuses := make([]model.ServerStatus, len(servers))
	pool.Run(len(servers), func(i int) {
		statuses[i] = p.Poll(ctx, servers[i])
	})
	return statuses
}

// parseStatus 解析状态JSON，三个字段都必须存在
func parseStatus(body []byte) (model.ServerStatus, error) {
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.ServerStatus{}, fmt.Errorf("解析状态失败: %w", err)
	}

	switch {
	case resp.State == nil:
		return model.ServerStatus{}, fmt.Errorf("缺少字段 state")
	case resp.CPULoad == nil:
		return model.ServerStatus{}, fmt.Errorf("缺少字段 cpuLoad")
	case resp.MemLoad == nil:
		return model.ServerStatus{}, fmt.Errorf("缺少字段 memLoad")
	}

	state := model.ServerState(*resp.State)
	if state != model.StateReady && state != model.StateUnavailable {
		return model.ServerStatus{}, fmt.Errorf("未知的state: %d", *resp.State)
	}

	return model.ServerStatus{
		CPULoad: *resp.CPULoad,
		MemLoad: *resp.MemLoad,
		State:   state,
	}, nil
}
