package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/internal/workerpool"
	"github.com/germanramos/hydra-app-manager/pkg/model"
	"go.uber.org/zap"
)

// DefaultTimeout 单次发布的超时时间
const DefaultTimeout = 5 * time.Second

// Result 向单个hydra发布的结果
type Result struct {
	Hydra      string        `json:"hydra"`
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Err        error         `json:"-"`
}

// OK 发布是否成功
func (r Result) OK() bool {
	return r.Err == nil
}

// Publisher 将报告POST到hydra
type Publisher struct {
	client  *http.Client
	timeout time.Duration
	logger  config.Logger
}

// New 创建Publisher，timeout<=0时使用默认超时
func New(timeout time.Duration, logger config.Logger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Publisher{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// TargetURL 构建应用的发布地址: <hydra>/app/<appID>
func TargetURL(hydra, appID string) string {
	return strings.TrimRight(hydra, "/") + "/app/" + url.PathEscape(appID)
}

// Publish 序列化一次报告并发布到所有hydra
// 单个hydra失败只记录错误日志，不影响其他hydra；只有序列化失败时返回错误
func (p *Publisher) Publish(ctx context.Context, pool *workerpool.Pool, report *model.Report, hydras []string, appID string) ([]Result, error) {
	payload, err := report.Marshal()
	if err != nil {
		return nil, err
	}
	p.logger.Debug("待发布的报告", zap.ByteString("payload", payload))

	results := make([]Result, len(hydras))
	pool.Run(len(hydras), func(i int) {
		defer func() {
			if r := recover(); r != nil {
				err := model.NewPublishTransportError(hydras[i], fmt.Errorf("发布异常: %v", r))
				p.logger.Error("发布报告到hydra异常",
					zap.String("hydra", hydras[i]),
					zap.Any("panic", r),
					zap.Stack("stack"))
				results[i] = Result{Hydra: hydras[i], URL: TargetURL(hydras[i], appID), Error: err.Error(), Err: err}
			}
		}()
		results[i] = p.publishOne(ctx, hydras[i], appID, payload)
	})

	return results, nil
}

// publishOne 发布到单个hydra并记录结果
func (p *Publisher) publishOne(ctx context.Context, hydra, appID string, payload []byte) Result {
	target := TargetURL(hydra, appID)
	p.logger.Debug("发布报告", zap.String("hydra", hydra), zap.String("url", target))

	start := time.Now()
	code, err := p.Send(ctx, target, payload)
	result := Result{
		Hydra:      hydra,
		URL:        target,
		StatusCode: code,
		Duration:   time.Since(start),
		Err:        err,
	}

	if err != nil {
		result.Error = err.Error()
		p.logger.Error("发布报告到hydra失败",
			zap.String("hydra", hydra),
			zap.Int("status_code", code),
			zap.Error(err))
		return result
	}

	p.logger.Debug("发布成功", zap.String("hydra", hydra), zap.Duration("duration", result.Duration))
	return result
}

// Send POST一次JSON负载，返回HTTP状态码
func (p *Publisher) Send(ctx context.Context, target string, payload []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, model.NewPublishTransportError(target, fmt.Errorf("创建HTTP请求失败: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, model.NewPublishTransportError(target, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, model.NewPublishStatusError(target, resp.StatusCode)
	}

	return resp.StatusCode, nil
}
