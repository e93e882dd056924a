package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/internal/workerpool"
	"github.com/germanramos/hydra-app-manager/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newObservedLogger 创建可以检查日志内容的Logger
func newObservedLogger() (config.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return config.NewZapLogger(zap.New(core)), logs
}

// statusServer 返回固定响应的测试服务器
func statusServer(t *testing.T, code int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func serverFor(url string) model.ServerConfig {
	return model.ServerConfig{PublicURL: "http://public:8080/app", PrivateURL: url, Cost: 1, Cloud: "local"}
}

func TestPollReady(t *testing.T) {
	server := statusServer(t, http.StatusOK, `{"state":0,"cpuLoad":1.5,"memLoad":2.5}`)
	logger, logs := newObservedLogger()
	p := New(time.Second, logger)

	start := time.Now().UnixMilli()
	status := p.Poll(context.Background(), serverFor(server.URL))

	assert.Equal(t, model.StateReady, status.State)
	assert.Equal(t, 1.5, status.CPULoad)
	assert.Equal(t, 2.5, status.MemLoad)
	assert.GreaterOrEqual(t, status.Timestamp, start)
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len(), "成功轮询不应记录错误")
}

func TestPollReportedUnavailable(t *testing.T) {
	server := statusServer(t, http.StatusOK, `{"state":1,"cpuLoad":90,"memLoad":80}`)
	p := New(time.Second, config.NewNopLogger())

	status := p.Poll(context.Background(), serverFor(server.URL))

	assert.Equal(t, model.StateUnavailable, status.State, "应使用服务器上报的状态")
	assert.Equal(t, 90.0, status.CPULoad)
	assert.Equal(t, 80.0, status.MemLoad)
}

func TestPollTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	logger, logs := newObservedLogger()
	p := New(50*time.Millisecond, logger)

	start := time.Now().UnixMilli()
	status := p.Poll(context.Background(), serverFor(server.URL))

	assert.Equal(t, model.UnavailableStatus(time.UnixMilli(status.Timestamp)), status)
	assert.GreaterOrEqual(t, status.Timestamp, start, "时间戳不应早于轮询开始时间")
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len(), "超时应记录一条错误日志")

	_, err := p.Fetch(context.Background(), serverFor(server.URL))
	assert.True(t, model.IsCode(err, model.ErrPollTransport), "超时属于传输错误")
}

func TestPollUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := New(time.Second, config.NewNopLogger())
	start := time.Now().UnixMilli()
	status := p.Poll(context.Background(), serverFor(url))

	assert.Equal(t, model.StateUnavailable, status.State)
	assert.Zero(t, status.CPULoad)
	assert.Zero(t, status.MemLoad)
	assert.GreaterOrEqual(t, status.Timestamp, start)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want int
	}{
		{"非法JSON", http.StatusOK, `not json`, model.ErrPollParse},
		{"缺少state", http.StatusOK, `{"cpuLoad":1,"memLoad":2}`, model.ErrPollParse},
		{"缺少cpuLoad", http.StatusOK, `{"state":0,"memLoad":2}`, model.ErrPollParse},
		{"缺少memLoad", http.StatusOK, `{"state":0,"cpuLoad":1}`, model.ErrPollParse},
		{"字段类型错误", http.StatusOK, `{"state":"ready","cpuLoad":1,"memLoad":2}`, model.ErrPollParse},
		{"未知state", http.StatusOK, `{"state":7,"cpuLoad":1,"memLoad":2}`, model.ErrPollParse},
		{"负数state", http.StatusOK, `{"state":-1,"cpuLoad":1,"memLoad":2}`, model.ErrPollParse},
		{"服务器错误", http.StatusInternalServerError, `{"state":0,"cpuLoad":1,"memLoad":2}`, model.ErrPollTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := statusServer(t, tt.code, tt.body)
			p := New(time.Second, config.NewNopLogger())

			_, err := p.Fetch(context.Background(), serverFor(server.URL))
			require.Error(t, err)
			assert.True(t, model.IsCode(err, tt.want), "错误类型不符: %v", err)

			status := p.Poll(context.Background(), serverFor(server.URL))
			assert.Equal(t, model.StateUnavailable, status.State)
			assert.Zero(t, status.CPULoad)
			assert.Zero(t, status.MemLoad)
		})
	}
}

func TestPollCancelledContext(t *testing.T) {
	server := statusServer(t, http.StatusOK, `{"state":0,"cpuLoad":1,"memLoad":2}`)
	p := New(time.Second, config.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := p.Poll(ctx, serverFor(server.URL))
	assert.Equal(t, model.StateUnavailable, status.State, "取消的上下文应立即返回不可用")
}

func TestPollAllKeepsOrder(t *testing.T) {
	ready := statusServer(t, http.StatusOK, `{"state":0,"cpuLoad":10,"memLoad":20}`)
	broken := statusServer(t, http.StatusOK, `{}`)

	pool, err := workerpool.New(2, config.NewNopLogger())
	require.NoError(t, err)
	defer pool.Release()

	p := New(time.Second, config.NewNopLogger())
	servers := []model.ServerConfig{serverFor(ready.URL), serverFor(broken.URL), serverFor(ready.URL)}

	statuses := p.PollAll(context.Background(), pool, servers)
	require.Len(t, statuses, 3)
	assert.Equal(t, model.StateReady, statuses[0].State)
	assert.Equal(t, model.StateUnavailable, statuses[1].State)
	assert.Equal(t, model.StateReady, statuses[2].State)
	assert.Equal(t, 10.0, statuses[2].CPULoad)
}

func TestPollAllRecoversPanic(t *testing.T) {
	ready := statusServer(t, http.StatusOK, `{"state":0,"cpuLoad":10,"memLoad":20}`)
	logger, logs := newObservedLogger()

	pool, err := workerpool.New(2, config.NewNopLogger())
	require.NoError(t, err)
	defer pool.Release()

	p := New(time.Second, logger)
	p.now = func() time.Time { panic("时钟故障") }

	start := time.Now().UnixMilli()
	statuses := p.PollAll(context.Background(), pool, []model.ServerConfig{serverFor(ready.URL)})

	require.Len(t, statuses, 1)
	assert.Equal(t, model.StateUnavailable, statuses[0].State, "异常的轮询应报告为不可用")
	assert.Zero(t, statuses[0].CPULoad)
	assert.Zero(t, statuses[0].MemLoad)
	assert.GreaterOrEqual(t, statuses[0].Timestamp, start, "时间戳应为当前时间")
	assert.Equal(t, 1, logs.FilterMessage("获取服务器状态异常").Len(), "异常应通过日志记录一次")
}
