package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Report 一次迭代生成的汇总报告，即发送给hydra的请求体
type Report struct {
	LocalStrategyEvents map[int64]string       `json:"localStrategyEvents"`
	CloudStrategyEvents map[int64]string       `json:"cloudStrategyEvents"`
	Servers             map[string]ServerEntry `json:"servers"`
}

// ServerEntry 报告中单个服务器的条目
type ServerEntry struct {
	Server string      `json:"server"` // 公共地址
	Cost   int         `json:"cost"`
	Cloud  string      `json:"cloud"`
	Status StatusEntry `json:"status"`
}

// StatusEntry 服务器状态在报告中的表示
type StatusEntry struct {
	CPULoad     float64               `json:"cpuLoad"`
	MemLoad     float64               `json:"memLoad"`
	TimeStamp   int64                 `json:"timeStamp"`
	StateEvents map[int64]ServerState `json:"stateEvents"`
}

// NewReport 创建空报告，策略事件以at为时间戳
func NewReport(at time.Time, localStrategy, cloudStrategy string) *Report {
	ts := at.UnixMilli()
	return &Report{
		LocalStrategyEvents: map[int64]string{ts: localStrategy},
		CloudStrategyEvents: map[int64]string{ts: cloudStrategy},
		Servers:             make(map[string]ServerEntry),
	}
}

// NewServerEntry 由服务器配置和轮询结果构造报告条目
func NewServerEntry(server ServerConfig, status ServerStatus) ServerEntry {
	return ServerEntry{
		Server: server.PublicURL,
		Cost:   server.Cost,
		Cloud:  server.Cloud,
		Status: StatusEntry{
			CPULoad:     status.CPULoad,
			MemLoad:     status.MemLoad,
			TimeStamp:   status.Timestamp,
			StateEvents: map[int64]ServerState{status.Timestamp: status.State},
		},
	}
}

// State 返回条目中最新的状态
func (e StatusEntry) State() ServerState {
	var (
		latest int64
		state  = StateUnavailable
		found  bool
	)
	for ts, s := range e.StateEvents {
		if !found || ts > latest {
			latest, state, found = ts, s, true
		}
	}
	return state
}

// Marshal 序列化报告
func (r *Report) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("序列化报告失败: %w", err)
	}
	return data, nil
}

// UnmarshalReport 反序列化报告
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("解析报告失败: %w", err)
	}
	return &r, nil
}
