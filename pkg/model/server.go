package model

import (
	"net/url"
	"time"
)

// ServerState 服务器状态，取值与hydra的状态枚举一致
type ServerState int

const (
	// StateReady 服务器可用
	StateReady ServerState = 0
	// StateUnavailable 服务器不可用（轮询失败或服务器自身上报）
	StateUnavailable ServerState = 1
)

// String 返回状态名称
func (s ServerState) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// ServerConfig 表示一个被监控的服务器
type ServerConfig struct {
	PublicURL  string `json:"public"`          // 对外地址，作为服务器标识上报
	PrivateURL string `json:"private"`         // 内部轮询地址
	Cost       int    `json:"cost,omitempty"`  // 服务器成本
	Cloud      string `json:"cloud,omitempty"` // 所属云标签
}

// Key 返回服务器在报告中的键
func (s ServerConfig) Key() string {
	return ServerKey(s.PublicURL)
}

// ServerKey 从公共地址中提取host:port作为键
// 无法解析出host时退回到原始字符串，保证每个服务器都有键
func ServerKey(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Host == "" {
		return publicURL
	}
	return u.Host
}

// ServerStatus 一次轮询得到的服务器状态
type ServerStatus struct {
	CPULoad   float64     `json:"cpuLoad"`
	MemLoad   float64     `json:"memLoad"`
	State     ServerState `json:"state"`
	Timestamp int64       `json:"timeStamp"` // 观测时间，毫秒时间戳
}

// UnavailableStatus 构造轮询失败时使用的状态
func UnavailableStatus(at time.Time) ServerStatus {
	return ServerStatus{
		CPULoad:   0,
		MemLoad:   0,
		State:     StateUnavailable,
		Timestamp: at.UnixMilli(),
	}
}
