package model

import (
	"errors"
	"fmt"
)

// 错误代码
const (
	// ErrPollTransport 无法连接被监控服务器（网络、超时、DNS）
	ErrPollTransport = iota + 1
	// ErrPollParse 服务器返回的状态无法解析
	ErrPollParse
	// ErrPublishTransport 无法连接hydra
	ErrPublishTransport
	// ErrPublishStatus hydra返回非2xx状态码
	ErrPublishStatus
	// ErrConfig 配置错误，启动阶段致命
	ErrConfig
)

// AgentError 代理运行过程中的错误
type AgentError struct {
	Code   int
	Op     string // 发生错误的操作: poll, publish, config
	Target string // 相关的URL或配置项
	Err    error
}

// Error 实现error接口
func (e *AgentError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap 返回原始错误
func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewPollTransportError 创建轮询传输错误
func NewPollTransportError(target string, err error) *AgentError {
	return &AgentError{Code: ErrPollTransport, Op: "poll", Target: target, Err: err}
}

// NewPollParseError 创建轮询解析错误
func NewPollParseError(target string, err error) *AgentError {
	return &AgentError{Code: ErrPollParse, Op: "poll", Target: target, Err: err}
}

// NewPublishTransportError 创建发布传输错误
func NewPublishTransportError(target string, err error) *AgentError {
	return &AgentError{Code: ErrPublishTransport, Op: "publish", Target: target, Err: err}
}

// NewPublishStatusError 创建发布状态码错误
func NewPublishStatusError(target string, statusCode int) *AgentError {
	return &AgentError{
		Code:   ErrPublishStatus,
		Op:     "publish",
		Target: target,
		Err:    fmt.Errorf("unexpected status code %d", statusCode),
	}
}

// NewConfigError 创建配置错误
func NewConfigError(err error) *AgentError {
	return &AgentError{Code: ErrConfig, Op: "config", Err: err}
}

// IsCode 判断错误链中是否包含指定代码的AgentError
func IsCode(err error, code int) bool {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Code == code
	}
	return false
}
