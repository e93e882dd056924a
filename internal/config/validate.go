package config

import (
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/germanramos/hydra-app-manager/pkg/model"
)

// 日志级别
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Validate 校验整个配置
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Main),
		validation.Field(&c.Servers,
			validation.When(!c.Etcd.Enabled, validation.Required),
			validation.By(uniqueServerKeys),
		),
		validation.Field(&c.Hydras,
			validation.Required,
			validation.Each(validation.By(validateHTTPURL)),
		),
		validation.Field(&c.Poll),
		validation.Field(&c.Publish),
		validation.Field(&c.Log),
		validation.Field(&c.StatusAPI),
		validation.Field(&c.Etcd),
	)
}

// Validate 校验轮询配置
func (p PollConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&p.Workers, validation.Required, validation.Min(1)),
	)
}

// Validate 校验发布配置
func (p PublishConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// Validate 校验日志配置
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		validation.Field(&l.MaxSizeMB, validation.Min(0)),
		validation.Field(&l.MaxBackups, validation.Min(0)),
	)
}

// Validate 校验状态API配置
func (s StatusAPIConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port,
			validation.When(s.Enabled, validation.Required, validation.Min(1), validation.Max(65535)),
		),
	)
}

// Validate 校验etcd配置
func (e EtcdConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Endpoints, validation.When(e.Enabled, validation.Required)),
		validation.Field(&e.Prefix, validation.When(e.Enabled, validation.Required)),
		validation.Field(&e.DialTimeout, validation.When(e.Enabled, validation.Required)),
	)
}

// Validate 校验主配置
func (m MainConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.AppID, validation.Required),
		validation.Field(&m.Cost, validation.Min(0)),
		validation.Field(&m.Cloud, validation.Required),
		validation.Field(&m.LocalStrategy, validation.Required),
		validation.Field(&m.CloudStrategy, validation.Required),
		validation.Field(&m.SleepTime, validation.Required, validation.Min(1)),
	)
}

// UnknownStrategies 返回不在hydra策略列表中的策略配置项
// 未知策略不影响启动，原样转发给hydra，由调用方记录警告
func (m MainConfig) UnknownStrategies() []string {
	var unknown []string
	if !model.IsLocalStrategy(m.LocalStrategy) {
		unknown = append(unknown, "local_strategy="+m.LocalStrategy)
	}
	if !model.IsCloudStrategy(m.CloudStrategy) {
		unknown = append(unknown, "cloud_strategy="+m.CloudStrategy)
	}
	return unknown
}

// Validate 校验单个服务器配置
func (s ServerEntry) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Public, validation.Required, validation.By(validateHTTPURL)),
		validation.Field(&s.Private, validation.Required, validation.By(validateHTTPURL)),
	)
}

// validateHTTPURL 要求是带host的http(s)绝对地址
func validateHTTPURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "scheme must be http or https")
	}
	if err := is.Host.Validate(u.Hostname()); err != nil || u.Hostname() == "" {
		return validation.NewError("validation_invalid_host", "invalid host")
	}

	return nil
}

// uniqueServerKeys 报告以host:port为键，重复的键会互相覆盖
func uniqueServerKeys(value interface{}) error {
	servers, ok := value.([]ServerEntry)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a server list")
	}

	seen := make(map[string]struct{}, len(servers))
	for _, s := range servers {
		key := model.ServerKey(s.Public)
		if _, dup := seen[key]; dup {
			return validation.NewError("validation_duplicate_server", "duplicate server identity "+key)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// ValidateServer 校验从其他来源（如etcd）读取的服务器地址
func ValidateServer(public, private string) error {
	return ServerEntry{Public: public, Private: private}.Validate()
}
