package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/germanramos/hydra-app-manager/pkg/model"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构
type Config struct {
	// 应用及策略配置
	Main MainConfig `mapstructure:"main"`

	// 被监控的服务器列表
	Servers []ServerEntry `mapstructure:"servers"`

	// 接收报告的hydra地址列表
	Hydras []string `mapstructure:"hydras"`

	// 轮询配置
	Poll PollConfig `mapstructure:"poll"`

	// 发布配置
	Publish PublishConfig `mapstructure:"publish"`

	// 日志配置
	Log LogConfig `mapstructure:"log"`

	// 状态API配置
	StatusAPI StatusAPIConfig `mapstructure:"status_api"`

	// etcd配置，启用后服务器列表从etcd读取
	Etcd EtcdConfig `mapstructure:"etcd"`
}

// PollConfig 轮询配置
type PollConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Workers int           `mapstructure:"workers"` // 并发轮询的协程数
}

// PublishConfig 发布配置
type PublishConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// StatusAPIConfig 状态API配置
type StatusAPIConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listen_address"`
	Port          int    `mapstructure:"port"`
}

// EtcdConfig etcd配置
type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

// MainConfig 应用标识、成本与策略
type MainConfig struct {
	AppID         string `mapstructure:"app_id"`
	Cost          int    `mapstructure:"cost"`
	Cloud         string `mapstructure:"cloud"`
	LocalStrategy string `mapstructure:"local_strategy"`
	CloudStrategy string `mapstructure:"cloud_strategy"`
	SleepTime     int    `mapstructure:"sleep_time"` // 秒
}

// ServerEntry 一个服务器的公共地址和内部轮询地址
// 也可以写成 "public,private" 形式的字符串
type ServerEntry struct {
	Public  string `mapstructure:"public"`
	Private string `mapstructure:"private"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// LoadConfig 从文件和环境变量加载配置并校验
func LoadConfig(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, model.NewConfigError(err)
	}

	config, err := decode(v)
	if err != nil {
		return nil, model.NewConfigError(err)
	}

	if err := config.Validate(); err != nil {
		return nil, model.NewConfigError(err)
	}

	return config, nil
}

// newViper 创建viper实例并读取配置文件
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果指定了配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/app-manager")
	}
	v.SetConfigType("yaml")

	// 尝试从配置文件加载
	if err := v.ReadInConfig(); err != nil {
		// 找不到默认配置文件时只使用默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件错误: %w", err)
		}
	}

	// 绑定环境变量
	v.SetEnvPrefix("APP_MANAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	return v, nil
}

// decode 将viper中的配置解析到结构体
func decode(v *viper.Viper) (*Config, error) {
	var config Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		serverEntryHook,
	))
	if err := v.Unmarshal(&config, hook); err != nil {
		return nil, fmt.Errorf("解析配置错误: %w", err)
	}

	// 日志文件默认写在配置文件旁边
	if config.Log.File == "" && v.ConfigFileUsed() != "" {
		config.Log.File = v.ConfigFileUsed() + ".log"
	}

	return &config, nil
}

// serverEntryHook 支持 "public,private" 字符串形式的服务器配置
func serverEntryHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(ServerEntry{}) {
		return data, nil
	}

	parts := strings.Split(data.(string), ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("服务器配置格式应为 public,private: %q", data)
	}

	return map[string]interface{}{
		"public":  strings.TrimSpace(parts[0]),
		"private": strings.TrimSpace(parts[1]),
	}, nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 主配置
	v.SetDefault("main.app_id", "")
	v.SetDefault("main.cost", 0)
	v.SetDefault("main.cloud", "")
	v.SetDefault("main.local_strategy", "INDIFFERENT")
	v.SetDefault("main.cloud_strategy", "INDIFFERENT")
	v.SetDefault("main.sleep_time", 5)

	// 轮询与发布
	v.SetDefault("poll.timeout", "5s")
	v.SetDefault("poll.workers", 8)
	v.SetDefault("publish.timeout", "5s")

	// 日志默认配置，与原有的滚动日志保持一致：1MB，保留3个
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 1)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 0)
	v.SetDefault("log.compress", false)

	// 状态API
	v.SetDefault("status_api.enabled", false)
	v.SetDefault("status_api.listen_address", "0.0.0.0")
	v.SetDefault("status_api.port", 8090)

	// etcd
	v.SetDefault("etcd.enabled", false)
	v.SetDefault("etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd.username", "")
	v.SetDefault("etcd.password", "")
	v.SetDefault("etcd.dial_timeout", "5s")
	v.SetDefault("etcd.prefix", "/app-manager/servers/")
}

// bindEnvVariables 绑定没有默认值的配置项
func bindEnvVariables(v *viper.Viper) {
	// 逗号分隔的hydra地址列表
	v.BindEnv("hydras", "APP_MANAGER_HYDRAS")
}

// ServerConfigs 返回带有成本和云标签的服务器列表
func (c *Config) ServerConfigs() []model.ServerConfig {
	servers := make([]model.ServerConfig, 0, len(c.Servers))
	for _, s := range c.Servers {
		servers = append(servers, model.ServerConfig{
			PublicURL:  s.Public,
			PrivateURL: s.Private,
			Cost:       c.Main.Cost,
			Cloud:      c.Main.Cloud,
		})
	}
	return servers
}

// SleepInterval 返回两次迭代之间的间隔
func (c *Config) SleepInterval() time.Duration {
	return time.Duration(c.Main.SleepTime) * time.Second
}

// GetDefaultConfigPath 返回默认配置文件路径
func GetDefaultConfigPath() string {
	paths := []string{
		"./config.yaml",
		"./configs/config.yaml",
		"/etc/app-manager/config.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
