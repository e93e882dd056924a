package config

import (
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch 监听配置文件变化，新配置校验通过后调用onChange
// 校验失败的配置只记录日志，继续使用旧配置
func Watch(configPath string, logger Logger, onChange func(*Config)) error {
	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		logger.Warn("未使用配置文件，跳过配置热加载")
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("检测到配置文件变化", zap.String("file", e.Name), zap.String("op", e.Op.String()))

		cfg, err := decode(v)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			logger.Error("新配置无效，继续使用旧配置", zap.Error(err))
			return
		}

		if unknown := cfg.Main.UnknownStrategies(); len(unknown) > 0 {
			logger.Warn("未知的策略，将原样发布", zap.Strings("strategies", unknown))
		}

		onChange(cfg)
	})
	v.WatchConfig()

	logger.Info("开始监听配置文件", zap.String("file", v.ConfigFileUsed()))
	return nil
}
