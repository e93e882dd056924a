package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/pkg/model"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// 监听中断后重新同步前的等待时间
const resyncDelay = time.Second

// EtcdSource 服务器列表来自etcd，其他配置来自静态来源
// 服务器以JSON形式存放在 <prefix><name> 下: {"public": "...", "private": "..."}
type EtcdSource struct {
	base   *StaticSource
	cfg    config.EtcdConfig
	client *clientv3.Client
	logger config.Logger

	mu      sync.RWMutex
	servers map[string]model.ServerConfig // etcd key -> 服务器
}

// NewEtcdSource 创建etcd来源，需要调用Connect和Start
func NewEtcdSource(cfg config.EtcdConfig, base *StaticSource, logger config.Logger) *EtcdSource {
	return &EtcdSource{
		base:    base,
		cfg:     cfg,
		logger:  logger,
		servers: make(map[string]model.ServerConfig),
	}
}

// Connect 连接到etcd集群
func (s *EtcdSource) Connect() error {
	s.logger.Info("连接到etcd集群", zap.Strings("endpoints", s.cfg.Endpoints))

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   s.cfg.Endpoints,
		DialTimeout: s.cfg.DialTimeout,
		Username:    s.cfg.Username,
		Password:    s.cfg.Password,
	})
	if err != nil {
		s.logger.Error("连接etcd失败", zap.Error(err))
		return fmt.Errorf("连接etcd失败: %w", err)
	}

	s.client = client
	return nil
}

// Close 关闭连接
func (s *EtcdSource) Close() error {
	if s.client != nil {
		s.logger.Info("关闭etcd连接")
		return s.client.Close()
	}
	return nil
}

// Start 加载当前服务器列表并在后台监听变化，ctx取消后停止监听
func (s *EtcdSource) Start(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("etcd客户端未连接")
	}

	rev, err := s.load(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("开始监听etcd服务器列表", zap.String("prefix", s.cfg.Prefix), zap.Int64("revision", rev))
	go s.watchLoop(ctx, rev+1)

	return nil
}

// Snapshot 返回静态配置加上etcd中的服务器列表
func (s *EtcdSource) Snapshot(ctx context.Context) (Snapshot, error) {
	snapshot, err := s.base.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Servers = s.currentServers()
	return snapshot, nil
}

// currentServers 按etcd key排序返回服务器，host:port重复时保留第一个
func (s *EtcdSource) currentServers() []model.ServerConfig {
	cost, cloud := s.base.defaults()

	s.mu.RLock()
	keys := make([]string, 0, len(s.servers))
	for k := range s.servers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	servers := make([]model.ServerConfig, 0, len(keys))
	seen := make(map[string]string, len(keys))
	for _, k := range keys {
		server := s.servers[k]
		if first, dup := seen[server.Key()]; dup {
			s.logger.Warn("etcd中存在重复的服务器标识，忽略",
				zap.String("key", k),
				zap.String("kept", first),
				zap.String("server", server.Key()))
			continue
		}
		seen[server.Key()] = k

		if server.Cost == 0 {
			server.Cost = cost
		}
		if server.Cloud == "" {
			server.Cloud = cloud
		}
		servers = append(servers, server)
	}
	s.mu.RUnlock()

	return servers
}

// load 读取前缀下的全部服务器，替换本地列表，返回读取时的revision
func (s *EtcdSource) load(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	resp, err := s.client.Get(ctx, s.cfg.Prefix, clientv3.WithPrefix())
	if err != nil {
		s.logger.Error("获取服务器列表失败", zap.String("prefix", s.cfg.Prefix), zap.Error(err))
		return 0, fmt.Errorf("获取服务器列表失败: %w", err)
	}

	servers := make(map[string]model.ServerConfig, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		server, err := parseServer(kv.Value)
		if err != nil {
			s.logger.Warn("忽略无效的服务器配置", zap.String("key", string(kv.Key)), zap.Error(err))
			continue
		}
		servers[string(kv.Key)] = server
	}

	s.mu.Lock()
	s.servers = servers
	s.mu.Unlock()

	s.logger.Info("已从etcd加载服务器列表", zap.Int("count", len(servers)))
	return resp.Header.Revision, nil
}

// watchLoop 监听前缀变化，监听中断（如revision被压缩）时重新加载
func (s *EtcdSource) watchLoop(ctx context.Context, rev int64) {
	for {
		wctx, cancel := context.WithCancel(ctx)
		watchChan := s.client.Watch(clientv3.WithRequireLeader(wctx), s.cfg.Prefix,
			clientv3.WithPrefix(), clientv3.WithRev(rev))

		for watchResp := range watchChan {
			if err := watchResp.Err(); err != nil {
				s.logger.Warn("etcd监听中断", zap.String("prefix", s.cfg.Prefix), zap.Error(err))
				break
			}

			for _, event := range watchResp.Events {
				key := string(event.Kv.Key)
				switch event.Type {
				case clientv3.EventTypePut:
					s.put(key, event.Kv.Value)
				case clientv3.EventTypeDelete:
					s.delete(key)
				}
			}
			rev = watchResp.Header.Revision + 1
		}
		cancel()

		// 等待后重新同步
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("停止监听etcd", zap.String("prefix", s.cfg.Prefix))
				return
			case <-time.After(resyncDelay):
			}

			current, err := s.load(ctx)
			if err == nil {
				rev = current + 1
				break
			}
		}
	}
}

// put 处理新增或更新的服务器
func (s *EtcdSource) put(key string, value []byte) {
	server, err := parseServer(value)
	if err != nil {
		s.logger.Warn("忽略无效的服务器配置", zap.String("key", key), zap.Error(err))
		s.delete(key)
		return
	}

	s.mu.Lock()
	s.servers[key] = server
	s.mu.Unlock()

	s.logger.Info("服务器已更新", zap.String("key", key), zap.String("server", server.PublicURL))
}

// delete 处理删除的服务器
func (s *EtcdSource) delete(key string) {
	s.mu.Lock()
	_, existed := s.servers[key]
	delete(s.servers, key)
	s.mu.Unlock()

	if existed {
		s.logger.Info("服务器已移除", zap.String("key", key))
	}
}

// parseServer 解析并校验etcd中的服务器配置
func parseServer(value []byte) (model.ServerConfig, error) {
	var server model.ServerConfig
	if err := json.Unmarshal(value, &server); err != nil {
		return model.ServerConfig{}, fmt.Errorf("解析服务器配置失败: %w", err)
	}

	server.PublicURL = strings.TrimSpace(server.PublicURL)
	server.PrivateURL = strings.TrimSpace(server.PrivateURL)
	if err := config.ValidateServer(server.PublicURL, server.PrivateURL); err != nil {
		return model.ServerConfig{}, err
	}

	return server, nil
}
