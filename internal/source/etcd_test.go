package source

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// createEtcdSourceForTest 连接环境变量指定的etcd，未设置时跳过测试
func createEtcdSourceForTest(t *testing.T, prefix string) *EtcdSource {
	t.Helper()

	endpoints := os.Getenv("APP_MANAGER_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("未设置APP_MANAGER_ETCD_ENDPOINTS，跳过etcd测试")
	}

	cfg := config.EtcdConfig{
		Enabled:     true,
		Endpoints:   strings.Split(endpoints, ","),
		DialTimeout: 5 * time.Second,
		Prefix:      prefix,
	}

	src := NewEtcdSource(cfg, NewStaticSource(testConfig()), config.NewNopLogger())
	require.NoError(t, src.Connect(), "连接etcd失败")
	t.Cleanup(func() { src.Close() })

	return src
}

func TestEtcdSourceWatch(t *testing.T) {
	prefix := "/test/app-manager/servers/" + time.Now().Format("150405.000") + "/"
	src := createEtcdSourceForTest(t, prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := src.client.Put(ctx, prefix+"a", `{"public":"http://a:1/app","private":"http://10.0.0.1:1"}`)
	require.NoError(t, err, "写入测试键失败")
	defer src.client.Delete(context.Background(), prefix, clientv3.WithPrefix())

	require.NoError(t, src.Start(ctx))

	snapshot, err := src.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Servers, 1, "启动时应加载已有服务器")

	_, err = src.client.Put(ctx, prefix+"b", `{"public":"http://b:2/app","private":"http://10.0.0.2:2"}`)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(src.currentServers()) == 2
	}, 5*time.Second, 50*time.Millisecond, "应通过监听获得新服务器")

	_, err = src.client.Delete(ctx, prefix+"a")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		servers := src.currentServers()
		return len(servers) == 1 && servers[0].Key() == "b:2"
	}, 5*time.Second, 50*time.Millisecond, "删除的服务器应被移除")
}
