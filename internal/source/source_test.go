package source

import (
	"context"
	"testing"
	"time"

	"github.com/germanramos/hydra-app-manager/internal/config"
	"github.com/germanramos/hydra-app-manager/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Main = config.MainConfig{
		AppID:         "app1",
		Cost:          4,
		Cloud:         "aws",
		LocalStrategy: "ROUND_ROBIN",
		CloudStrategy: "CHEAPEST",
		SleepTime:     7,
	}
	cfg.Servers = []config.ServerEntry{
		{Public: "http://a:1/app", Private: "http://10.0.0.1:1/status"},
		{Public: "http://b:2/app", Private: "http://10.0.0.2:2/status"},
	}
	cfg.Hydras = []string{"http://hydra:7001"}
	return cfg
}

func TestStaticSourceSnapshot(t *testing.T) {
	src := NewStaticSource(testConfig())

	snapshot, err := src.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "app1", snapshot.AppID)
	assert.Equal(t, "ROUND_ROBIN", snapshot.LocalStrategy)
	assert.Equal(t, "CHEAPEST", snapshot.CloudStrategy)
	assert.Equal(t, 7*time.Second, snapshot.Interval)
	assert.Equal(t, []string{"http://hydra:7001"}, snapshot.Hydras)
	require.Len(t, snapshot.Servers, 2)
	assert.Equal(t, model.ServerConfig{
		PublicURL:  "http://a:1/app",
		PrivateURL: "http://10.0.0.1:1/status",
		Cost:       4,
		Cloud:      "aws",
	}, snapshot.Servers[0])
}

func TestStaticSourceUpdateDoesNotTouchTakenSnapshot(t *testing.T) {
	src := NewStaticSource(testConfig())

	before, err := src.Snapshot(context.Background())
	require.NoError(t, err)

	// 修改取出的快照不应影响来源
	before.Servers[0].PublicURL = "http://mutated:1"
	before.Hydras[0] = "http://mutated"

	updated := testConfig()
	updated.Main.AppID = "app2"
	updated.Servers = updated.Servers[:1]
	src.Update(updated)

	after, err := src.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Len(t, before.Servers, 2, "已取出的快照不受热加载影响")
	assert.Equal(t, "app2", after.AppID)
	assert.Len(t, after.Servers, 1)
	assert.Equal(t, "http://a:1/app", after.Servers[0].PublicURL)
	assert.Equal(t, "http://hydra:7001", after.Hydras[0])
}

func TestEtcdSourceApplyEvents(t *testing.T) {
	base := NewStaticSource(testConfig())
	src := NewEtcdSource(config.EtcdConfig{Prefix: "/app-manager/servers/"}, base, config.NewNopLogger())

	src.put("/app-manager/servers/b", []byte(`{"public":"http://b:2/app","private":"http://10.0.0.2:2"}`))
	src.put("/app-manager/servers/a", []byte(`{"public":"http://a:1/app","private":"http://10.0.0.1:1","cost":9,"cloud":"gce"}`))
	src.put("/app-manager/servers/bad", []byte(`not json`))
	src.put("/app-manager/servers/nourl", []byte(`{"public":"a:1","private":"http://10.0.0.1:1"}`))

	snapshot, err := src.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "app1", snapshot.AppID, "非服务器配置来自静态来源")
	require.Len(t, snapshot.Servers, 2, "无效配置应被忽略")
	assert.Equal(t, model.ServerConfig{PublicURL: "http://a:1/app", PrivateURL: "http://10.0.0.1:1", Cost: 9, Cloud: "gce"}, snapshot.Servers[0])
	assert.Equal(t, model.ServerConfig{PublicURL: "http://b:2/app", PrivateURL: "http://10.0.0.2:2", Cost: 4, Cloud: "aws"}, snapshot.Servers[1], "未指定时使用默认成本和云标签")

	src.delete("/app-manager/servers/a")
	snapshot, err = src.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Servers, 1)
	assert.Equal(t, "b:2", snapshot.Servers[0].Key())
}

func TestEtcdSourceInvalidUpdateRemovesServer(t *testing.T) {
	src := NewEtcdSource(config.EtcdConfig{Prefix: "/p/"}, NewStaticSource(testConfig()), config.NewNopLogger())

	src.put("/p/a", []byte(`{"public":"http://a:1","private":"http://10.0.0.1:1"}`))
	src.put("/p/a", []byte(`{"public":""}`))

	assert.Empty(t, src.currentServers(), "更新为无效配置后服务器应被移除")
}

func TestEtcdSourceDuplicateIdentity(t *testing.T) {
	src := NewEtcdSource(config.EtcdConfig{Prefix: "/p/"}, NewStaticSource(testConfig()), config.NewNopLogger())

	src.put("/p/2", []byte(`{"public":"http://a:1/other","private":"http://10.0.0.2:1"}`))
	src.put("/p/1", []byte(`{"public":"http://a:1/app","private":"http://10.0.0.1:1"}`))

	servers := src.currentServers()
	require.Len(t, servers, 1, "相同host:port只保留一个")
	assert.Equal(t, "http://10.0.0.1:1", servers[0].PrivateURL, "保留key排序靠前的服务器")
}

func TestEtcdSourceStartWithoutConnect(t *testing.T) {
	src := NewEtcdSource(config.EtcdConfig{Prefix: "/p/"}, NewStaticSource(testConfig()), config.NewNopLogger())
	assert.Error(t, src.Start(context.Background()))
	assert.NoError(t, src.Close())
}
