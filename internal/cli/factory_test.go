package cli_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/concierge/internal/cli"
	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/adapters/console"
	"github.com/aretw0/concierge/pkg/adapters/twilio"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		HTTP:      config.HTTPConfig{Port: 8888},
		Log:       config.LogConfig{Level: "info", Format: "text"},
		Channel:   config.ChannelConfig{From: "whatsapp:+10000000000", Prefix: domain.DefaultChannelPrefix},
		Gateway:   config.GatewayConfig{Kind: config.GatewayConsole, Timeout: time.Second},
		Store:     config.StoreConfig{Kind: config.StoreMemory, TTL: time.Hour},
		Templates: map[string]string{},
		Scheduler: config.SchedulerConfig{DispatchTimeout: time.Second, Retention: time.Minute},
	}
}

func key(b byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{b}, 32))
}

func TestBuild_ConsoleConversation(t *testing.T) {
	cfg := baseConfig()
	var out bytes.Buffer

	rt, err := cli.Build(cfg, logging.NewNop(), cli.Options{Console: &out})
	require.NoError(t, err)
	defer rt.Close(context.Background())

	assert.IsType(t, &console.Gateway{}, rt.Gateway)

	s, err := rt.App.Handle(context.Background(), domain.Signal{From: "whatsapp:+15550001", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingService, s.Stage)
	assert.Contains(t, out.String(), "Welcome!")
}

func TestBuild_FileStoreEncrypted(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Kind = config.StoreFile
	cfg.Store.Path = t.TempDir()
	cfg.Store.EncryptionKey = key(1)
	cfg.Store.PreviousKeys = []string{key(2)}

	rt, err := cli.Build(cfg, logging.NewNop(), cli.Options{})
	require.NoError(t, err)
	defer rt.Close(context.Background())

	ctx := context.Background()
	_, err = rt.App.Handle(ctx, domain.Signal{From: "whatsapp:+15550001", Body: "hi"})
	require.NoError(t, err)

	keys, err := rt.App.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"whatsapp:+15550001"}, keys)
}

func TestNewStore_RedisWithLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.Store.Kind = config.StoreRedis
	cfg.Redis = config.RedisConfig{Addr: mr.Addr(), Prefix: "test:session:", Lock: true}

	store, locker, closer, err := cli.NewStore(cfg)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer()
	assert.NotNil(t, store)
	assert.NotNil(t, locker)

	unlock, err := locker.Lock(context.Background(), "whatsapp:+1", time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(context.Background()))
}

func TestNewStore_Errors(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Kind = "etcd"
	_, _, _, err := cli.NewStore(cfg)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.Store.EncryptionKey = "short"
	_, _, _, err = cli.NewStore(cfg)
	assert.ErrorContains(t, err, "encryption key")
}

func TestNewGateway(t *testing.T) {
	cfg := baseConfig()
	cfg.Gateway.Kind = config.GatewayTwilio
	cfg.Twilio = config.TwilioConfig{AccountSID: "AC123", AuthToken: "secret"}

	gw, err := cli.NewGateway(cfg, cli.Options{})
	require.NoError(t, err)
	assert.IsType(t, &twilio.Gateway{}, gw)

	cfg.Gateway.Kind = "pigeon"
	_, err = cli.NewGateway(cfg, cli.Options{})
	assert.Error(t, err)
}

func TestTemplates(t *testing.T) {
	cfg := baseConfig()
	cfg.Templates = map[string]string{
		string(domain.ActionPresentServices): "HXservices",
		string(domain.ActionConfirmBooking):  "",
		"unknown_kind":                       "HXignored",
	}
	assert.Equal(t, map[domain.ActionKind]string{domain.ActionPresentServices: "HXservices"}, cli.Templates(cfg))
}

func TestLoadCatalog(t *testing.T) {
	cat, err := cli.LoadCatalog(baseConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Services)

	cfg := baseConfig()
	cfg.Catalog.Path = "does-not-exist.yaml"
	_, err = cli.LoadCatalog(cfg)
	assert.Error(t, err)
}
