package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/medreport/pkg/infra/app/cliflag"
)

type cacheOptions struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type testOptions struct {
	Addr  string        `mapstructure:"addr"`
	Cache *cacheOptions `mapstructure:"cache"`

	completed bool
}

func newTestOptions() *testOptions {
	return &testOptions{Addr: ":8090", Cache: &cacheOptions{TTL: time.Hour}}
}

func (o *testOptions) Flags() (fss cliflag.NamedFlagSets) {
	fss.FlagSet("http").StringVar(&o.Addr, "addr", o.Addr, "listen address")
	fss.FlagSet("cache").DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "cache ttl")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error { return nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "testapp.yaml", "addr: \":1\"\ncache:\n  ttl: 2h\n")

	// 环境变量覆盖配置文件，命令行参数覆盖环境变量
	t.Setenv("TESTAPP_CACHE_TTL", "3h")

	opts := newTestOptions()
	ran := false
	a := NewApp(
		WithName("testapp"),
		WithOptions(opts),
		WithRunFunc(func() error { ran = true; return nil }),
	)
	a.Command().SetArgs([]string{"--config", cfg, "--addr", ":3"})

	require.NoError(t, a.Command().Execute())
	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":3", opts.Addr)
	assert.Equal(t, 3*time.Hour, opts.Cache.TTL)
}

func TestConfigFileOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TESTAPP_PORT_NUM", "7000")
	cfg := writeFile(t, dir, "testapp.yaml", "addr: \":${TESTAPP_PORT_NUM}\"\n")

	opts := newTestOptions()
	a := NewApp(WithName("testapp"), WithOptions(opts), WithRunFunc(func() error { return nil }))
	a.Command().SetArgs([]string{"--config", cfg})

	require.NoError(t, a.Command().Execute())
	assert.Equal(t, ":7000", opts.Addr)
	assert.Equal(t, time.Hour, opts.Cache.TTL)
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, dir, ".env", "DOTENVAPP_ADDR=:9\n")
	t.Cleanup(func() { _ = os.Unsetenv("DOTENVAPP_ADDR") })

	opts := newTestOptions()
	a := NewApp(
		WithName("dotenvapp"),
		WithOptions(opts),
		WithDotEnv(env, filepath.Join(dir, "missing.env")),
		WithRunFunc(func() error { return nil }),
	)
	a.Command().SetArgs([]string{"--config", writeFile(t, dir, "dotenvapp.yaml", "{}\n")})

	require.NoError(t, a.Command().Execute())
	assert.Equal(t, ":9", opts.Addr)
}

func TestVersionFields(t *testing.T) {
	fields := VersionFields()
	require.Len(t, fields, 6)
	assert.Equal(t, "version", fields[0])
	assert.Equal(t, GetVersion(), fields[1])
	assert.Equal(t, "go", fields[2])
	assert.NotEmpty(t, fields[5])
}

func TestVersionFlagRegistered(t *testing.T) {
	a := NewApp(WithName("medreport-test"), WithNoConfig())
	assert.NotNil(t, a.Command().PersistentFlags().Lookup("version"))

	b := NewApp(WithName("medreport-test"), WithNoConfig(), WithNoVersion())
	assert.Nil(t, b.Command().PersistentFlags().Lookup("version"))
}
