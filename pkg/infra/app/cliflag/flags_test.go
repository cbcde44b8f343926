package cliflag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamedFlagSets(t *testing.T) {
	var fss NamedFlagSets

	fss.FlagSet("http").String("http.addr", ":8090", "listen address")
	fss.FlagSet("cache").Bool("cache.enabled", true, "enable cache")
	fss.FlagSet("http").Duration("http.read-timeout", 0, "read timeout")

	assert.Equal(t, []string{"http", "cache"}, fss.Order)
	assert.NotNil(t, fss.FlagSets["http"].Lookup("http.read-timeout"))

	var buf bytes.Buffer
	PrintSections(&buf, fss, 0)
	assert.Contains(t, buf.String(), "Http flags:")
	assert.Contains(t, buf.String(), "--cache.enabled")
}
