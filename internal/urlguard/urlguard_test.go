package urlguard

import (
	"context"
	"net"
	"testing"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	ips map[string][]net.IPAddr
}

func (f fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	if ips, ok := f.ips[host]; ok {
		return ips, nil
	}
	return []net.IPAddr{{IP: net.ParseIP("93.184.216.34")}}, nil
}

func TestCanonicalizeIdempotent(t *testing.T) {
	u1, err := model.Canonicalize("HTTPS://Example.com:443/a/../b?z=1&a=2#frag")
	require.NoError(t, err)
	u2, err := model.Canonicalize(u1.String())
	require.NoError(t, err)
	assert.Equal(t, u1, u2)
}

func TestValidateBlocksMetadataHost(t *testing.T) {
	g := New(config.SSRFConfig{BlockPrivate: true}, fakeResolver{})
	u, err := model.Canonicalize("http://169.254.169.254/latest/meta-data")
	require.NoError(t, err)

	err = g.Validate(context.Background(), u)
	require.Error(t, err)

	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, model.KindBlockedByGuard, e.Kind)
	assert.Equal(t, model.ReasonMetadataHost, e.Reason)
}

func TestValidateBlocksResolvedPrivateAddress(t *testing.T) {
	resolver := fakeResolver{ips: map[string][]net.IPAddr{
		"internal.example.com": {{IP: net.ParseIP("10.1.2.3")}},
	}}
	g := New(config.SSRFConfig{BlockPrivate: true}, resolver)
	u, err := model.Canonicalize("http://internal.example.com/")
	require.NoError(t, err)

	err = g.Validate(context.Background(), u)
	require.Error(t, err)
	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, model.ReasonPrivateAddress, e.Reason)
}

func TestValidateBlocksBadPort(t *testing.T) {
	g := New(config.SSRFConfig{BlockPrivate: true}, fakeResolver{})
	u, err := model.Canonicalize("http://example.com:6379/")
	require.NoError(t, err)

	err = g.Validate(context.Background(), u)
	require.Error(t, err)
	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, model.ReasonBlockedPort, e.Reason)
}

func TestValidateAllowsPublicHost(t *testing.T) {
	g := New(config.SSRFConfig{BlockPrivate: true}, fakeResolver{})
	u, err := model.Canonicalize("https://example.com/")
	require.NoError(t, err)
	assert.NoError(t, g.Validate(context.Background(), u))
}

func TestValidateRejectsNonHTTPScheme(t *testing.T) {
	g := New(config.SSRFConfig{BlockPrivate: true}, fakeResolver{})
	u, err := model.Canonicalize("ftp://example.com/")
	require.NoError(t, err)
	err = g.Validate(context.Background(), u)
	require.Error(t, err)
	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, model.ReasonScheme, e.Reason)
}
