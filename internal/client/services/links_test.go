package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/cryptox"
	"github.com/dmitrijs2005/cipherdrop/internal/envelope"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		kind     string
		id       string
		fragment string
		wantErr  bool
	}{
		{name: "share", link: "https://drop.example/share/abc#key=k&iv=i", kind: "share", id: "abc", fragment: "key=k&iv=i"},
		{name: "prefix path", link: "https://drop.example/app/request/r1#key=k", kind: "request", id: "r1", fragment: "key=k"},
		{name: "no fragment", link: "http://localhost/share/abc", kind: "share", id: "abc"},
		{name: "trailing slash", link: "http://localhost/share/abc/#x", kind: "share", id: "abc", fragment: "x"},
		{name: "wrong kind", link: "http://localhost/request/abc#x", kind: "share", wantErr: true},
		{name: "no id", link: "http://localhost/share/", kind: "share", wantErr: true},
		{name: "garbage", link: "::::", kind: "share", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, fragment, err := parseLink(tt.link, tt.kind)
			if tt.wantErr {
				assert.Equal(t, common.KindValidation, common.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.fragment, fragment)
		})
	}
}

func TestLink_FragmentSurvivesParse(t *testing.T) {
	env, err := envelope.NewSimple(cryptox.NewContentKey(), cryptox.NewNonce())
	require.NoError(t, err)

	l := link("http://localhost:8080", "share", "id-1", env)
	id, fragment, err := parseLink(l, "share")
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	back, err := envelope.Parse(fragment)
	require.NoError(t, err)
	assert.Equal(t, env.ContentKey, back.ContentKey)
	assert.Equal(t, env.ContentNonce, back.ContentNonce)
}

func TestRequestID(t *testing.T) {
	id, err := requestID(" r1 ")
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	id, err = requestID("http://localhost/request/r2#key=x")
	require.NoError(t, err)
	assert.Equal(t, "r2", id)

	_, err = requestID("")
	assert.Error(t, err)
}

func TestNeedsPassword_Simple(t *testing.T) {
	env, err := envelope.NewSimple(cryptox.NewContentKey(), cryptox.NewNonce())
	require.NoError(t, err)

	needs, err := NeedsPassword("http://localhost/share/x#" + env.Fragment())
	require.NoError(t, err)
	assert.False(t, needs)

	_, err = NeedsPassword("http://localhost/share/x")
	assert.ErrorIs(t, err, common.ErrMissingKeyMaterial)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "application/pdf", typeOf("report.PDF"))
	assert.Equal(t, "application/octet-stream", typeOf("data.unknownext"))
}
