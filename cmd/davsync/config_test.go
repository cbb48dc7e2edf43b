package main

import (
	"path/filepath"
	"testing"

	"github.com/openmined/davsync/internal/pairstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithStoredCredentials(t *testing.T) {
	store, err := pairstore.Open(filepath.Join(t.TempDir(), "pairs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	stored := pairstore.Credentials{ServerURL: "https://a.example/dav", Login: "alice", Password: "secret-for-a"}
	require.NoError(t, store.SaveCredentials(stored))

	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "empty config takes everything",
			in:   Config{},
			want: Config{ServerURL: stored.ServerURL, Login: "alice", Password: "secret-for-a"},
		},
		{
			name: "same server with trailing slash",
			in:   Config{ServerURL: "https://a.example/dav/"},
			want: Config{ServerURL: "https://a.example/dav/", Login: "alice", Password: "secret-for-a"},
		},
		{
			name: "other server gets nothing",
			in:   Config{ServerURL: "https://b.example/dav"},
			want: Config{ServerURL: "https://b.example/dav"},
		},
		{
			name: "other login keeps its own empty password",
			in:   Config{Login: "bob"},
			want: Config{ServerURL: stored.ServerURL, Login: "bob"},
		},
		{
			name: "explicit values win",
			in:   Config{Password: "override"},
			want: Config{ServerURL: stored.ServerURL, Login: "alice", Password: "override"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			require.NoError(t, c.withStoredCredentials(store))
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestConfig_WithStoredCredentialsMissing(t *testing.T) {
	store, err := pairstore.Open(filepath.Join(t.TempDir(), "pairs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := Config{ServerURL: "https://b.example/dav"}
	require.NoError(t, c.withStoredCredentials(store))
	assert.Empty(t, c.Login)
	assert.Empty(t, c.Password)
}
