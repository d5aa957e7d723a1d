package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		expect string
	}{
		{name: "nothing set", expect: ProviderLocal},
		{name: "explicit provider wins", env: map[string]string{EnvProvider: "OpenAI", EnvJinaAPIKey: "k"}, expect: ProviderOpenAI},
		{name: "jina key", env: map[string]string{EnvJinaAPIKey: "k", EnvOpenAIAPIKey: "k"}, expect: ProviderJina},
		{name: "openai key", env: map[string]string{EnvOpenAIAPIKey: "k"}, expect: ProviderOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expect, DetectProvider())
		})
	}
}

func TestNew(t *testing.T) {
	clearProviderEnv(t)

	e, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())
	assert.IsType(t, &LocalProvider{}, e)

	e, err = New(Config{Provider: "local", CacheSize: 10})
	require.NoError(t, err)
	assert.IsType(t, &cachedEmbedder{}, e)
	assert.Equal(t, LocalDimension, e.Dimension())

	e, err = New(Config{Provider: "jina", APIKey: "k", Model: "m", Endpoint: "http://localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, "m", e.Model())

	_, err = New(Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = New(Config{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestNewFromEnv(t *testing.T) {
	clearProviderEnv(t)
	e, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())
	assert.NoError(t, e.Close())
}
