package qdrant

import (
	"errors"
	"testing"
	"time"
)

func TestResolveConfigFromEnvValid(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "diary_vectors")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "")
	t.Setenv("QDRANT_VECTOR_DIM", "")
	t.Setenv("QDRANT_TIMEOUT", "2s")

	cfg, err := ResolveConfigFromEnv(384)
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.URL != "http://qdrant:6333" {
		t.Fatalf("URL: want=%q got=%q", "http://qdrant:6333", cfg.URL)
	}
	if cfg.NamespacePrefix != defaultNamespacePrefix {
		t.Fatalf("NamespacePrefix: want=%q got=%q", defaultNamespacePrefix, cfg.NamespacePrefix)
	}
	if cfg.VectorDim != 384 {
		t.Fatalf("VectorDim: want=384 got=%d", cfg.VectorDim)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("Timeout: want=2s got=%s", cfg.Timeout)
	}
	if !cfg.CreateCollection {
		t.Fatalf("CreateCollection: want=true")
	}
}

func TestResolveConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name       string
		url        string
		collection string
		dim        string
		want       ConfigErrorCode
	}{
		{name: "missing url", url: "", collection: "c", dim: "3", want: ConfigErrorMissingURL},
		{name: "invalid url", url: "qdrant:6333", collection: "c", dim: "3", want: ConfigErrorInvalidURL},
		{name: "missing collection", url: "http://q:6333", collection: "", dim: "3", want: ConfigErrorMissingCollection},
		{name: "zero dim", url: "http://q:6333", collection: "c", dim: "0", want: ConfigErrorInvalidVectorDim},
		{name: "garbage dim", url: "http://q:6333", collection: "c", dim: "abc", want: ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QDRANT_URL", tc.url)
			t.Setenv("QDRANT_COLLECTION", tc.collection)
			t.Setenv("QDRANT_VECTOR_DIM", tc.dim)

			_, err := ResolveConfigFromEnv(384)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got=%T (%v)", err, err)
			}
			if cfgErr.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, cfgErr.Code)
			}
		})
	}
}
