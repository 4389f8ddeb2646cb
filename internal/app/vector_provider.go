package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/introvirght/engagement-backend/internal/observability"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
	"github.com/introvirght/engagement-backend/internal/platform/qdrant"
	"github.com/introvirght/engagement-backend/internal/platform/vectorstore"
	"github.com/introvirght/engagement-backend/internal/services"
)

type qdrantStore interface {
	vectorstore.VectorStore
	Bootstrap(ctx context.Context) error
}

var newQdrantVectorStore = func(log *logger.Logger, cfg qdrant.Config) (qdrantStore, error) {
	return qdrant.NewVectorStore(log, cfg)
}

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider     VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL    VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL    VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl   VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorQdrantConfigFailed  VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorConnectFailed       VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed  VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorIndex returns the ANN index for VECTOR_PROVIDER. The sql provider has no
// secondary index, so it returns (nil, "sql", nil).
func resolveVectorIndex(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (vectorstore.VectorStore, string, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.VectorProvider))
	switch provider {
	case "", services.VectorProviderSQL:
		log.Info("Selecting vector store provider", "provider", services.VectorProviderSQL)
		return nil, services.VectorProviderSQL, nil

	case services.VectorProviderQdrant:
		qcfg, err := qdrant.ResolveConfigFromEnv(cfg.EmbeddingDim)
		if err != nil {
			return nil, "", bootstrapFailed(log, provider, err)
		}
		if qcfg.VectorDim != cfg.EmbeddingDim {
			return nil, "", bootstrapFailed(log, provider, &qdrant.ConfigError{
				Code:  qdrant.ConfigErrorInvalidVectorDim,
				Value: fmt.Sprintf("%d (embedder produces %d)", qcfg.VectorDim, cfg.EmbeddingDim),
			})
		}
		log.Info(
			"Selecting vector store provider",
			"provider", provider,
			"qdrant_url", qcfg.URL,
			"qdrant_collection", qcfg.Collection,
			"qdrant_namespace_prefix", qcfg.NamespacePrefix,
			"qdrant_vector_dim", qcfg.VectorDim,
		)
		vs, err := newQdrantVectorStore(log, qcfg)
		if err != nil {
			return nil, "", bootstrapFailed(log, provider, err)
		}
		if err := vs.Bootstrap(ctx); err != nil {
			return nil, "", bootstrapFailed(log, provider, err)
		}
		return instrumentVectorStore(provider, vs, metrics), provider, nil

	default:
		err := &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
		log.Error("Vector store provider selection failed", "provider", provider, "error_code", err.Code, "error", err)
		return nil, "", err
	}
}

func bootstrapFailed(log *logger.Logger, provider string, err error) error {
	classified := classifyVectorProviderBootstrapError(provider, err)
	log.Error(
		"Vector store provider bootstrap failed",
		"provider", provider,
		"error_code", vectorProviderBootstrapErrorCode(classified),
		"error", classified,
	)
	return classified
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingCollection:
			return wrap(VectorProviderBootstrapErrorMissingQdrantColl)
		case qdrant.ConfigErrorInvalidVectorDim:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantVector)
		default:
			return wrap(VectorProviderBootstrapErrorQdrantConfigFailed)
		}
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return VectorProviderBootstrapErrorConnectFailed
}
