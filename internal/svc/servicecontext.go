// File: servicecontext.go

package svc

import (
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/ekey/internal/config"
	"github.com/suleymanmyradov/ekey/pkg/ekeycrypto/keys"
	"github.com/suleymanmyradov/ekey/pkg/ekeytoken"
)

// ServiceContext wires the concrete KeyProvider/UsageStore/AuditSink/Clock
// implementations into an Issuer and a Verifier, grounded on the teacher's
// ServiceContext pattern (services/gateway/growth/internal/svc) but binding
// ekeytoken collaborators instead of zrpc clients.
type ServiceContext struct {
	Config   config.Config
	Issuer   *ekeytoken.Issuer
	Verifier *ekeytoken.Verifier
}

// NewServiceContext builds a ServiceContext from Config, failing fast
// (panicking, in the teacher's MustNewClient idiom) on unrecoverable
// collaborator construction errors since there is no sensible degraded
// mode for a missing signing key.
func NewServiceContext(c config.Config) *ServiceContext {
	keyProvider := mustKeyProvider(c)
	usageStore := mustUsageStore(c)
	auditSink := auditSinkFor(c)
	clock := ekeytoken.SystemClock{}

	issuer := ekeytoken.NewIssuer(ekeytoken.IssuerConfig{
		IssuerURL:     c.Issuer.URL,
		MaxTTLSeconds: c.Issuer.MaxTTLSeconds,
		MaxLimit:      c.Issuer.MaxLimit,
	}, keyProvider, clock)

	verifier := ekeytoken.NewVerifier(ekeytoken.VerifierConfig{
		IssuerURL:             c.Issuer.URL,
		Audience:              c.Issuer.Audience,
		ClockToleranceSeconds: c.Issuer.ClockToleranceSeconds,
	}, keyProvider, usageStore, auditSink, clock, certExtractorFor(c))

	return &ServiceContext{Config: c, Issuer: issuer, Verifier: verifier}
}

// certExtractorFor returns a CertExtractor only when mTLS binding is
// enabled; a nil CertExtractor makes an mTLS-bound Verify call fail with
// InvalidProof rather than silently reading connection state the deployment
// never intended to trust.
func certExtractorFor(c config.Config) ekeytoken.CertExtractor {
	if !c.MTLS.Enabled {
		return nil
	}
	return ekeytoken.TLSCertExtractor{}
}

func mustKeyProvider(c config.Config) ekeytoken.KeyProvider {
	alg := ekeytoken.Algorithm(c.Issuer.SigningAlg)
	if c.Keys.SigningKeyFile == "" {
		logx.Info("no signing key file configured, generating an ephemeral in-memory keypair")
		provider, err := keys.NewStaticProvider(alg)
		if err != nil {
			logx.Severef("failed to generate static key provider: %v", err)
			panic(err)
		}
		return provider
	}
	provider, err := keys.NewFileProvider(keys.Config{
		KeyDir:         c.Keys.KeyDir,
		SigningKeyFile: c.Keys.SigningKeyFile,
		Algorithm:      alg,
	})
	if err != nil {
		logx.Severef("failed to load signing key: %v", err)
		panic(err)
	}
	return provider
}

func mustUsageStore(c config.Config) ekeytoken.UsageStore {
	if !c.UsageStore.Redis.Enabled() {
		cleanupEvery := time.Duration(c.UsageStore.CleanupEvery) * time.Second
		return ekeytoken.NewMemoryUsageStore(c.UsageStore.Capacity, cleanupEvery)
	}
	store, err := ekeytoken.NewRedisUsageStoreFromConfig(c.UsageStore.Redis)
	if err != nil {
		logx.Severef("failed to connect to usage store redis: %v", err)
		panic(err)
	}
	return store
}

func auditSinkFor(c config.Config) ekeytoken.AuditSink {
	switch c.Audit.Sink {
	case "noop":
		return ekeytoken.NoopAuditSink{}
	case "channel":
		return ekeytoken.NewChannelAuditSink(1024)
	default:
		return ekeytoken.LogAuditSink{}
	}
}
