// File: config.go

package config

import (
	"github.com/zeromicro/go-zero/rest"

	"github.com/suleymanmyradov/ekey/pkg/ekeytoken"
)

// Config is the typed configuration for the ekey issuance/verification
// service, loaded from YAML via conf.MustLoad, per spec.md §6's
// configuration inputs. Grounded on the teacher's
// services/gateway/api/internal/config/config.go (rest.RestConf embedding)
// and growthapi.go's conf.MustLoad bootstrap.
type Config struct {
	rest.RestConf

	Issuer struct {
		URL                   string
		Audience              string
		SigningAlg            string `json:",default=ES256,options=ES256|EdDSA"`
		ClockToleranceSeconds int64  `json:",default=5"`
		MaxTTLSeconds         int64  `json:",default=60"`
		MaxLimit              int    `json:",default=10"`
	}

	Keys struct {
		KeyDir         string `json:",optional"`
		SigningKeyFile string `json:",optional"`
	}

	UsageStore struct {
		Capacity     int                   `json:",default=10000"`
		CleanupEvery int64                 `json:",default=300"` // seconds
		Redis        ekeytoken.RedisConfig `json:",optional"`
	}

	Audit struct {
		Sink string `json:",default=log,options=log|noop|channel"`
	}

	MTLS struct {
		Enabled bool `json:",default=false"`
	}
}
