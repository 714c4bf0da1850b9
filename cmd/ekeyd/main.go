// File: main.go

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/zeromicro/go-zero/core/conf"

	"github.com/suleymanmyradov/ekey/internal/config"
	"github.com/suleymanmyradov/ekey/internal/handler"
	"github.com/suleymanmyradov/ekey/internal/svc"
)

var configFile = flag.String("f", "etc/ekeyd.yaml", "the config file")

// main bootstraps the ekey issuance/verification service: load config,
// wire collaborators, serve. Grounded on the teacher's
// services/gateway/growth/growthapi.go (flag.String("f", ...),
// conf.MustLoad, start/stop), adapted from go-zero's rest.Server onto
// net/http directly since the external interface (§6) needs only two
// plain routes and go-chi already supplies the router.
func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)
	applyEnvOverrides(&c)

	ctx := svc.NewServiceContext(c)
	router := handler.NewRouter(ctx)

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	fmt.Printf("Starting ekey server at %s...\n", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		panic(err)
	}
}

// applyEnvOverrides implements spec.md §6's environment-variable override
// of the loaded config file: ISSUER_URL, PORT, and SIGNING_ALG, each
// applied only when set so an unset variable never clobbers the YAML
// value.
func applyEnvOverrides(c *config.Config) {
	if v := os.Getenv("ISSUER_URL"); v != "" {
		c.Issuer.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			panic(fmt.Errorf("invalid PORT override %q: %w", v, err))
		}
		c.Port = port
	}
	if v := os.Getenv("SIGNING_ALG"); v != "" {
		c.Issuer.SigningAlg = v
	}
}
