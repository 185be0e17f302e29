package modules

import (
	"strings"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/api/middleware"
	"learnhub.io/notifier/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		Store:  infra.Store,
		Checks: infra.ReadinessChecks(),
		List:   cfg.Notification,
		JWTCfg: JWTConfig(cfg),
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}

// JWTConfig derives session token settings from the security section.
func JWTConfig(cfg *config.Config) middleware.JWTConfig {
	verificationKeys := make([][]byte, 0, len(cfg.Security.JWTVerificationKeys))
	for _, key := range cfg.Security.JWTVerificationKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}
	return middleware.JWTConfig{
		SigningKey:       []byte(cfg.Security.SessionSecret),
		VerificationKeys: verificationKeys,
		Issuer:           cfg.Security.TokenIssuer,
		ExpiresIn:        cfg.Security.TokenTTL,
	}
}
