package app

import (
	"noticeboard/pkg/api"
	"noticeboard/pkg/api/handlers"
	"noticeboard/pkg/auth"
	"noticeboard/pkg/directory"

	"net/http"
)

// startHTTP builds the handler, starts the HTTP server in a goroutine and
// returns a channel that will contain any server error.
func (a *App) startHTTP() <-chan error {
	secCfg := auth.SecConfig{
		AllowedOrigins: append([]string{}, a.cfg.Security.CORS.AllowedOrigins...),
		RPS:            a.cfg.Security.RateLimit.RPS,
		Burst:          a.cfg.Security.RateLimit.Burst,
		FrontendKeys:   map[string]struct{}{},
		BackendKeys:    map[string]struct{}{},
		AdminKeys:      map[string]struct{}{},
	}
	for _, k := range a.cfg.Security.APIKeys.Frontend {
		secCfg.FrontendKeys[k] = struct{}{}
	}
	for _, k := range a.cfg.Security.APIKeys.Backend {
		secCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range a.cfg.Security.APIKeys.Admin {
		secCfg.AdminKeys[k] = struct{}{}
	}

	deps := handlers.Deps{
		Dir:       directory.StoreLookup{},
		Retention: a.retention,
	}

	a.srv = &http.Server{Addr: a.cfg.Addr(), Handler: api.Handler(secCfg, deps)}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.ListenAndServe()
	}()
	return errCh
}
