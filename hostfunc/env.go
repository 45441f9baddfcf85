package hostfunc

import (
	"context"

	"github.com/caffeineduck/headless/shim"
)

// Env answers the environment probes a guest makes at startup.
type Env struct {
	env *shim.Environment
}

func NewEnv(env *shim.Environment) *Env {
	return &Env{env: env}
}

// Args returns the module's argument view.
func (e *Env) Args(ctx context.Context, args map[string]any) (any, error) {
	return e.env.Args.Args(), nil
}

// WindowInfo returns the stand-in window and screen geometry.
func (e *Env) WindowInfo(ctx context.Context, args map[string]any) (any, error) {
	w, s := e.env.Window, e.env.Screen
	return WindowInfo{
		InnerWidth:       w.InnerWidth,
		InnerHeight:      w.InnerHeight,
		DevicePixelRatio: w.DevicePixelRatio,
		ScreenWidth:      s.Width,
		ScreenHeight:     s.Height,
		Location: Location{
			Search:   w.Location.Search,
			Href:     w.Location.Href,
			Hostname: w.Location.Hostname,
		},
	}, nil
}

// Register installs env_args and window_info.
func (e *Env) Register(r *Registry) {
	r.Register("env_args", e.Args)
	r.Register("window_info", e.WindowInfo)
}
