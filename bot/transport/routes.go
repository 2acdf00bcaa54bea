package transport

import (
	tg "github.com/m3rciful/slrbot/core/telegram"
	"github.com/m3rciful/slrbot/core/telegram/router"
)

// Routes registers the adapter on reg, installs it as the registry fallback
// and returns every bot route: commands and their aliases, callbacks, and
// text. adminID guards the operator commands.
func (a *Adapter) Routes(reg *tg.Registry, adminID int64) ([]tg.Route, error) {
	if err := a.Register(reg); err != nil {
		return nil, err
	}
	reg.SetFallbacks(a)
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: adminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{})...)
	return routes, nil
}
