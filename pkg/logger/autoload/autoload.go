// Package autoload initializes the global logger from environment
// configuration when imported for side effect.
package autoload

import (
	configx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/pkg/config"
	logx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
