package api

import (
	"fmt"

	"github.com/easel-cloud/easel/api/rest/bind"
	"github.com/easel-cloud/easel/pkg/env"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
)

// Start launches easel's API.
func Start(deps bind.Dependencies) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// health
	e.GET("/health", Health)

	// metrics
	prometheus.NewPrometheus("easel", nil).Use(e)

	// REST
	bind.All(e.Group("/v1"), deps)

	return e.Start(fmt.Sprintf(":%v", env.Variables().Port))
}
