package handler

import (
	"net/http"
	"time"

	"github.com/haatos/simple-cd/internal"
	"github.com/labstack/echo/v4"
)

func GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, internal.Config)
}

func PostConfig(c echo.Context) error {
	cp := new(ConfigParams)
	if err := c.Bind(cp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid config data")
	}

	config := &internal.Configuration{
		RunTimeoutMinutes: internal.MinutesDuration(
			time.Duration(cp.RunTimeoutMinutes) * time.Minute,
		),
		QueueSize: cp.QueueSize,
	}

	if err := internal.UpdateConfiguration(config); err != nil {
		return newError(err,
			http.StatusInternalServerError, "unable to update configuration file",
		)
	}

	return c.JSON(http.StatusOK, config)
}
