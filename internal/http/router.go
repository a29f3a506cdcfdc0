// README: HTTP router registration.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"fareway/internal/http/handlers"
	"fareway/internal/http/middleware"
	"fareway/internal/infra"
	"fareway/internal/modules/booking"
)

type RouterDeps struct {
	Booking        *booking.Service
	Verifier       infra.TokenVerifier
	Logger         logrus.FieldLogger
	GeocodeTimeout time.Duration
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	hubHandler := handlers.NewHubHandler(deps.Booking)
	api.GET("/hub", hubHandler.Get)

	quoteHandler := handlers.NewQuoteHandler(deps.Booking, deps.GeocodeTimeout)
	api.POST("/quotes", quoteHandler.Create)

	rideHandler := handlers.NewRideHandler(deps.Booking)
	rides := api.Group("/rides", middleware.Auth(deps.Verifier))
	rides.POST("", rideHandler.Book)
	rides.GET("", rideHandler.List)
	rides.GET("/eligibility", rideHandler.Eligibility)
	rides.GET("/summary", rideHandler.Summary)

	return r
}
