// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dispatch/internal/http/handlers"
	"dispatch/internal/http/middleware"
)

type RouterDeps struct {
	Orders     handlers.OrderService
	Riders     handlers.RiderService
	Wallets    handlers.WalletService
	Dispatcher handlers.Dispatcher
	Candidates handlers.CandidateFinder
	Log        *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	orderHandler := handlers.NewOrderHandler(deps.Orders)
	r.POST("/api/orders", orderHandler.Create)
	r.GET("/api/orders/:id", orderHandler.Get)
	r.PUT("/api/orders/:id/status", orderHandler.UpdateStatus)
	r.POST("/api/orders/:id/cancel", orderHandler.Cancel)

	dispatchHandler := handlers.NewDispatchHandler(deps.Orders, deps.Dispatcher, deps.Candidates)
	r.POST("/api/orders/:id/assign", dispatchHandler.Assign)
	r.POST("/api/orders/:id/dispatch", dispatchHandler.Dispatch)
	r.GET("/api/orders/:id/dispatch", dispatchHandler.DispatchStatus)
	r.GET("/api/dispatch/candidates", dispatchHandler.Candidates)

	riderHandler := handlers.NewRiderHandler(deps.Riders, deps.Wallets)
	r.PUT("/api/riders/:id/availability", riderHandler.SetAvailability)
	r.PUT("/api/riders/:id/location", riderHandler.UpdateLocation)
	r.GET("/api/riders/:id/wallet", riderHandler.Wallet)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
