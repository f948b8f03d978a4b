// Package api exposes pricing, implied volatility, smile and hedging over a
// JSON REST interface.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/impliedvol"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// Error kinds reported in the "kind" field of error responses.
const (
	KindInvalidInput  = "invalid_input"
	KindNoConvergence = "no_convergence"
	KindNotFound      = "not_found"
	KindInternal      = "internal"
)

// Server serves HTTP requests for the option analytics service.
type Server struct {
	prov   data.Provider
	solver impliedvol.Options
	router *gin.Engine
}

// NewServer creates a new HTTP server and sets up routing. prov backs the
// chain smile endpoint and may be nil to disable it; opts are the default
// implied-vol solver settings.
func NewServer(prov data.Provider, opts impliedvol.Options) *Server {
	server := &Server{prov: prov, solver: opts}

	server.setupRouter()
	return server
}

func (server *Server) setupRouter() {
	router := gin.Default()

	router.GET("/health", server.health)
	router.POST("/price", server.price)
	router.POST("/implied-vol", server.impliedVol)
	router.POST("/smile", server.smile)
	router.GET("/smile/:underlying", server.chainSmile)
	router.POST("/hedge", server.hedge)
	router.POST("/montecarlo", server.monteCarlo)
	server.router = router
}

// Handler returns the router, for embedding or tests.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Start runs the HTTP server on a specific address.
func (server *Server) Start(address string) error {
	logger.Infof("starting REST server on %s", address)
	return server.router.Run(address)
}

func (server *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func errorResponse(kind string, err error) gin.H {
	return gin.H{"error": err.Error(), "kind": kind}
}

// abortWithError maps err onto a status code and error kind.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(KindInvalidInput, err))
	case errors.Is(err, impliedvol.ErrNoConvergence):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse(KindNoConvergence, err))
	case errors.Is(err, data.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse(KindNotFound, err))
	default:
		logger.Errorf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse(KindInternal, err))
	}
}

// bind decodes the JSON body into req, answering 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(KindInvalidInput, err))
		return false
	}
	return true
}
