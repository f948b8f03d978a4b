package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/impliedvol"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/smile"
)

// Bounds on the work of a single /montecarlo request.
const (
	MaxMonteCarloPaths = 20000
	MaxMonteCarloSteps = 10000
)

type priceResponse struct {
	Price  float64        `json:"price"`
	Greeks pricing.Greeks `json:"greeks"`
	Scaled pricing.Greeks `json:"scaled_greeks"`
}

func (server *Server) price(c *gin.Context) {
	var req pricing.Contract
	if !bind(c, &req) {
		return
	}
	p, err := pricing.Price(req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	g, err := pricing.ComputeAll(req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, priceResponse{Price: p, Greeks: g, Scaled: g.Scaled()})
}

type impliedVolRequest struct {
	Contract    pricing.Contract    `json:"contract"`
	MarketPrice *float64            `json:"market_price" binding:"required"`
	Solver      *impliedvol.Options `json:"solver"`
}

func (server *Server) impliedVol(c *gin.Context) {
	var req impliedVolRequest
	if !bind(c, &req) {
		return
	}
	opts := server.solver
	if req.Solver != nil {
		opts = *req.Solver
	}
	res, err := impliedvol.Solve(req.Contract, *req.MarketPrice, opts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type smileResponse struct {
	Table       smile.Table       `json:"table"`
	Diagnostics smile.Diagnostics `json:"diagnostics"`
}

func (server *Server) smile(c *gin.Context) {
	var in smile.Input
	if !bind(c, &in) {
		return
	}
	server.buildSmile(c, in)
}

func (server *Server) buildSmile(c *gin.Context, in smile.Input) {
	if in.Solver == (impliedvol.Options{}) {
		in.Solver = server.solver
	}
	table, err := smile.Build(in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, smileResponse{Table: table, Diagnostics: table.Diagnostics()})
}

type chainQuery struct {
	Expiry        string  `form:"expiry" binding:"required"`
	Rate          float64 `form:"rate"`
	DividendYield float64 `form:"dividend_yield"`
}

// chainSmile builds the smile of the chain the provider returns for the
// underlying and expiry.
func (server *Server) chainSmile(c *gin.Context) {
	var q chainQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(KindInvalidInput, err))
		return
	}
	expiry, err := time.Parse(data.DateLayout, q.Expiry)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: expiry %q: %v", pricing.ErrInvalidInput, q.Expiry, err))
		return
	}
	if server.prov == nil {
		abortWithError(c, fmt.Errorf("%w: no market data provider configured", data.ErrNotFound))
		return
	}

	chain, err := server.prov.GetChain(c.Param("underlying"), expiry)
	if err != nil {
		abortWithError(c, err)
		return
	}
	server.buildSmile(c, chain.SmileInput(q.Rate, q.DividendYield, server.solver))
}

type hedgeRequest struct {
	Contract  pricing.Contract `json:"contract"`
	Spots     []float64        `json:"spots" binding:"required"`
	Dt        float64          `json:"dt"`
	Rebalance *bool            `json:"rebalance"`
}

func (server *Server) hedge(c *gin.Context) {
	var req hedgeRequest
	if !bind(c, &req) {
		return
	}
	rebalance := req.Rebalance == nil || *req.Rebalance
	run, err := hedge.Simulate(req.Contract, hedge.Path{Spots: req.Spots, Dt: req.Dt}, rebalance)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

type monteCarloRequest struct {
	Contract   pricing.Contract `json:"contract"`
	MonteCarlo hedge.MonteCarlo `json:"montecarlo"`
}

func (server *Server) monteCarlo(c *gin.Context) {
	var req monteCarloRequest
	if !bind(c, &req) {
		return
	}
	if req.MonteCarlo.Paths > MaxMonteCarloPaths {
		abortWithError(c, pricing.NewInputError("paths", float64(req.MonteCarlo.Paths),
			fmt.Sprintf("at most %d per request", MaxMonteCarloPaths)))
		return
	}
	if req.MonteCarlo.Steps > MaxMonteCarloSteps {
		abortWithError(c, pricing.NewInputError("steps", float64(req.MonteCarlo.Steps),
			fmt.Sprintf("at most %d per request", MaxMonteCarloSteps)))
		return
	}
	stats, err := hedge.RunMonteCarlo(c.Request.Context(), req.Contract, req.MonteCarlo)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
