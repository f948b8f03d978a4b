package impliedvol

import (
	"runtime"
	"sync"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

// Request is one quote to invert.
type Request struct {
	Contract    pricing.Contract `json:"contract"`
	MarketPrice float64          `json:"market_price"`
}

// Outcome pairs a Request with its result or error.
type Outcome struct {
	Request Request
	Result  Result
	Err     error
}

// SolveBatch solves every request independently on a bounded pool of
// goroutines. Outcomes are returned in request order; a failed item never
// stops the others.
func SolveBatch(items []Request, opts Options) []Outcome {
	out := make([]Outcome, len(items))
	if len(items) == 0 {
		return out
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(items) {
		workers = len(items)
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				r, err := Solve(items[i].Contract, items[i].MarketPrice, opts)
				out[i] = Outcome{Request: items[i], Result: r, Err: err}
			}
		}()
	}
	for i := range items {
		idx <- i
	}
	close(idx)
	wg.Wait()
	return out
}
