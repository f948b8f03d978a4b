package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput is the sentinel wrapped by every domain violation
// reported by the pricing, implied-vol, smile and hedge packages.
var ErrInvalidInput = errors.New("invalid input")

// InputError describes a rejected input field.
type InputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s=%g: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidInput) match any *InputError.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInputError builds an *InputError.
func NewInputError(field string, value float64, reason string) error {
	return &InputError{Field: field, Value: value, Reason: reason}
}

// OptionType is the exercise right of a European option.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// ParseOptionType accepts "call"/"put" and their single-letter forms, any case.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return "", fmt.Errorf("%w: unknown option type %q", ErrInvalidInput, s)
}

// Contract holds the Black-Scholes-Merton inputs for one European option.
// Rates, yields and volatility are annualised decimals; Maturity is in years.
type Contract struct {
	Spot          float64    `json:"spot"`
	Strike        float64    `json:"strike"`
	Maturity      float64    `json:"maturity"`
	Rate          float64    `json:"rate"`
	Volatility    float64    `json:"volatility"`
	DividendYield float64    `json:"dividend_yield,omitempty"`
	Type          OptionType `json:"type"`
}

// WithVolatility returns a copy of c using sigma.
func (c Contract) WithVolatility(sigma float64) Contract {
	c.Volatility = sigma
	return c
}

// WithSpot returns a copy of c using spot s and remaining maturity t.
func (c Contract) WithSpot(s, t float64) Contract {
	c.Spot = s
	c.Maturity = t
	return c
}

// IsCall reports whether c is a call.
func (c Contract) IsCall() bool { return c.Type == Call }

// Validate checks every field of c, returning an *InputError naming the
// first offending one.
func (c Contract) Validate() error {
	if err := c.ValidateNoVol(); err != nil {
		return err
	}
	if !finite(c.Volatility) || c.Volatility < 0 {
		return NewInputError("volatility", c.Volatility, "must be finite and >= 0")
	}
	return nil
}

// ValidateNoVol checks the contract ignoring its volatility, as needed when
// volatility is the unknown being solved for.
func (c Contract) ValidateNoVol() error {
	switch {
	case !finite(c.Spot) || c.Spot <= 0:
		return NewInputError("spot", c.Spot, "must be finite and > 0")
	case !finite(c.Strike) || c.Strike <= 0:
		return NewInputError("strike", c.Strike, "must be finite and > 0")
	case !finite(c.Maturity) || c.Maturity < 0:
		return NewInputError("maturity", c.Maturity, "must be finite and >= 0")
	case !finite(c.Rate):
		return NewInputError("rate", c.Rate, "must be finite")
	case !finite(c.DividendYield) || c.DividendYield < 0:
		return NewInputError("dividend_yield", c.DividendYield, "must be finite and >= 0")
	case math.Abs(c.Rate*c.Maturity) > MaxCarry:
		return NewInputError("rate", c.Rate, fmt.Sprintf("|rate*maturity| must be at most %g", MaxCarry))
	case c.DividendYield*c.Maturity > MaxCarry:
		return NewInputError("dividend_yield", c.DividendYield, fmt.Sprintf("dividend_yield*maturity must be at most %g", MaxCarry))
	}
	if c.Type != Call && c.Type != Put {
		return fmt.Errorf("%w: option type %q", ErrInvalidInput, c.Type)
	}
	return nil
}

// MaxCarry bounds |r*T| and q*T so the discount factors stay finite.
const MaxCarry = 50.0

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
