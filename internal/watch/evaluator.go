package watch

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Evaluate decides whether a tick arms a watcher's trigger. It is a pure
// function of the configuration and the tick.
//
// Alert watchers arm when the side price rises to at least
// base*(1+threshold/100); stop-loss watchers arm when it falls to at most
// base*(1-threshold/100). Exact equality arms in both cases. A tick with no
// usable price for the watched side (absent or zero) is ignored so that a
// missing quote is never mistaken for a crash to zero.
func Evaluate(cfg Config, tick Tick) Decision {
	price := tick.SidePrice(cfg.Side)
	if price.Sign() <= 0 {
		return Decision{}
	}

	frac := cfg.ThresholdPercent.Div(hundred)

	var armed bool
	switch cfg.Mode {
	case ModeAlert:
		armed = price.GreaterThanOrEqual(cfg.BasePrice.Mul(one.Add(frac)))
	case ModeStopLoss:
		armed = price.LessThanOrEqual(cfg.BasePrice.Mul(one.Sub(frac)))
	}
	if !armed {
		return Decision{}
	}

	move := price.Sub(cfg.BasePrice).Div(cfg.BasePrice).Mul(hundred)
	return Decision{Armed: true, Price: price, MovePercent: move}
}
