package signals

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"alpaca-signal-bot/internal/broker"
)

// Required paths inside one feed entry.
const (
	pathDate         = "date"
	pathType         = "signal.type"
	pathConfidence   = "signal.confidence"
	pathCurrentPrice = "current_price"
	pathEntryStop    = "orders.entry.stop_price"
	pathEntryLimit   = "orders.entry.limit_price"
	pathTakeProfit   = "orders.take_profit.price"
	pathStopLoss     = "orders.stop_loss.price"
	pathPositionSize = "position_size.recommended_size"
	pathBarrierDays  = "time_barrier.days"
	pathExpiryDate   = "time_barrier.expiry_date"
	pathVolatility   = "metrics.daily_volatility"
	pathRiskReward   = "metrics.risk_reward_ratio"
)

// MalformedSignalError reports a feed entry that could not be parsed. Path
// names the offending field inside the entry when one is known.
type MalformedSignalError struct {
	Key    string
	Path   string
	Reason string
}

func (e *MalformedSignalError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed signal %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("malformed signal %q: %s: %s", e.Key, e.Path, e.Reason)
}

// ParseKey splits a feed key of the form "<SYMBOL>_w<N>" into the symbol and
// the window in weeks. N must be a positive integer.
func ParseKey(key string) (string, int, error) {
	parts := strings.Split(key, "_w")
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, &MalformedSignalError{Key: key, Reason: "key must have the form <SYMBOL>_w<N>"}
	}
	window, err := strconv.Atoi(parts[1])
	if err != nil || window < 1 {
		return "", 0, &MalformedSignalError{Key: key, Reason: fmt.Sprintf("window %q is not a positive integer", parts[1])}
	}
	return parts[0], window, nil
}

// ParseRecord decodes one raw feed entry into a TradingSignal. It is a pure
// transformation: the same key and bytes always produce the same signal.
// Any missing field, unparseable decimal, or malformed key fails with a
// MalformedSignalError naming the offending path.
func ParseRecord(key string, raw []byte) (TradingSignal, error) {
	symbol, window, err := ParseKey(key)
	if err != nil {
		return TradingSignal{}, err
	}

	entry := gjson.ParseBytes(raw)
	if !entry.IsObject() {
		return TradingSignal{}, &MalformedSignalError{Key: key, Reason: "entry is not a JSON object"}
	}

	r := &recordReader{key: key, entry: entry}
	sig := TradingSignal{
		Symbol:          symbol,
		WindowWeeks:     window,
		Date:            r.text(pathDate),
		Side:            broker.OrderSide(strings.ToLower(r.text(pathType))),
		Confidence:      r.number(pathConfidence),
		CurrentPrice:    r.price(pathCurrentPrice),
		EntryPrice:      r.price(pathEntryStop),
		EntryLimitPrice: r.price(pathEntryLimit),
		TakeProfit:      r.price(pathTakeProfit),
		StopLoss:        r.price(pathStopLoss),
		PositionSize:    r.fraction(pathPositionSize),
		TimeBarrierDays: r.integer(pathBarrierDays),
		ExpiryDate:      r.text(pathExpiryDate),
		Volatility:      r.number(pathVolatility),
		RiskReward:      r.number(pathRiskReward),
	}
	if r.err != nil {
		return TradingSignal{}, r.err
	}
	return sig, nil
}

// recordReader extracts typed fields from one feed entry, remembering the
// first failure so ParseRecord reads flat.
type recordReader struct {
	key   string
	entry gjson.Result
	err   error
}

func (r *recordReader) fail(path, reason string) {
	if r.err == nil {
		r.err = &MalformedSignalError{Key: r.key, Path: path, Reason: reason}
	}
}

func (r *recordReader) lookup(path string) (gjson.Result, bool) {
	res := r.entry.Get(path)
	if !res.Exists() {
		r.fail(path, "missing required field")
		return res, false
	}
	return res, true
}

// text reads a plain string field.
func (r *recordReader) text(path string) string {
	res, ok := r.lookup(path)
	if !ok {
		return ""
	}
	if res.Type != gjson.String {
		r.fail(path, "expected a string")
		return ""
	}
	return res.Str
}

// number reads a float field, accepting numeric strings.
func (r *recordReader) number(path string) float64 {
	res, ok := r.lookup(path)
	if !ok {
		return 0
	}
	switch res.Type {
	case gjson.Number:
		return res.Float()
	case gjson.String:
		f, err := strconv.ParseFloat(res.Str, 64)
		if err != nil {
			r.fail(path, fmt.Sprintf("cannot parse %q as a number", res.Str))
			return 0
		}
		return f
	default:
		r.fail(path, "expected a number")
		return 0
	}
}

// integer reads an int field, accepting numeric strings.
func (r *recordReader) integer(path string) int {
	res, ok := r.lookup(path)
	if !ok {
		return 0
	}
	switch res.Type {
	case gjson.Number:
		return int(res.Int())
	case gjson.String:
		n, err := strconv.Atoi(res.Str)
		if err != nil {
			r.fail(path, fmt.Sprintf("cannot parse %q as an integer", res.Str))
			return 0
		}
		return n
	default:
		r.fail(path, "expected an integer")
		return 0
	}
}

// price reads a monetary field as an exact decimal. JSON numbers are converted
// from their raw document literal so no binary floating-point rounding sneaks
// in; numeric strings are accepted as well.
func (r *recordReader) price(path string) decimal.Decimal {
	res, ok := r.lookup(path)
	if !ok {
		return decimal.Decimal{}
	}
	var lit string
	switch res.Type {
	case gjson.Number:
		lit = res.Raw
	case gjson.String:
		lit = res.Str
	default:
		r.fail(path, "expected a decimal value")
		return decimal.Decimal{}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(lit))
	if err != nil {
		r.fail(path, fmt.Sprintf("cannot parse %q as a decimal", lit))
		return decimal.Decimal{}
	}
	return d
}

// fraction reads a percentage string such as "12.5%" and returns the 0-1
// fraction as an exact decimal.
func (r *recordReader) fraction(path string) decimal.Decimal {
	res, ok := r.lookup(path)
	if !ok {
		return decimal.Decimal{}
	}
	if res.Type != gjson.String {
		r.fail(path, "expected a percentage string")
		return decimal.Decimal{}
	}
	text := strings.TrimSpace(res.Str)
	if before, _, found := strings.Cut(text, "%"); found {
		text = before
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		r.fail(path, fmt.Sprintf("cannot parse %q as a percentage", res.Str))
		return decimal.Decimal{}
	}
	return d.Div(decimal.NewFromInt(100))
}
