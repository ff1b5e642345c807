package signals

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Processor filters a decoded signal feed and sizes the surviving signals
// against account equity.
type Processor struct {
	logger        *zap.Logger
	minConfidence float64
	minRiskReward float64
	allowed       map[string]struct{} // nil means every symbol passes
}

// NewProcessor creates a processor with the given thresholds. An empty symbols
// slice disables the allow-list.
func NewProcessor(logger *zap.Logger, minConfidence, minRiskReward float64, symbols []string) *Processor {
	var allowed map[string]struct{}
	if len(symbols) > 0 {
		allowed = make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			allowed[s] = struct{}{}
		}
	}
	return &Processor{
		logger:        logger,
		minConfidence: minConfidence,
		minRiskReward: minRiskReward,
		allowed:       allowed,
	}
}

// Process decodes the feed document, applies the filters, and sizes every
// surviving signal. Malformed entries are logged and counted but never abort
// the rest of the feed; entries that merely fail a filter are quietly omitted.
// The returned batch preserves the feed document's iteration order for both
// symbols and the signals within a symbol.
func (p *Processor) Process(doc []byte, equity decimal.Decimal) (*Batch, error) {
	if !gjson.ValidBytes(doc) {
		return nil, errors.New("signal feed is not valid JSON")
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, errors.New("signal feed must be a JSON object")
	}

	batch := NewBatch()
	root.ForEach(func(key, value gjson.Result) bool {
		sig, err := ParseRecord(key.String(), []byte(value.Raw))
		if err != nil {
			p.logger.Warn("Skipping malformed signal entry",
				zap.String("key", key.String()),
				zap.Error(err),
			)
			batch.malformed++
			return true
		}

		// Filters short-circuit in a fixed order for determinism:
		// allow-list, confidence, risk/reward.
		if p.allowed != nil {
			if _, ok := p.allowed[sig.Symbol]; !ok {
				return true
			}
		}
		if sig.Confidence < p.minConfidence {
			return true
		}
		if sig.RiskReward < p.minRiskReward {
			return true
		}

		batch.Add(SizedSignal{Signal: sig, Quantity: SizeFor(sig, equity)})
		return true
	})

	return batch, nil
}
