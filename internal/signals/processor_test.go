package signals

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// feedDoc assembles a feed document from entries in the given key order.
func feedDoc(t *testing.T, keys []string, entries map[string]map[string]any) []byte {
	t.Helper()
	doc := []byte("{")
	for i, key := range keys {
		raw, err := json.Marshal(entries[key])
		require.NoError(t, err)
		if i > 0 {
			doc = append(doc, ',')
		}
		quoted, err := json.Marshal(key)
		require.NoError(t, err)
		doc = append(doc, quoted...)
		doc = append(doc, ':')
		doc = append(doc, raw...)
	}
	return append(doc, '}')
}

func defaultProcessor() *Processor {
	return NewProcessor(zap.NewNop(), 0.5, 1.5, nil)
}

func equity(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProcessor_SizesSurvivingSignal(t *testing.T) {
	// Arrange: confidence 0.8 and risk/reward 2.0 clear the 0.5/1.5
	// thresholds; 10% of 10000 at an entry of 100 buys 10 shares.
	doc := feedDoc(t, []string{"AAPL_w1"}, map[string]map[string]any{
		"AAPL_w1": validEntry(),
	})

	// Act
	batch, err := defaultProcessor().Process(doc, equity("10000"))

	// Assert
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, []string{"AAPL"}, batch.Symbols())

	sized := batch.ForSymbol("AAPL")[0]
	assert.Equal(t, int64(10), sized.Quantity)
	assert.Equal(t, 1, sized.Signal.WindowWeeks)
	assert.True(t, sized.Signal.EntryPrice.Equal(equity("100")))
	assert.Equal(t, 0, batch.Malformed())
}

func TestProcessor_RiskRewardBelowThreshold(t *testing.T) {
	// Arrange: same signal but risk/reward 1.0 against a 1.5 threshold.
	entry := validEntry()
	entry["metrics"].(map[string]any)["risk_reward_ratio"] = 1.0
	doc := feedDoc(t, []string{"AAPL_w1"}, map[string]map[string]any{"AAPL_w1": entry})

	// Act
	batch, err := defaultProcessor().Process(doc, equity("10000"))

	// Assert
	require.NoError(t, err)
	assert.True(t, batch.Empty())
	assert.Equal(t, 0, batch.Malformed(), "a filtered signal is not malformed")
}

func TestProcessor_ConfidenceBelowThreshold(t *testing.T) {
	entry := validEntry()
	entry["signal"].(map[string]any)["confidence"] = 0.4
	doc := feedDoc(t, []string{"AAPL_w1"}, map[string]map[string]any{"AAPL_w1": entry})

	batch, err := defaultProcessor().Process(doc, equity("10000"))

	require.NoError(t, err)
	assert.True(t, batch.Empty())
}

func TestProcessor_ThresholdsAreInclusive(t *testing.T) {
	// Values exactly at the thresholds must pass.
	entry := validEntry()
	entry["signal"].(map[string]any)["confidence"] = 0.5
	entry["metrics"].(map[string]any)["risk_reward_ratio"] = 1.5
	doc := feedDoc(t, []string{"AAPL_w1"}, map[string]map[string]any{"AAPL_w1": entry})

	batch, err := defaultProcessor().Process(doc, equity("10000"))

	require.NoError(t, err)
	assert.Equal(t, 1, batch.Len())
}

func TestProcessor_SymbolAllowList(t *testing.T) {
	// Arrange
	doc := feedDoc(t, []string{"AAPL_w1", "MSFT_w1"}, map[string]map[string]any{
		"AAPL_w1": validEntry(),
		"MSFT_w1": validEntry(),
	})
	p := NewProcessor(zap.NewNop(), 0.5, 1.5, []string{"MSFT"})

	// Act
	batch, err := p.Process(doc, equity("10000"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, batch.Symbols())
	assert.Equal(t, 1, batch.Len())
}

func TestProcessor_MalformedEntryIsolated(t *testing.T) {
	// Arrange: the first entry is missing its orders block, the second is fine.
	broken := validEntry()
	delete(broken, "orders")
	doc := feedDoc(t, []string{"AAPL_w1", "MSFT_w1"}, map[string]map[string]any{
		"AAPL_w1": broken,
		"MSFT_w1": validEntry(),
	})

	// Act
	batch, err := defaultProcessor().Process(doc, equity("10000"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Malformed())
	assert.Equal(t, []string{"MSFT"}, batch.Symbols())
	assert.Equal(t, 1, batch.Len())
}

func TestProcessor_BadKeyCountsMalformed(t *testing.T) {
	doc := feedDoc(t, []string{"AAPL"}, map[string]map[string]any{"AAPL": validEntry()})

	batch, err := defaultProcessor().Process(doc, equity("10000"))

	require.NoError(t, err)
	assert.Equal(t, 1, batch.Malformed())
	assert.True(t, batch.Empty())
}

func TestProcessor_FeedOrderPreserved(t *testing.T) {
	// Arrange: MSFT appears first and again later with another window.
	msft4 := validEntry()
	msft4["metrics"].(map[string]any)["risk_reward_ratio"] = 3.0
	doc := feedDoc(t, []string{"MSFT_w1", "AAPL_w1", "MSFT_w4"}, map[string]map[string]any{
		"MSFT_w1": validEntry(),
		"AAPL_w1": validEntry(),
		"MSFT_w4": msft4,
	})

	// Act
	batch, err := defaultProcessor().Process(doc, equity("10000"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "AAPL"}, batch.Symbols())

	windows := []int{}
	for _, sized := range batch.ForSymbol("MSFT") {
		windows = append(windows, sized.Signal.WindowWeeks)
	}
	assert.Equal(t, []int{1, 4}, windows)
}

func TestProcessor_ZeroQuantityKept(t *testing.T) {
	// Arrange: 10% of 50 cannot buy a single 100-priced share. The signal
	// survives with quantity zero so downstream can report the skip.
	doc := feedDoc(t, []string{"AAPL_w1"}, map[string]map[string]any{"AAPL_w1": validEntry()})

	// Act
	batch, err := defaultProcessor().Process(doc, equity("50"))

	// Assert
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, int64(0), batch.ForSymbol("AAPL")[0].Quantity)
}

func TestProcessor_QuantityTruncates(t *testing.T) {
	// 10% of 10000 is 1000; at an entry of 300 that is 3.33 shares, which
	// must truncate to 3, never round to 4.
	entry := validEntry()
	entry["orders"].(map[string]any)["entry"].(map[string]any)["stop_price"] = 300
	doc := feedDoc(t, []string{"AAPL_w1"}, map[string]map[string]any{"AAPL_w1": entry})

	batch, err := defaultProcessor().Process(doc, equity("10000"))

	require.NoError(t, err)
	assert.Equal(t, int64(3), batch.ForSymbol("AAPL")[0].Quantity)
}

func TestProcessor_RejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "definitely not json"},
		{"truncated", `{"AAPL_w1": {"date"`},
		{"array", `[1, 2, 3]`},
		{"bare string", `"hello"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := defaultProcessor().Process([]byte(tt.doc), equity("10000"))
			assert.Error(t, err)
		})
	}
}

func TestProcessor_EmptyFeed(t *testing.T) {
	batch, err := defaultProcessor().Process([]byte(`{}`), equity("10000"))

	require.NoError(t, err)
	assert.True(t, batch.Empty())
	assert.Equal(t, 0, batch.Malformed())
}
