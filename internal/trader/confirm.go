package trader

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// StdinConfirmer presents each proposed trade on the terminal and waits for a
// Y/N answer. Anything other than an explicit yes declines the trade.
type StdinConfirmer struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewStdinConfirmer creates a confirmer reading answers from in and writing
// prompts to out.
func NewStdinConfirmer(in io.Reader, out io.Writer) *StdinConfirmer {
	return &StdinConfirmer{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

var _ Confirmer = (*StdinConfirmer)(nil)

// Confirm prints the trade details and reads one line. It returns true only
// for a "y" or "yes" answer; EOF and read failures decline.
func (c *StdinConfirmer) Confirm(t TradeDetails) bool {
	fmt.Fprintf(c.out, "\nTrade Details:\n")
	fmt.Fprintf(c.out, "Symbol: %s\n", t.Signal.Symbol)
	fmt.Fprintf(c.out, "Type: %s\n", strings.ToUpper(string(t.Signal.Side)))
	fmt.Fprintf(c.out, "Shares: %d\n", t.Shares)
	fmt.Fprintf(c.out, "Entry Price: $%s\n", t.Signal.EntryPrice.StringFixed(2))
	fmt.Fprintf(c.out, "Stop Loss: $%s\n", t.Signal.StopLoss.StringFixed(2))
	fmt.Fprintf(c.out, "Take Profit: $%s\n", t.Signal.TakeProfit.StringFixed(2))
	fmt.Fprintf(c.out, "Trade Value: $%s\n", t.TradeValue.StringFixed(2))
	fmt.Fprintf(c.out, "Account Value: $%s\n", t.AccountValue.StringFixed(2))
	if t.AccountValue.Sign() > 0 {
		pct := t.TradeValue.Div(t.AccountValue).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(c.out, "Position Size: %s%%\n", pct.StringFixed(2))
	}
	fmt.Fprint(c.out, "\nExecute trade? (Y/N): ")

	if !c.scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(c.scanner.Text()))
	return answer == "y" || answer == "yes"
}

// AutoConfirmer approves every trade. Watch mode and the auto_confirm setting
// use it in place of the interactive prompt.
type AutoConfirmer struct{}

var _ Confirmer = AutoConfirmer{}

// Confirm always returns true.
func (AutoConfirmer) Confirm(TradeDetails) bool { return true }
