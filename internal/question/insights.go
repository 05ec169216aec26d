package question

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/SwapnilGautama/HaloQuality/internal/month"
)

// Insights are short markdown paragraphs built from fixed templates.

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

// movement describes a change against the prior month in words.
func movement(delta any, prior string) string {
	p := printer()
	switch d := delta.(type) {
	case int:
		return direction(float64(d), p.Sprintf("%d", abs(d)), prior)
	case float64:
		return direction(d, p.Sprintf("%.2f", absf(d)), prior)
	}
	return fmt.Sprintf("no %s figure to compare against", month.Display(prior))
}

func direction(d float64, amount, prior string) string {
	switch {
	case d > 0:
		return fmt.Sprintf("up %s on %s", amount, month.Display(prior))
	case d < 0:
		return fmt.Sprintf("down %s on %s", amount, month.Display(prior))
	}
	return fmt.Sprintf("unchanged on %s", month.Display(prior))
}

func rateInsight(cur joined, months int, rateDelta any) string {
	p := printer()
	var b strings.Builder
	b.WriteString(p.Sprintf("In **%s** there were %d complaints across %d unique cases: **%.2f** complaints per 1,000 cases, %s.",
		month.Display(cur.key.month), cur.complaints, cur.cases, cur.rate, movement(rateDelta, month.Prev(cur.key.month))))
	if months > 1 {
		b.WriteString(p.Sprintf("\n\nThe series covers %d months where both cases and complaints are present.", months))
	}
	return b.String()
}

func volumeInsight(noun string, focus string, n int, delta, pct any) string {
	p := printer()
	s := p.Sprintf("**%s**: %d %s, %s", month.Display(focus), n, noun, movement(delta, month.Prev(focus)))
	if v, ok := pct.(float64); ok {
		s += p.Sprintf(" (%+.2f%%)", v)
	}
	return s + "."
}

func analysisInsight(cur joined, top Row, topLabel string, drivers int) string {
	p := printer()
	var b strings.Builder
	b.WriteString(p.Sprintf("**%s**: %d complaints against %d unique cases (%.2f per 1,000).",
		month.Display(cur.key.month), cur.complaints, cur.cases, cur.rate))
	if top != nil {
		b.WriteString(p.Sprintf("\n\nThe largest driver of %d is **%s** with %d complaints at %.2f per 1,000 cases.",
			drivers, topLabel, top[colComplaints], top[colRate]))
	}
	return b.String()
}

func reasonInsight(focus string, reason string, n int, share float64, groups int) string {
	p := printer()
	return p.Sprintf("The most common complaint reason in **%s** is **%s**: %d complaints, %.1f%% of the month. Reasons are broken down across %d groups.",
		month.Display(focus), reason, n, share, groups)
}

func contributorInsight(focus string, top, mover Row) string {
	p := printer()
	var b strings.Builder
	b.WriteString(p.Sprintf("In **%s** the highest rate is **%s** at %.2f complaints per 1,000 cases.",
		month.Display(focus), top[colLabel], top[colRate]))
	if d, ok := mover[colRate+"_delta"].(float64); ok && d > 0 {
		b.WriteString(p.Sprintf(" The largest rise is **%s**, %s.", mover[colLabel], movement(d, month.Prev(focus))))
	} else {
		b.WriteString(p.Sprintf(" No group's rate rose on %s.", month.Display(month.Prev(focus))))
	}
	return b.String()
}

func watchlistInsight(focus string, entries []watchEntry, counts map[string]int) string {
	p := printer()
	if counts[statusRed]+counts[statusAmber] == 0 {
		return p.Sprintf("No group crosses a watchlist threshold in **%s**.", month.Display(focus))
	}
	first := entries[0]
	return p.Sprintf("**%s**: %d of %d groups are red and %d amber. **%s** leads the watchlist: %s.",
		month.Display(focus), counts[statusRed], len(entries), counts[statusAmber], first.label, first.row[colAlerts])
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
