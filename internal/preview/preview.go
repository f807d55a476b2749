// Package preview renders stored transactions for people to read.
package preview

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/entity"
)

const (
	UnknownDate = "Unknown Date"
	ReviewBadge = "needs review"
)

type Item struct {
	Name  string
	Price string
}

// View is the display form of a transaction. Amounts are formatted to cents.
type View struct {
	ID              int64
	Vendor          string
	Date            string
	Category        string
	Amount          string
	Subtotal        string
	Tax             string
	PaymentMethod   string
	ConfidenceScore int
	Method          string
	SourceFile      string
	Timestamp       string
	Items           []Item
	Flagged         bool
	Badge           string
}

// Preview builds the display form, filling blanks with readable defaults.
func Preview(tx *entity.Transaction) View {
	p := message.NewPrinter(language.English)
	title := cases.Title(language.English)

	v := View{
		ID:              tx.ID,
		Vendor:          orDefault(tx.Vendor, constants.DefaultVendor),
		Date:            orDefault(tx.Date, UnknownDate),
		Category:        title.String(orDefault(tx.Category, string(constants.Other))),
		Amount:          money(p, tx.Amount),
		Subtotal:        money(p, tx.Subtotal),
		Tax:             money(p, tx.Tax),
		PaymentMethod:   orDefault(tx.PaymentMethod, constants.DefaultPaymentMethod),
		ConfidenceScore: tx.ConfidenceScore,
		Method:          tx.ExtractionMethod,
		SourceFile:      tx.SourceFile,
		Flagged:         tx.Flagged,
		Items:           make([]Item, 0, len(tx.Items)),
	}
	if !tx.Timestamp.IsZero() {
		v.Timestamp = tx.Timestamp.Local().Format("2006-01-02 15:04")
	}
	for _, it := range tx.Items {
		v.Items = append(v.Items, Item{Name: orDefault(it.Name, constants.DefaultItemName), Price: money(p, it.Price)})
	}
	if tx.Flagged {
		v.Badge = ReviewBadge
	}
	return v
}

// Summary is the one-line form used in listings.
func (v View) Summary() string {
	s := fmt.Sprintf("#%d  %s  %-28s %10s  %s", v.ID, v.Date, truncate(v.Vendor, 28), v.Amount, v.Category)
	if v.Badge != "" {
		s += "  [" + v.Badge + "]"
	}
	return s
}

// Render writes the card form of v.
func (v View) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := v.Vendor
	if v.Badge != "" {
		header += "  [" + v.Badge + "]"
	}
	fmt.Fprintf(tw, "%s\n", header)
	fmt.Fprintf(tw, "%s\n", strings.Repeat("-", len([]rune(header))))
	fmt.Fprintf(tw, "Transaction\t#%d\n", v.ID)
	fmt.Fprintf(tw, "Date\t%s\n", v.Date)
	fmt.Fprintf(tw, "Category\t%s\n", v.Category)
	fmt.Fprintf(tw, "Payment\t%s\n", v.PaymentMethod)
	fmt.Fprintf(tw, "Confidence\t%d%%\n", v.ConfidenceScore)
	if v.Method != "" {
		fmt.Fprintf(tw, "Method\t%s\n", v.Method)
	}
	if v.SourceFile != "" {
		fmt.Fprintf(tw, "Source\t%s\n", v.SourceFile)
	}
	if v.Timestamp != "" {
		fmt.Fprintf(tw, "Processed\t%s\n", v.Timestamp)
	}
	if len(v.Items) > 0 {
		fmt.Fprintf(tw, "\nItems\t\n")
		for _, it := range v.Items {
			fmt.Fprintf(tw, "  %s\t%s\n", it.Name, it.Price)
		}
	}
	fmt.Fprintf(tw, "\nSubtotal\t%s\n", v.Subtotal)
	fmt.Fprintf(tw, "Tax\t%s\n", v.Tax)
	fmt.Fprintf(tw, "Total\t%s\n", v.Amount)
	return tw.Flush()
}

func money(p *message.Printer, v float64) string {
	return p.Sprintf("%.2f", v)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
