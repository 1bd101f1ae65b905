package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// PurchaseInfo describes a completed lead purchase.
type PurchaseInfo struct {
	LeadID       string
	Title        string
	City         string
	ContractorID string
	Mode         string // "mock" or "stripe"
	AmountCents  int64
	Currency     string
}

// FormatPurchase formats a completed purchase. Homeowner details are never
// included.
func FormatPurchase(p PurchaseInfo) Message {
	title := fmt.Sprintf("Lead %s purchased", shortID(p.LeadID))
	if p.Title != "" {
		title = fmt.Sprintf("Lead purchased: %s", p.Title)
	}

	fields := []Field{
		{Name: "Lead", Value: p.LeadID, Short: true},
		{Name: "Contractor", Value: p.ContractorID, Short: true},
	}
	if p.City != "" {
		fields = append(fields, Field{Name: "City", Value: p.City, Short: true})
	}
	if p.Mode != "" {
		fields = append(fields, Field{Name: "Mode", Value: p.Mode, Short: true})
	}
	if p.AmountCents > 0 {
		fields = append(fields, Field{Name: "Amount", Value: formatAmount(p.AmountCents, p.Currency), Short: true})
	}

	return Message{
		Title:    title,
		Severity: "success",
		Fields:   fields,
	}
}

// FormatMatches formats the result of a matching run for a project.
func FormatMatches(projectID string, skills []string, proposed int) Message {
	severity := "info"
	body := fmt.Sprintf("%d contractor(s) proposed", proposed)
	if proposed == 0 {
		severity = "warning"
		body = "no contractors matched"
	}

	fields := []Field{{Name: "Project", Value: projectID, Short: true}}
	if len(skills) > 0 {
		fields = append(fields, Field{Name: "Skills", Value: strings.Join(skills, ", ")})
	}

	return Message{
		Title:    fmt.Sprintf("Project %s opened for bids", shortID(projectID)),
		Body:     body,
		Severity: severity,
		Fields:   fields,
	}
}

// FormatExpired formats an abandoned-checkout sweep summary.
func FormatExpired(n int64) Message {
	return Message{
		Title:    "Abandoned checkouts expired",
		Body:     strconv.FormatInt(n, 10) + " pending purchase(s) marked expired",
		Severity: "info",
	}
}

func formatAmount(cents int64, currency string) string {
	s := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if currency != "" {
		s += " " + strings.ToUpper(currency)
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
