// Package notify posts lead marketplace activity to operator chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Color constants for message severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Notifier delivers a message to one chat platform.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Message is a platform-neutral notification.
type Message struct {
	Title    string
	Body     string
	Severity string // "info", "warning", "error", "success"
	Fields   []Field
}

// Field is a key-value pair rendered alongside the message.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Color returns the sidebar color for the message severity.
func (m Message) Color() string {
	switch m.Severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// Text renders the message as plain text, used as a fallback.
func (m Message) Text() string {
	var b strings.Builder
	b.WriteString(m.Title)
	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(m.Body)
	}
	for _, f := range m.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	return b.String()
}

// Multi fans a message out to every notifier. All notifiers are attempted;
// their errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every message.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Message) error { return nil }
