package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// phonePattern matches digit runs that may be split by single spaces, hyphens
// or parentheses, as in "+44 (0)7946 220153" or "07946-220-153". Matches are
// masked only when they carry 7-15 digits.
var phonePattern = regexp.MustCompile(`\+?\(?\b\d(?:(?:[ \-]|\)[ \-]?|[ \-]?\()?\d)*\b`)

// isoDate is left alone even though it has eight digits.
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// unmaskedKeys hold identifiers that may contain long digit runs.
var unmaskedKeys = map[string]struct{}{
	"request_id": {},
	"upload_id":  {},
	"sid":        {},
	"batch":      {},
}

// MaskPhone shortens a phone number to its country code and last four
// digits, e.g. "447946220153" becomes "44****0153". When no country code can
// be resolved the first two digits are kept instead.
func MaskPhone(phone string) string {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) <= 4 {
		return "****"
	}

	prefix := digits[:2]
	if num, err := phonenumbers.Parse("+"+digits, ""); err == nil && num.GetCountryCode() != 0 {
		prefix = strconv.Itoa(int(num.GetCountryCode()))
	}
	return prefix + "****" + digits[len(digits)-4:]
}

// MaskText masks every phone-like digit run in s.
func MaskText(s string) string {
	if !strings.ContainsAny(s, "0123456789") {
		return s
	}
	return phonePattern.ReplaceAllStringFunc(s, maskMatch)
}

func maskMatch(m string) string {
	digits := digitsOnly(m)
	if len(digits) < 7 || len(digits) > 15 || isoDate.MatchString(m) {
		return m
	}
	return MaskPhone(digits)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskingHandler rewrites string values and messages through MaskText
// before passing records to the wrapped handler.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler wraps next.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, MaskText(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(maskAttr(a))
		return true
	})
	return h.next.Handle(ctx, masked)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = maskAttr(a)
	}
	return &MaskingHandler{next: h.next.WithAttrs(out)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func maskAttr(a slog.Attr) slog.Attr {
	if _, ok := unmaskedKeys[a.Key]; ok {
		return a
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, MaskText(v.String()))
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = maskAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, MaskText(err.Error()))
		}
		return slog.Attr{Key: a.Key, Value: v}
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
