package luma

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// =============================================================================
// Derived presentation fields
// =============================================================================

const (
	notSpecified  = "Not specified"
	notAvailable  = "Not available"
	displayLayout = "Jan 2, 2006, 3:04 PM MST"
)

// formatTime renders an API timestamp in the event timezone, falling back to
// UTC when the zone is unknown. Unparseable input is returned unchanged.
func formatTime(ts, tz string) string {
	t, err := lumaapi.ParseTime(ts)
	if err != nil {
		return ts
	}
	return t.In(location(tz)).Format(displayLayout)
}

// formatTimeOr is formatTime with a placeholder for empty timestamps.
func formatTimeOr(ts, tz, placeholder string) string {
	if ts == "" {
		return placeholder
	}
	return formatTime(ts, tz)
}

func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

var durationPattern = regexp.MustCompile(`P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?`)

// humanDuration renders duration_interval (e.g. "P0Y0M1DT11H0M0S") as days,
// hours and minutes. Without an interval it falls back to the rounded number
// of hours between start and end.
func humanDuration(e *lumaapi.Event) string {
	if e.DurationInterval != "" {
		if m := durationPattern.FindStringSubmatch(e.DurationInterval); m != nil {
			var parts []string
			for _, u := range []struct {
				value string
				unit  string
			}{
				{m[3], "day"},
				{m[4], "hour"},
				{m[5], "minute"},
			} {
				if p := plural(u.value, u.unit); p != "" {
					parts = append(parts, p)
				}
			}
			if len(parts) == 0 {
				return "Unknown duration"
			}
			return strings.Join(parts, ", ")
		}
	}
	if e.EndAt == "" {
		return notSpecified
	}
	start, err := e.Start()
	if err != nil {
		return notSpecified
	}
	end, err := e.End()
	if err != nil {
		return notSpecified
	}
	return fmt.Sprintf("%d hours", int(math.Round(end.Sub(start).Hours())))
}

func plural(value, unit string) string {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return ""
	}
	if n > 1 {
		return fmt.Sprintf("%d %ss", n, unit)
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// locationText picks the most specific address line available.
func locationText(e *lumaapi.Event) string {
	if e.GeoAddress == nil {
		return notSpecified
	}
	return firstNonEmpty(notSpecified, e.GeoAddress.FullAddress, e.GeoAddress.Address, e.GeoAddress.City)
}

// typeLabel renders an event type for breakdowns ("in_person" -> "in person").
func typeLabel(t lumaapi.EventType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

func visibility(e *lumaapi.Event) string {
	return firstNonEmpty(lumaapi.VisibilityPublic, e.Visibility)
}

// =============================================================================
// Text helpers
// =============================================================================

func firstNonEmpty(fallback string, vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return fallback
}

// truncate cuts s to n runes and marks the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// counter counts keys while remembering first-seen order.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// lines renders one "<prefix><label>: <count>" line per key.
func (c *counter) lines(prefix string, label func(string) string) string {
	var sb strings.Builder
	for i, k := range c.order {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s%s: %d", prefix, label(k), c.counts[k])
	}
	return sb.String()
}

func identity(s string) string { return s }

// ticketAmount renders "<CURRENCY> <amount>" for a guest ticket.
func ticketAmount(t *lumaapi.Ticket) string {
	if t == nil {
		return "N/A"
	}
	return strings.TrimSpace(strings.ToUpper(t.Currency) + " " + t.Amount.String())
}

// primaryTicket returns the guest's ticket, preferring event_ticket.
func primaryTicket(g *lumaapi.Guest) *lumaapi.Ticket {
	if g.EventTicket != nil {
		return g.EventTicket
	}
	if len(g.EventTickets) > 0 {
		return &g.EventTickets[0]
	}
	return nil
}

// maskKey hides all but the last four characters of an API key.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return "****" + key[len(key)-4:]
}
