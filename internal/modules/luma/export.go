package luma

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-faster/errors"

	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
	"github.com/Trust-Square/luma-mcp-server/internal/modules"
	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// =============================================================================
// CSV export
// =============================================================================

var fixedColumns = []string{
	"Event Name",
	"Event ID",
	"Calendar",
	"Guest ID",
	"Name",
	"First Name",
	"Last Name",
	"Email",
	"Phone",
	"Approval Status",
	"Registered At",
	"Checked In At",
	"Ticket Name",
	"Ticket Amount",
	"Ticket Currency",
}

type exportRow struct {
	event *lumaapi.Event
	guest *lumaapi.Guest
}

type skippedEvent struct {
	id     string
	reason string
}

// guestTable is the flattened export: one row per guest plus the sorted set
// of registration question labels seen across all rows.
type guestTable struct {
	calendar string
	rows     []exportRow
	labels   []string
}

func newGuestTable(calendar string, rows []exportRow) *guestTable {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for _, a := range r.guest.RegistrationAnswers {
			if a.Label != "" {
				seen[a.Label] = struct{}{}
			}
		}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return &guestTable{calendar: calendar, rows: rows, labels: labels}
}

func (t *guestTable) header() []string {
	return append(append([]string(nil), fixedColumns...), t.labels...)
}

func (t *guestTable) record(r exportRow) []string {
	g := r.guest
	var ticketName, ticketAmount, ticketCurrency string
	if tk := primaryTicket(g); tk != nil {
		ticketName = tk.Name
		ticketAmount = tk.Amount.String()
		ticketCurrency = strings.ToUpper(tk.Currency)
	}
	rec := []string{
		r.event.Name,
		r.event.APIID,
		t.calendar,
		g.APIID,
		g.DisplayName(),
		g.UserFirstName,
		g.UserLastName,
		g.ContactEmail(),
		g.PhoneNumber,
		g.Status(),
		g.RegisteredAt,
		g.CheckedInAt,
		ticketName,
		ticketAmount,
		ticketCurrency,
	}
	for _, l := range t.labels {
		answer, _ := g.Answer(l)
		rec = append(rec, answer)
	}
	return rec
}

// write serializes the table as UTF-8 CSV.
func (t *guestTable) write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create export file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.header()); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, r := range t.rows {
		if err := w.Write(t.record(r)); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush export file")
	}
	return f.Close()
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// exportFileName returns the caller's base name with a .csv extension, or
// luma-guests-<profile>-<date>.csv.
func (m *Module) exportFileName(requested, profile string) string {
	name := filepath.Base(strings.TrimSpace(requested))
	if requested == "" || name == "." || name == string(filepath.Separator) || name == ".." {
		name = fmt.Sprintf("luma-guests-%s-%s", unsafeFileChars.ReplaceAllString(profile, "-"), m.now().Format("2006-01-02"))
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}
	return name
}

// selectEvents resolves the events to export. Explicit ids that fail to load
// are skipped.
func (m *Module) selectEvents(ctx context.Context, c *lumaapi.Client, ids []string, futureOnly bool) ([]*lumaapi.Event, []skippedEvent, error) {
	var (
		events  []*lumaapi.Event
		skipped []skippedEvent
	)
	if len(ids) > 0 {
		for _, id := range ids {
			e, err := c.GetEvent(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, err
				}
				log.Printf("[luma] export: skipping event %s: %v", id, err)
				skipped = append(skipped, skippedEvent{id: id, reason: err.Error()})
				continue
			}
			events = append(events, e)
		}
	} else {
		entries, err := c.AllEvents(ctx)
		if err != nil {
			return nil, nil, err
		}
		for i := range entries {
			events = append(events, &entries[i].Event)
		}
	}

	if !futureOnly {
		return events, skipped, nil
	}
	now := m.now()
	upcoming := events[:0]
	for _, e := range events {
		if start, err := e.Start(); err == nil && start.After(now) {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming, skipped, nil
}

func (m *Module) exportGuestList(ctx context.Context, params map[string]any) (string, error) {
	var ids []string
	if raw, ok := params["event_ids"].([]any); ok {
		ids = modules.ToStringSlice(raw)
	}
	if len(ids) == 0 && !modules.Bool(params, "include_all_events", false) {
		return "", jsonrpc.NewError(jsonrpc.InvalidParams, "Provide event_ids or set include_all_events: true to select the events to export")
	}

	c, profile, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	events, skipped, err := m.selectEvents(ctx, c, ids, modules.Bool(params, "include_future_only", false))
	if err != nil {
		return "", err
	}

	var (
		rows     []exportRow
		exported int
	)
	for _, e := range events {
		guests, err := c.AllGuests(ctx, e.APIID)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			log.Printf("[luma] export: skipping guests of %s: %v", e.APIID, err)
			skipped = append(skipped, skippedEvent{id: e.APIID, reason: err.Error()})
			continue
		}
		exported++
		for i := range guests {
			rows = append(rows, exportRow{event: e, guest: &guests[i]})
		}
	}

	table := newGuestTable(profile.Name, rows)
	if err := os.MkdirAll(m.exportDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create export directory")
	}
	path := filepath.Join(m.exportDir, m.exportFileName(modules.String(params, "filename"), profile.Name))
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if err := table.write(path); err != nil {
		return "", err
	}
	log.Printf("[luma] exported %d guest(s) from %d event(s) to %s", len(rows), exported, path)

	var sb strings.Builder
	sb.WriteString("✅ Guest list exported.\n\n")
	fmt.Fprintf(&sb, "- Calendar: %s\n", profile.Name)
	fmt.Fprintf(&sb, "- Events exported: %d\n", exported)
	fmt.Fprintf(&sb, "- Guest rows: %d\n", len(rows))
	fmt.Fprintf(&sb, "- Question columns: %d\n", len(table.labels))
	fmt.Fprintf(&sb, "- File: %s", path)
	if len(skipped) > 0 {
		fmt.Fprintf(&sb, "\n\nSkipped events (%d):", len(skipped))
		for _, s := range skipped {
			fmt.Fprintf(&sb, "\n- %s: %s", s.id, s.reason)
		}
	}
	return sb.String(), nil
}
