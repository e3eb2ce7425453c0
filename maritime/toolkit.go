package maritime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/codewandler/rtassist/tool"
	"github.com/codewandler/rtassist/ui"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Author of the messages the tools show in the chat.
const Author = "Operations"

const ticketAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Result is returned to the model by every tool that found something to
// show. Details repeats what the user was shown.
type Result struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

type ToolkitOption func(*Toolkit)

func WithClock(now func() time.Time) ToolkitOption {
	return func(k *Toolkit) {
		k.now = now
	}
}

func WithToolkitLogger(logger *slog.Logger) ToolkitOption {
	return func(k *Toolkit) {
		k.logger = logger.With("component", "maritime")
	}
}

// Toolkit implements the maritime tools on top of a Store. Tool output is
// shown to the user through the sink.
type Toolkit struct {
	store  *Store
	sink   ui.Sink
	now    func() time.Time
	logger *slog.Logger
}

func NewToolkit(store *Store, sink ui.Sink, opts ...ToolkitOption) *Toolkit {
	if sink == nil {
		sink = ui.Discard
	}
	k := &Toolkit{
		store:  store,
		sink:   sink,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

type whaleRoutesArgs struct {
	Region string `json:"region" jsonschema:"description=The region/area to check for whale protection measures (e.g. Gulf of St. Lawrence or Santa Barbara Channel)"`
	Season string `json:"season,omitempty" jsonschema:"description=The season to check (e.g. Summer 2024),default=current"`
}

type checkRoutesArgs struct {
	Region    string `json:"region" jsonschema:"description=The region/area to check for vessel routes"`
	DateRange string `json:"date_range,omitempty" jsonschema:"description=Date range to check (e.g. next 7 days or next 30 days),default=next 7 days"`
}

type notificationArgs struct {
	VesselIDs []string `json:"vessel_ids" jsonschema:"description=List of vessel IMO numbers or identifiers"`
	Message   string   `json:"message" jsonschema:"description=The notification message to send"`
	Priority  Priority `json:"priority,omitempty" jsonschema:"description=Priority level of the notification,enum=high,enum=medium,enum=low,default=medium"`
}

type ticketArgs struct {
	Title       string   `json:"title" jsonschema:"description=Title of the ticket"`
	VesselIMOs  []string `json:"vessel_imos" jsonschema:"description=List of impacted vessel IMO numbers"`
	Description string   `json:"description" jsonschema:"description=Detailed description of the impact and required outreach"`
}

// Registrations returns the four maritime tools.
func (k *Toolkit) Registrations() []tool.Registration {
	return []tool.Registration{
		tool.Func("show_whale_routes", "Show mandatory and voluntary slowdown guidance for whale protection in a specific region", k.showWhaleRoutes),
		tool.Func("check_routes", "Show list of vessels and their routes through a specific region", k.checkRoutes),
		tool.Func("send_notification", "Send notifications to vessels about whale protection measures", k.sendNotification),
		tool.Func("create_ticket", "Create a customer outreach ticket for vessels impacted by a disruption; major customers of the vessels are added automatically", k.createTicket),
	}
}

// Register adds all tools to r in one batch.
func (k *Toolkit) Register(r *tool.Registry) error {
	return r.RegisterAll(k.Registrations()...)
}

func (k *Toolkit) showWhaleRoutes(ctx context.Context, args whaleRoutesArgs) (any, error) {
	m, ok := lookupWhaleMeasures(args.Region)
	if !ok {
		return fmt.Sprintf("No whale protection measures found for region: %s", args.Region), nil
	}
	season := args.Season
	if season == "" {
		season = "current"
	}

	details := m.markdown(season)
	k.show(ctx, details)
	return Result{Status: fmt.Sprintf("Whale protection measures displayed for %s", m.Region), Details: details}, nil
}

func (k *Toolkit) checkRoutes(ctx context.Context, args checkRoutesArgs) (any, error) {
	dateRange := args.DateRange
	if dateRange == "" {
		dateRange = "next 7 days"
	}

	var until time.Time
	if days, ok := parseDateRange(dateRange); ok {
		until = k.now().AddDate(0, 0, days)
	}

	routes, err := k.store.RoutesIn(ctx, args.Region, until)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 && !until.IsZero() {
		all, err := k.store.RoutesIn(ctx, args.Region, time.Time{})
		if err != nil {
			return nil, err
		}
		if len(all) > 0 {
			return fmt.Sprintf("No vessel routes through %s in the period: %s", all[0].Region, dateRange), nil
		}
	}
	if len(routes) == 0 {
		return fmt.Sprintf("No vessel routes found for region: %s", args.Region), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Vessel Routes Through %s\n*Period: %s*\n\n", routes[0].Region, dateRange)
	b.WriteString("| Vessel Name | IMO Number | ETA | Origin | Destination |\n")
	b.WriteString("|-------------|------------|-----|--------|-------------|\n")
	for _, r := range routes {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", r.VesselName, r.IMO, r.ETA.Format(time.DateOnly), r.Origin, r.Destination)
	}
	b.WriteString("\n*[REF: VTS-ROUTE-LOG | UPD-FREQ: 4H | SOURCE: AIS-TRACK-001]*")

	details := b.String()
	k.show(ctx, details)
	return Result{Status: fmt.Sprintf("Vessel routes displayed for %s", routes[0].Region), Details: details}, nil
}

func (k *Toolkit) sendNotification(ctx context.Context, args notificationArgs) (any, error) {
	if len(args.VesselIDs) == 0 {
		return nil, errors.New("no vessels to notify")
	}
	priority := args.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	now := k.now().UTC()
	notifications := make([]Notification, 0, len(args.VesselIDs))
	for _, id := range args.VesselIDs {
		notifications = append(notifications, Notification{
			VesselID: id,
			Message:  args.Message,
			Priority: priority,
			Status:   StatusDelivered,
			SentAt:   now,
		})
	}
	if err := k.store.SaveNotifications(ctx, notifications); err != nil {
		return nil, err
	}

	level := strings.ToUpper(string(priority))
	var b strings.Builder
	fmt.Fprintf(&b, "## Notification Status\nPriority Level: %s\n\n", level)
	b.WriteString("| Vessel ID | Status | Timestamp |\n|-----------|--------|-----------|\n")
	for _, n := range notifications {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", n.VesselID, n.Status, n.SentAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "\n### Message Content:\n%s\n\n[DIST: VESSEL-OPS | ACK-REQ: %s | PROTO: NAVTEX-%s]\n", args.Message, level, level)

	details := b.String()
	k.show(ctx, details)
	return Result{Status: fmt.Sprintf("Notifications sent to %d vessels", len(notifications)), Details: details}, nil
}

func (k *Toolkit) createTicket(ctx context.Context, args ticketArgs) (any, error) {
	if len(args.VesselIMOs) == 0 {
		return nil, errors.New("no impacted vessels given")
	}

	vessels, err := k.store.Vessels(ctx, args.VesselIMOs)
	if err != nil {
		return nil, err
	}
	customers, err := k.store.MajorCustomers(ctx, args.VesselIMOs)
	if err != nil {
		return nil, err
	}

	id, err := nanoid.Generate(ticketAlphabet, 8)
	if err != nil {
		return nil, fmt.Errorf("ticket id: %w", err)
	}

	names := make([]string, 0, len(customers))
	for _, c := range customers {
		names = append(names, c.Name)
	}

	t := &Ticket{
		ID:          "TCK-" + id,
		Title:       args.Title,
		Description: args.Description,
		VesselIMOs:  strings.Join(args.VesselIMOs, ","),
		Customers:   strings.Join(names, ","),
		CreatedAt:   k.now().UTC(),
	}
	if err := k.store.CreateTicket(ctx, t); err != nil {
		return nil, err
	}

	known := make(map[string]VesselRoute, len(vessels))
	for _, v := range vessels {
		known[v.IMO] = v
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Ticket %s\n**Title:** %s\n\n", t.ID, t.Title)
	b.WriteString("| IMO Number | Vessel Name | Route |\n|------------|-------------|-------|\n")
	for _, imo := range args.VesselIMOs {
		v, ok := known[imo]
		if !ok {
			fmt.Fprintf(&b, "| %s | unknown | - |\n", imo)
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s → %s |\n", imo, v.VesselName, v.Origin, v.Destination)
	}
	b.WriteString("\n### Impacted Major Customers\n")
	if len(names) == 0 {
		b.WriteString("None identified\n")
	}
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	fmt.Fprintf(&b, "\n### Description\n%s\n", t.Description)

	details := b.String()
	k.show(ctx, details)
	return Result{Status: fmt.Sprintf("Ticket %s created for %d customers", t.ID, len(names)), Details: details}, nil
}

// show displays content in the chat. A failing sink does not fail the tool;
// the model still gets the details.
func (k *Toolkit) show(ctx context.Context, content string) {
	if err := k.sink.Message(ctx, ui.Message{Role: ui.RoleTool, Author: Author, Content: content}); err != nil {
		k.logger.Warn("tool output not shown", slog.Any("err", err))
	}
}

var dateRangePattern = regexp.MustCompile(`(?i)^\s*next\s+(\d+)\s+days?\s*$`)

// parseDateRange understands "next N days".
func parseDateRange(s string) (int, bool) {
	m := dateRangePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return days, true
}
