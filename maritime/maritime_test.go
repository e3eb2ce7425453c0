package maritime

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/codewandler/rtassist/tool"
	"github.com/codewandler/rtassist/ui"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Seed(context.Background(), testNow))
	return s
}

type outputs struct {
	calls []struct{ id, output string }
}

func (o *outputs) SendFunctionOutput(_ context.Context, callID, output string) error {
	o.calls = append(o.calls, struct{ id, output string }{callID, output})
	return nil
}

func (o *outputs) CreateResponse(context.Context) error { return nil }

func newTestDispatcher(t *testing.T) (*tool.Dispatcher, *outputs, *ui.Recorder, *Store) {
	t.Helper()
	store := newTestStore(t)
	rec := &ui.Recorder{}
	registry := tool.NewRegistry(nil)
	require.NoError(t, NewToolkit(store, rec, WithClock(func() time.Time { return testNow })).Register(registry))

	out := &outputs{}
	return tool.NewDispatcher(registry, out), out, rec, store
}

func dispatch(t *testing.T, d *tool.Dispatcher, id, name, args string) tool.Call {
	t.Helper()
	call, err := d.Dispatch(context.Background(), tool.Call{ID: id, Name: name, RawArguments: args})
	require.NoError(t, err)
	return call
}

func TestStore_SeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Seed(ctx, testNow.Add(time.Hour)))
	require.NoError(t, s.Ping(ctx))

	var routes, customers int64
	require.NoError(t, s.db.Model(&VesselRoute{}).Count(&routes).Error)
	require.NoError(t, s.db.Model(&Customer{}).Count(&customers).Error)
	require.EqualValues(t, len(routeSeeds), routes)
	require.EqualValues(t, 8, customers)
}

func TestStore_RoutesIn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	all, err := s.RoutesIn(ctx, "gulf of st. lawrence ", time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "9839272", all[0].IMO)

	soon, err := s.RoutesIn(ctx, RegionGulfOfStLawrence, testNow.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Len(t, soon, 2)

	none, err := s.RoutesIn(ctx, "Baltic Sea", time.Time{})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestToolkit_Registrations(t *testing.T) {
	registry := tool.NewRegistry(nil)
	require.NoError(t, NewToolkit(nil, nil).Register(registry))

	names := make([]string, 0, registry.Len())
	for _, tt := range registry.All() {
		names = append(names, tt.Name)
	}
	require.ElementsMatch(t, []string{"show_whale_routes", "check_routes", "send_notification", "create_ticket"}, names)

	reg, ok := registry.Get("send_notification")
	require.True(t, ok)
	require.ElementsMatch(t, []string{"vessel_ids", "message"}, reg.Tool.Parameters.Required)
	require.Equal(t, "medium", reg.Tool.Parameters.Properties["priority"].Default)
}

func TestShowWhaleRoutes(t *testing.T) {
	d, out, rec, _ := newTestDispatcher(t)

	call := dispatch(t, d, "c1", "show_whale_routes", `{"region":"Gulf of St. Lawrence"}`)
	require.NoError(t, call.Err)

	res := call.Result.(Result)
	require.Equal(t, "Whale protection measures displayed for Gulf of St. Lawrence", res.Status)
	require.Contains(t, res.Details, "### Season: current")
	require.Contains(t, res.Details, "| Northern Static Zone | 50°20′N to 47°58.1′N, 65°00′W to 61°00′W |")
	require.Contains(t, res.Details, "### 4. Voluntary Measures")

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, ui.RoleTool, msgs[0].Role)
	require.Equal(t, res.Details, msgs[0].Content)

	var decoded Result
	require.NoError(t, json.Unmarshal([]byte(out.calls[0].output), &decoded))
	require.Equal(t, res, decoded)

	call = dispatch(t, d, "c2", "show_whale_routes", `{"region":"santa barbara channel","season":"Summer 2024"}`)
	require.NoError(t, call.Err)
	require.Contains(t, call.Result.(Result).Details, "| Santa Barbara Coast | 10 knots | Year-round |")
	require.Contains(t, call.Result.(Result).Details, "### Season: Summer 2024")
}

func TestShowWhaleRoutes_UnknownRegion(t *testing.T) {
	d, out, rec, _ := newTestDispatcher(t)

	call := dispatch(t, d, "c1", "show_whale_routes", `{"region":"Baltic Sea"}`)
	require.NoError(t, call.Err)
	require.Equal(t, "No whale protection measures found for region: Baltic Sea", call.Result)
	require.Equal(t, `"No whale protection measures found for region: Baltic Sea"`, out.calls[0].output)
	require.Empty(t, rec.Messages())
}

func TestCheckRoutes(t *testing.T) {
	d, _, rec, _ := newTestDispatcher(t)

	call := dispatch(t, d, "c1", "check_routes", `{"region":"Santa Barbara Channel"}`)
	require.NoError(t, call.Err)

	res := call.Result.(Result)
	require.Equal(t, "Vessel routes displayed for Santa Barbara Channel", res.Status)
	require.Contains(t, res.Details, "*Period: next 7 days*")
	require.Contains(t, res.Details, "| MSC LUCIA | 9783615 | 2025-06-02 | Los Angeles | Oakland |")
	require.Equal(t, 3, strings.Count(res.Details, "| MSC "))
	require.Len(t, rec.Messages(), 1)

	call = dispatch(t, d, "c2", "check_routes", `{"region":"Santa Barbara Channel","date_range":"next 2 days"}`)
	require.NoError(t, call.Err)
	require.Equal(t, 1, strings.Count(call.Result.(Result).Details, "| MSC "))
}

func TestCheckRoutes_NoneInPeriod(t *testing.T) {
	d, _, rec, _ := newTestDispatcher(t)

	call := dispatch(t, d, "c1", "check_routes", `{"region":"santa barbara channel","date_range":"next 0 days"}`)
	require.NoError(t, call.Err)
	require.Equal(t, "No vessel routes through Santa Barbara Channel in the period: next 0 days", call.Result)
	require.Empty(t, rec.Messages())
}

func TestCheckRoutes_NoRoutesIsSuccess(t *testing.T) {
	d, out, _, _ := newTestDispatcher(t)

	call := dispatch(t, d, "c1", "check_routes", `{"region":"Baltic Sea"}`)
	require.NoError(t, call.Err)
	require.Equal(t, "No vessel routes found for region: Baltic Sea", call.Result)
	require.NotContains(t, out.calls[0].output, "error")
}

func TestSendNotification(t *testing.T) {
	ctx := context.Background()
	d, _, rec, store := newTestDispatcher(t)

	call := dispatch(t, d, "c1", "send_notification", `{"vessel_ids":["9839272","9454436"],"message":"Reduce speed to 10 knots"}`)
	require.NoError(t, call.Err)

	res := call.Result.(Result)
	require.Equal(t, "Notifications sent to 2 vessels", res.Status)
	require.Contains(t, res.Details, "Priority Level: MEDIUM")
	require.Contains(t, res.Details, "| 9839272 | delivered | 2025-06-01T12:00:00Z |")
	require.Contains(t, res.Details, "PROTO: NAVTEX-MEDIUM")
	require.Len(t, rec.Messages(), 1)

	stored, err := store.Notifications(ctx, "9454436")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, PriorityMedium, stored[0].Priority)
	require.Equal(t, "Reduce speed to 10 knots", stored[0].Message)
}

func TestSendNotification_InvalidPriority(t *testing.T) {
	d, out, _, _ := newTestDispatcher(t)

	call := dispatch(t, d, "c1", "send_notification", `{"vessel_ids":["9839272"],"message":"hi","priority":"urgent"}`)
	require.Error(t, call.Err)
	require.Contains(t, out.calls[0].output, "error")
}

func TestCreateTicket(t *testing.T) {
	ctx := context.Background()
	d, _, rec, store := newTestDispatcher(t)

	call := dispatch(t, d, "c1", "create_ticket", `{"title":"Gulf slowdown","vessel_imos":["9839272","9454436","0000000"],"description":"Delays expected"}`)
	require.NoError(t, call.Err)

	res := call.Result.(Result)
	require.Contains(t, res.Status, "created for 2 customers")
	require.Contains(t, res.Details, "| 9839272 | MSC SOFIA | Montreal → Rotterdam |")
	require.Contains(t, res.Details, "| 0000000 | unknown | - |")
	require.Contains(t, res.Details, "- Hanse Automotive\n- Nordic Paper Group\n")
	require.NotContains(t, res.Details, "Laurentian Foods")
	require.Len(t, rec.Messages(), 1)

	var tickets []Ticket
	require.NoError(t, store.db.Find(&tickets).Error)
	require.Len(t, tickets, 1)
	require.True(t, strings.HasPrefix(tickets[0].ID, "TCK-"))
	require.Len(t, tickets[0].ID, 12)

	got, err := store.Ticket(ctx, tickets[0].ID)
	require.NoError(t, err)
	require.Equal(t, "Hanse Automotive,Nordic Paper Group", got.Customers)
	require.Equal(t, "9839272,9454436,0000000", got.VesselIMOs)
}

func TestParseDateRange(t *testing.T) {
	tests := map[string]int{
		"next 7 days":  7,
		"Next 30 Days": 30,
		"next 1 day":   1,
	}
	for in, want := range tests {
		days, ok := parseDateRange(in)
		require.True(t, ok, in)
		require.Equal(t, want, days, in)
	}

	_, ok := parseDateRange("this summer")
	require.False(t, ok)
}
