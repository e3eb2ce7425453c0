package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type notificationArgs struct {
	VesselIDs []string `json:"vessel_ids" jsonschema:"description=List of vessel IMO numbers"`
	Message   string   `json:"message" jsonschema:"description=The notification message"`
	Priority  string   `json:"priority,omitempty" jsonschema:"enum=high,enum=medium,enum=low,default=medium"`
}

func TestParametersOf(t *testing.T) {
	p := ParametersOf[notificationArgs]()

	require.Equal(t, "object", p.Type)
	require.ElementsMatch(t, []string{"vessel_ids", "message"}, p.Required)

	require.Equal(t, "array", p.Properties["vessel_ids"].Type)
	require.NotNil(t, p.Properties["vessel_ids"].Items)
	require.Equal(t, "string", p.Properties["vessel_ids"].Items.Type)
	require.Equal(t, "List of vessel IMO numbers", p.Properties["vessel_ids"].Description)

	require.Equal(t, "medium", p.Properties["priority"].Default)
	require.Equal(t, []any{"high", "medium", "low"}, p.Properties["priority"].Enum)
}

func TestFunc_Dispatch(t *testing.T) {
	var got notificationArgs
	reg := Func("send_notification", "Send notifications to vessels", func(ctx context.Context, args notificationArgs) (string, error) {
		got = args
		return "sent", nil
	})

	r := NewRegistry(nil)
	require.NoError(t, r.RegisterAll(reg))

	up := &fakeUpstream{}
	d := NewDispatcher(r, up)

	call, err := d.Dispatch(context.Background(), Call{
		ID:           "call_1",
		Name:         "send_notification",
		RawArguments: `{"vessel_ids":["9839272"],"message":"slow down"}`,
	})
	require.NoError(t, err)
	require.NoError(t, call.Err)
	require.Equal(t, notificationArgs{VesselIDs: []string{"9839272"}, Message: "slow down", Priority: "medium"}, got)
	require.Equal(t, `"sent"`, up.sent()[0].output)

	// enum is enforced by the compiled schema
	call, err = d.Dispatch(context.Background(), Call{
		ID:           "call_2",
		Name:         "send_notification",
		RawArguments: `{"vessel_ids":["9839272"],"message":"slow down","priority":"urgent"}`,
	})
	require.NoError(t, err)
	var de *DispatchError
	require.ErrorAs(t, call.Err, &de)
	require.Equal(t, ReasonInvalidArguments, de.Reason)
}
