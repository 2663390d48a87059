package planwire

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	t.Parallel()
	if encoding.GetCodec(CodecName) == nil {
		t.Fatalf("json codec must be registered")
	}
}

func TestCodec_DraftMessagesNilVersusEmpty(t *testing.T) {
	t.Parallel()
	c := jsonCodec{}

	b, err := c.Marshal(&UpdatePlanRequest{PlanID: "p"})
	require.NoError(t, err)
	var untouched UpdatePlanRequest
	require.NoError(t, c.Unmarshal(b, &untouched))
	require.Nil(t, untouched.DraftCardMessages, "absent drafts must stay untouched")

	b, err = c.Marshal(&UpdatePlanRequest{PlanID: "p", DraftCardMessages: map[string]string{}})
	require.NoError(t, err)
	var cleared UpdatePlanRequest
	require.NoError(t, c.Unmarshal(b, &cleared))
	require.NotNil(t, cleared.DraftCardMessages, "empty drafts must clear")
	require.Empty(t, cleared.DraftCardMessages)
}

func TestFullMethod(t *testing.T) {
	t.Parallel()
	require.Equal(t, "/bloomplan.plan.v1.PlanService/GetPlan", FullMethod(MethodGetPlan))
	require.Len(t, PlanServiceDesc.Methods, 12)
}
