package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/catalog"
	"github.com/glowhaus/storefront-backend/internal/orders"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

type staticIndex struct {
	products []catalog.Product
}

func (s staticIndex) Products(context.Context) ([]catalog.Product, error) {
	return s.products, nil
}

type stubTracker struct {
	views map[string]orders.TrackingView
	err   error
	refs  []string
}

func (s *stubTracker) Track(_ context.Context, ref string) (*orders.TrackingView, error) {
	s.refs = append(s.refs, ref)
	if s.err != nil {
		return nil, s.err
	}
	number, ok := orders.NormalizeOrderRef(ref)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	view, ok := s.views[number]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &view, nil
}

type stubBag struct {
	owners []cart.Owner
	inputs []cart.AddInput
	err    error
}

func (s *stubBag) Add(_ context.Context, owner cart.Owner, input cart.AddInput) (*cart.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.owners = append(s.owners, owner)
	s.inputs = append(s.inputs, input)
	store := cart.NewStore(nil)
	store.AddItem(cart.Item{ProductID: input.ProductID, Name: "Glow Serum", UnitPrice: decimal.RequireFromString("849.75")})
	snap := store.Snapshot()
	return &snap, nil
}

type memoryKV struct {
	data map[string]string
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type fixture struct {
	engine  *Engine
	tracker *stubTracker
	bag     *stubBag
	kv      *memoryKV
}

func newFixture(t *testing.T, products []catalog.Product) *fixture {
	t.Helper()
	if products == nil {
		static, err := catalog.LoadStatic()
		require.NoError(t, err)
		products = static.Products()
	}
	script, err := LoadScript()
	require.NoError(t, err)
	f := &fixture{
		tracker: &stubTracker{views: map[string]orders.TrackingView{
			"ORD-00042": {OrderNumber: "ORD-00042", Status: enums.OrderStatusShipped, ItemCount: 2},
		}},
		bag: &stubBag{},
		kv:  &memoryKV{data: map[string]string{}},
	}
	f.engine, err = NewEngine(Params{
		Script:   script,
		Products: staticIndex{products: products},
		Tracker:  f.tracker,
		Bag:      f.bag,
		Prefs:    NewRedisPreferenceStore(f.kv, time.Hour),
	})
	require.NoError(t, err)
	return f
}

func ids(products []catalog.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestTransitionTableIsCompleteAndConnected(t *testing.T) {
	f := newFixture(t, nil)
	assert.Empty(t, f.engine.Missing())
	assert.Empty(t, f.engine.Unreachable())
}

func TestUnreachableReportsOrphanedStates(t *testing.T) {
	f := newFixture(t, nil)
	for key := range f.engine.table {
		if key.action == ActionReturn {
			delete(f.engine.table, key)
		}
	}
	assert.Equal(t, []State{StateReturn}, f.engine.Unreachable())
	assert.Contains(t, f.engine.Missing(), "idle:return")
}

func TestQuizFlowRecommendsAndRemembersProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	reply, err := f.engine.Step(ctx, Turn{SessionID: "sess-1", State: StateIdle, Action: ActionQuiz})
	require.NoError(t, err)
	assert.Equal(t, StateQuiz, reply.State)
	assert.Equal(t, StepSkinType, reply.Step)
	require.Len(t, reply.Options, 5)
	assert.Equal(t, ActionAnswer, reply.Options[0].Action)

	reply, err = f.engine.Step(ctx, Turn{SessionID: "sess-1", State: reply.State, Step: reply.Step, Action: ActionAnswer, Value: "oily"})
	require.NoError(t, err)
	assert.Equal(t, StepConcern, reply.Step)
	assert.Equal(t, "oily", reply.SkinType)

	reply, err = f.engine.Step(ctx, Turn{
		SessionID: "sess-1", State: reply.State, Step: reply.Step, SkinType: reply.SkinType,
		Action: ActionAnswer, Value: "acne",
	})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, reply.State)
	assert.Empty(t, reply.Step)
	assert.Equal(t, []string{"s1"}, ids(reply.Recommendations))
	assert.Contains(t, reply.Messages[0], "oily skin focused on breakouts & pores")
	assert.Contains(t, f.kv.data, "gh:assistant_pref:sess-1")

	reply, err = f.engine.Step(ctx, Turn{SessionID: "sess-1", State: StateIdle, Action: ActionQuiz})
	require.NoError(t, err)
	require.Len(t, reply.Messages, 2)
	assert.Contains(t, reply.Messages[0], "your skin is oily")
}

func TestQuizAcceptsTypedAnswersAndRetries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	reply, err := f.engine.Step(ctx, Turn{State: StateQuiz, Step: StepSkinType, Text: "purple"})
	require.NoError(t, err)
	assert.Equal(t, StateQuiz, reply.State)
	assert.Equal(t, StepSkinType, reply.Step)

	reply, err = f.engine.Step(ctx, Turn{State: StateQuiz, Step: StepSkinType, Text: "I think my skin is dry"})
	require.NoError(t, err)
	assert.Equal(t, StepConcern, reply.Step)

	reply, err = f.engine.Step(ctx, Turn{State: StateQuiz, Step: StepConcern, SkinType: "dry", Text: "Dryness"})
	require.NoError(t, err)
	assert.Equal(t, []string{"l2", "s3", "f1"}, ids(reply.Recommendations))
}

func TestQuizFallsBackToDefaultPicks(t *testing.T) {
	products := []catalog.Product{
		{ID: "s2", Name: "Glow Serum"},
		{ID: "s3", Name: "Hydra Barrier Cream"},
		{ID: "l1", Name: "Velvet Matte Lipstick"},
	}
	f := newFixture(t, products)
	reply, err := f.engine.Step(context.Background(), Turn{
		State: StateQuiz, Step: StepConcern, SkinType: "normal", Action: ActionAnswer, Value: "aging",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s3"}, ids(reply.Recommendations))
}

func TestRecommendRespectsSkinType(t *testing.T) {
	static, err := catalog.LoadStatic()
	require.NoError(t, err)
	assert.Equal(t, []string{"s6"}, ids(Recommend(static.Products(), "oily", "aging")))
	assert.Nil(t, Recommend(static.Products(), "oily", "sparkle"))
}

func TestTrackingFoundAndNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	reply, err := f.engine.Step(ctx, Turn{State: StateIdle, Action: ActionTrack})
	require.NoError(t, err)
	assert.Equal(t, StateTracking, reply.State)

	reply, err = f.engine.Step(ctx, Turn{State: StateTracking, Text: "ORD-99999"})
	require.NoError(t, err)
	assert.Equal(t, StateTracking, reply.State, "not found keeps asking")
	assert.Contains(t, reply.Messages[0], "couldn't find")
	assert.Nil(t, reply.Order)

	reply, err = f.engine.Step(ctx, Turn{State: StateTracking, Text: "it's ord 42"})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, reply.State)
	require.NotNil(t, reply.Order)
	assert.Equal(t, "Order ORD-00042 is currently shipped.", reply.Messages[0])
}

func TestTrackingDoesNotTruncateLongReferences(t *testing.T) {
	cases := []struct {
		text   string
		looked string
	}{
		{"ORD-0000000421", "ORD-0000000421"},
		{"ORD-0000000000042", "ORD-0000000000042"},
		{"ORD-1234567890", "ORD-1234567890"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			f := newFixture(t, nil)
			reply, err := f.engine.Step(context.Background(), Turn{State: StateTracking, Text: tc.text})
			require.NoError(t, err)
			assert.Equal(t, []string{tc.looked}, f.tracker.refs)
			if tc.text == "ORD-0000000000042" {
				require.NotNil(t, reply.Order)
				return
			}
			assert.Nil(t, reply.Order)
			assert.Contains(t, reply.Messages[0], "couldn't find")
		})
	}
}

func TestExtractOrderRef(t *testing.T) {
	for text, want := range map[string]string{
		"status of ORD-00042 please": "ORD-00042",
		"it's ord 42":                "ord 42",
		"order #123":                 "#123",
		"ORD-0000000421":             "ORD-0000000421",
		"ORD-1234567890":             "",
		"RECORD123":                  "",
	} {
		assert.Equal(t, want, extractOrderRef(text), text)
	}
}

func TestTrackingBackendFailureIsReported(t *testing.T) {
	f := newFixture(t, nil)
	f.tracker.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "load order")
	reply, err := f.engine.Step(context.Background(), Turn{State: StateTracking, Action: ActionAnswer, Value: "ORD-00042"})
	require.NoError(t, err)
	assert.Equal(t, StateTracking, reply.State)
	assert.Contains(t, reply.Messages[0], "can't reach")
}

func TestFreeTextClassification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		text  string
		state State
	}{
		{"where is my package?", StateTracking},
		{"I want a refund", StateReturn},
		{"can you recommend something", StateQuiz},
		{"hello", StateIdle},
		{"blorp", StateIdle},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			reply, err := f.engine.Step(ctx, Turn{State: StateIdle, Text: tc.text})
			require.NoError(t, err)
			assert.Equal(t, tc.state, reply.State)
			assert.NotEmpty(t, reply.Messages)
		})
	}

	reply, err := f.engine.Step(ctx, Turn{State: StateIdle, Text: "blorp"})
	require.NoError(t, err)
	assert.Contains(t, reply.Messages[0], "didn't quite catch")

	reply, err = f.engine.Step(ctx, Turn{State: StateIdle, Text: "status of ORD-00042 please"})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, reply.State)
	require.NotNil(t, reply.Order)
	assert.Equal(t, []string{"ORD-00042"}, f.tracker.refs)
}

func TestUnknownStateRestartsAtIdle(t *testing.T) {
	f := newFixture(t, nil)
	reply, err := f.engine.Step(context.Background(), Turn{State: "lost"})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, reply.State)
	assert.Len(t, reply.Options, 3)
}

func TestAddToBagKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	reply, err := f.engine.Step(ctx, Turn{SessionID: "sess-2", State: StateQuiz, Step: StepConcern, SkinType: "dry", Action: ActionAddToBag, Value: "s2"})
	require.NoError(t, err)
	assert.Equal(t, StateQuiz, reply.State)
	require.NotNil(t, reply.Cart)
	assert.Equal(t, 1, reply.Cart.TotalItemCount)
	assert.Equal(t, "Glow Serum is in your bag.", reply.Messages[0])
	assert.Equal(t, []cart.Owner{cart.SessionOwner("sess-2")}, f.bag.owners)

	f.bag.err = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	reply, err = f.engine.Step(ctx, Turn{SessionID: "sess-2", State: StateIdle, Action: ActionAddToBag, Value: "zz"})
	require.NoError(t, err)
	assert.Equal(t, "I couldn't add that to your bag just now.", reply.Messages[0])
}

func TestCorruptProfileFailsOpen(t *testing.T) {
	f := newFixture(t, nil)
	f.kv.data["gh:assistant_pref:sess-3"] = "{not json"
	reply, err := f.engine.Step(context.Background(), Turn{SessionID: "sess-3", State: StateIdle, Action: ActionQuiz})
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, StepSkinType, reply.Step)
}

func TestParseScriptValidates(t *testing.T) {
	_, err := ParseScript([]byte("keywords:\n  - action: dance\n    words: [x]\n"))
	assert.Error(t, err)
	_, err = ParseScript([]byte("skin_types: [{value: oily, label: Oily}]\nconcerns: [{value: acne, label: Acne}]\n"))
	assert.Error(t, err, "default picks are required")
}
