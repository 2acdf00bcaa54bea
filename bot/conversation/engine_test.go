package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/slrbot/bot/order"
	"github.com/m3rciful/slrbot/bot/order/ordertest"
	"github.com/m3rciful/slrbot/core/clock"
	"github.com/m3rciful/slrbot/core/telegram/state"
)

var (
	testNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	cet     = time.FixedZone("CET", 3600)
)

type harness struct {
	engine *Engine
	store  *ordertest.MemoryStore
}

func newHarness(t *testing.T) harness {
	t.Helper()
	store := ordertest.NewMemoryStore(order.State{})
	c := clock.NewFixed(testNow)
	seq := order.NewSequencer(store, order.SequencerOptions{Clock: c, Location: cet})
	return harness{
		engine: New(Options{Sequencer: seq, Clock: c, Location: cet}),
		store:  store,
	}
}

func jean() User {
	return User{ID: 42, FirstName: "Jean", LastName: "Dupont", Username: "john_doe"}
}

func (h harness) send(t *testing.T, u User, kind EventKind, text string) []Intent {
	t.Helper()
	ev := Event{Kind: kind, ChatID: u.ID, User: u}
	if kind == EventText {
		ev.Text = text
	} else {
		ev.Payload = text
	}
	out, err := h.engine.Handle(context.Background(), ev)
	require.NoError(t, err)
	return out
}

func (h harness) step(t *testing.T, userID int64) (state.State, order.Draft) {
	t.Helper()
	st, draft, ok := h.engine.Session(userID)
	if !ok {
		return "", order.Draft{}
	}
	return st, draft
}

func TestScenarioFullOrder(t *testing.T) {
	h := newHarness(t)
	u := jean()

	out := h.send(t, u, EventStart, "")
	require.Len(t, out, 1)
	assert.Equal(t, Prompt{ChatID: 42, Text: askServiceText, Markdown: true, Choices: ChoiceCancel}, out[0])
	st, _ := h.step(t, u.ID)
	assert.Equal(t, StepService, st)

	out = h.send(t, u, EventText, "  Logo design ")
	require.Len(t, out, 1)
	assert.Equal(t, askAmountText, out[0].(Prompt).Text)
	st, draft := h.step(t, u.ID)
	assert.Equal(t, StepAmount, st)
	assert.Equal(t, "Logo design", draft.Service)

	h.send(t, u, EventText, "150,50")
	st, draft = h.step(t, u.ID)
	assert.Equal(t, StepAddress, st)
	assert.Equal(t, "150.50", draft.Amount)

	out = h.send(t, u, EventText, "12 rue de Paris")
	require.Len(t, out, 2)

	notice, ok := out[0].(NotifyBackOffice)
	require.True(t, ok, "first intent should notify the back office, got %T", out[0])
	confirm, ok := out[1].(ConfirmUser)
	require.True(t, ok, "second intent should confirm, got %T", out[1])

	assert.Equal(t, "SLR-2025-0001", confirm.OrderNo)
	assert.Equal(t, int64(42), confirm.ChatID)
	assert.Contains(t, confirm.Text, "Numéro : SLR-2025-0001")
	assert.Equal(t, "SLR-2025-0001", notice.Order.OrderNo)

	assert.False(t, h.engine.Active(u.ID))
	stored := h.store.State()
	require.Len(t, stored.Orders, 1)
	assert.Equal(t, int64(1), stored.Counter)
	assert.Equal(t, order.Order{
		OrderNo:     "SLR-2025-0001",
		UserID:      42,
		DisplayName: "Jean Dupont",
		Handle:      "john_doe",
		Service:     "Logo design",
		Amount:      "150.50",
		Address:     "12 rue de Paris",
		CreatedAt:   testNow,
	}, stored.Orders[0])
}

func TestScenarioDeepLinkSeedsDraft(t *testing.T) {
	h := newHarness(t)
	u := jean()

	out := h.send(t, u, EventStart, "order_WebDesign_399")
	require.Len(t, out, 1)
	prompt := out[0].(Prompt)
	assert.Contains(t, prompt.Text, "Service détecté : *WebDesign*")
	assert.Contains(t, prompt.Text, "Montant détecté : *399 €*")
	assert.Equal(t, ChoiceCancel, prompt.Choices)

	st, draft := h.step(t, u.ID)
	assert.Equal(t, StepAddress, st)
	assert.Equal(t, order.Draft{Service: "WebDesign", Amount: "399"}, draft)

	out = h.send(t, u, EventText, "5 avenue Foch")
	require.Len(t, out, 2)
	assert.Equal(t, "WebDesign", h.store.State().Orders[0].Service)
}

func TestWelcomeWithDeepLink(t *testing.T) {
	h := newHarness(t)
	u := jean()

	out := h.send(t, u, EventWelcome, "order_Boost%20Insta_19,90")
	require.Len(t, out, 2)
	assert.Equal(t, Welcome{ChatID: 42, Text: welcomeText}, out[0])
	st, draft := h.step(t, u.ID)
	assert.Equal(t, StepAddress, st)
	assert.Equal(t, "Boost Insta", draft.Service)
	assert.Equal(t, "19,90", draft.Amount)

	h2 := newHarness(t)
	out = h2.send(t, u, EventWelcome, "")
	require.Len(t, out, 1)
	assert.IsType(t, Welcome{}, out[0])
	assert.False(t, h2.engine.Active(u.ID))

	out = h2.send(t, u, EventWelcome, "promo")
	require.Len(t, out, 1)
	assert.False(t, h2.engine.Active(u.ID))
}

func TestScenarioEmptyReplyKeepsStep(t *testing.T) {
	h := newHarness(t)
	u := jean()
	h.send(t, u, EventStart, "")
	h.send(t, u, EventText, "Logo design")

	for _, blank := range []string{"", "   ", "\n\t"} {
		out := h.send(t, u, EventText, blank)
		assert.Empty(t, out)
		st, draft := h.step(t, u.ID)
		assert.Equal(t, StepAmount, st)
		assert.Equal(t, order.Draft{Service: "Logo design"}, draft)
	}
}

func TestScenarioCancelAtAddress(t *testing.T) {
	h := newHarness(t)
	u := jean()
	h.send(t, u, EventStart, "order_WebDesign_399")

	out := h.send(t, u, EventCancel, "")
	require.Len(t, out, 1)
	assert.Equal(t, CancelAck{ChatID: 42, Text: cancelledText}, out[0])
	assert.False(t, h.engine.Active(u.ID))
	assert.Empty(t, h.store.State().Orders)
	assert.Equal(t, 0, h.store.Saves())
}

func TestCancelWithoutSessionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	u := jean()

	for i := 0; i < 2; i++ {
		out := h.send(t, u, EventCancel, "")
		require.Len(t, out, 1)
		assert.IsType(t, CancelAck{}, out[0])
	}
	assert.False(t, h.engine.Active(u.ID))
	assert.Equal(t, order.State{}, h.store.State())
}

func TestTextWithoutSessionIsIgnored(t *testing.T) {
	h := newHarness(t)
	out := h.send(t, jean(), EventText, "bonjour")
	assert.Empty(t, out)
	assert.Equal(t, 0, h.engine.Sessions().Len())
}

func TestUnknownCommandsAreIgnoredMidOrder(t *testing.T) {
	h := newHarness(t)
	u := jean()
	h.send(t, u, EventStart, "")

	out := h.send(t, u, EventText, "/help")
	assert.Empty(t, out)
	st, draft := h.step(t, u.ID)
	assert.Equal(t, StepService, st)
	assert.Empty(t, draft.Service)
}

func TestStartReplacesLiveSession(t *testing.T) {
	h := newHarness(t)
	u := jean()
	h.send(t, u, EventStart, "")
	h.send(t, u, EventText, "Logo")
	h.send(t, u, EventText, "10")

	h.send(t, u, EventStart, "")
	st, draft := h.step(t, u.ID)
	assert.Equal(t, StepService, st)
	assert.Equal(t, order.Draft{}, draft)
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	h := newHarness(t)
	alice := User{ID: 1, FirstName: "Alice"}
	bob := User{ID: 2, FirstName: "Bob", Username: "bob"}

	h.send(t, alice, EventStart, "")
	h.send(t, bob, EventStart, "")
	h.send(t, alice, EventText, "Logo")
	h.send(t, bob, EventText, "Site web")
	h.send(t, bob, EventText, "500")
	h.send(t, alice, EventText, "20,5")

	_, a := h.step(t, alice.ID)
	_, b := h.step(t, bob.ID)
	assert.Equal(t, order.Draft{Service: "Logo", Amount: "20.5"}, a)
	assert.Equal(t, order.Draft{Service: "Site web", Amount: "500"}, b)

	h.send(t, bob, EventText, "Lyon")
	h.send(t, alice, EventText, "Paris")

	orders := h.store.State().Orders
	require.Len(t, orders, 2)
	assert.Equal(t, "SLR-2025-0001", orders[0].OrderNo)
	assert.Equal(t, int64(2), orders[0].UserID)
	assert.Equal(t, "Lyon", orders[0].Address)
	assert.Equal(t, "SLR-2025-0002", orders[1].OrderNo)
	assert.Equal(t, "Alice", orders[1].DisplayName)
	assert.Equal(t, "Paris", orders[1].Address)
}

func TestManyOrdersGetDistinctNumbers(t *testing.T) {
	h := newHarness(t)
	seen := map[string]bool{}
	for i := int64(1); i <= 25; i++ {
		u := User{ID: i}
		h.send(t, u, EventStart, fmt.Sprintf("order_S%d_%d", i, i))
		out := h.send(t, u, EventText, "adresse")
		require.Len(t, out, 2)
		no := out[1].(ConfirmUser).OrderNo
		assert.False(t, seen[no])
		seen[no] = true
	}
	assert.True(t, seen["SLR-2025-0025"])
}

func TestStorageFailureKeepsSessionAndHidesError(t *testing.T) {
	h := newHarness(t)
	u := jean()
	h.send(t, u, EventStart, "order_Logo_50")
	h.store.SetErrors(nil, errors.New("disk full"))

	out, err := h.engine.Handle(context.Background(), Event{Kind: EventText, ChatID: 42, User: u, Text: "Paris"})
	require.Error(t, err)
	assert.ErrorIs(t, err, order.ErrStorage)
	require.Len(t, out, 1)
	prompt := out[0].(Prompt)
	assert.Equal(t, retryText, prompt.Text)
	assert.NotContains(t, prompt.Text, "disk full")

	st, draft := h.step(t, u.ID)
	assert.Equal(t, StepAddress, st)
	assert.Equal(t, "Logo", draft.Service)

	h.store.SetErrors(nil, nil)
	out = h.send(t, u, EventText, "Paris")
	require.Len(t, out, 2)
	assert.Equal(t, "SLR-2025-0001", out[1].(ConfirmUser).OrderNo)
}

type failingAppend struct {
	*order.Sequencer
}

func (failingAppend) Append(context.Context, order.Order) error {
	return errors.New("constraint violation")
}

func TestAppendFailureIsReportedAsStorageError(t *testing.T) {
	store := ordertest.NewMemoryStore(order.State{})
	seq := failingAppend{order.NewSequencer(store, order.SequencerOptions{Clock: clock.NewFixed(testNow)})}
	e := New(Options{Sequencer: seq, Clock: clock.NewFixed(testNow)})
	u := jean()

	_, err := e.Handle(context.Background(), Event{Kind: EventStart, ChatID: 42, User: u, Payload: "order_A_1"})
	require.NoError(t, err)
	out, err := e.Handle(context.Background(), Event{Kind: EventText, ChatID: 42, User: u, Text: "Paris"})
	assert.ErrorIs(t, err, order.ErrStorage)
	require.Len(t, out, 1)
	assert.True(t, e.Active(u.ID))
}

func TestExpiredSessionBehavesAsNoSession(t *testing.T) {
	now := testNow
	c := clock.Func(func() time.Time { return now })
	sessions := NewSessions(state.Options{IdleTTL: time.Hour, Clock: c})
	store := ordertest.NewMemoryStore(order.State{})
	e := New(Options{Sequencer: order.NewSequencer(store, order.SequencerOptions{Clock: c}), Sessions: sessions, Clock: c})
	u := jean()

	_, err := e.Handle(context.Background(), Event{Kind: EventStart, ChatID: 42, User: u})
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)

	out, err := e.Handle(context.Background(), Event{Kind: EventText, ChatID: 42, User: u, Text: "Logo"})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.False(t, e.Active(u.ID))
}

func TestDecodePayload(t *testing.T) {
	cases := []struct {
		payload string
		want    order.Draft
		ok      bool
	}{
		{"order_WebDesign_399", order.Draft{Service: "WebDesign", Amount: "399"}, true},
		{"order_Logo%20Pro_49.90", order.Draft{Service: "Logo Pro", Amount: "49.90"}, true},
		{"order_Logo", order.Draft{Service: "Logo"}, true},
		{"order_", order.Draft{}, true},
		{"order_%zz_10", order.Draft{Amount: "10"}, true},
		{"order_Logo_%E2%82%AC", order.Draft{Service: "Logo", Amount: "€"}, true},
		{"promo_2025", order.Draft{}, false},
		{"", order.Draft{}, false},
	}
	for _, tc := range cases {
		got, ok := DecodePayload(tc.payload)
		assert.Equal(t, tc.ok, ok, tc.payload)
		assert.Equal(t, tc.want, got, tc.payload)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Jean Dupont", displayName(User{FirstName: "Jean", LastName: "Dupont"}))
	assert.Equal(t, "Jean", displayName(User{FirstName: " Jean "}))
	assert.Equal(t, "Dupont", displayName(User{LastName: "Dupont"}))
	assert.Equal(t, "Client", displayName(User{}))
}

func TestSummaryGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	g.Assert(t, "backoffice_summary", []byte(Summary(order.Order{
		OrderNo:     "SLR-2025-0001",
		UserID:      42,
		DisplayName: "Jean Dupont",
		Handle:      "john_doe",
		Service:     "Logo design",
		Amount:      "150.50",
		Address:     "12 rue de Paris",
		CreatedAt:   testNow,
	}, cet)))

	g.Assert(t, "backoffice_summary_anonymous", []byte(Summary(order.Order{
		OrderNo:     "SLR-2025-10000",
		UserID:      7,
		DisplayName: "Client",
		Service:     "Pack *VIP*",
		Amount:      "99.90",
		Address:     "Bât. B_2\n69002 Lyon",
		CreatedAt:   time.Date(2025, 12, 31, 22, 59, 59, 0, time.UTC),
	}, cet)))

	g.Assert(t, "backoffice_summary_specials", []byte(Summary(order.Order{
		OrderNo:     "SLR-2025-0002",
		UserID:      51,
		DisplayName: "Zoé_[VIP]*",
		Handle:      "zoe_b",
		Service:     "Boost x2*_[pro]_",
		Amount:      "10.5",
		Address:     "Rue *A* [3]",
		CreatedAt:   testNow,
	}, cet)))
}
