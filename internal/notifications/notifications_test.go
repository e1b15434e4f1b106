package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

func TestTelegramSendAlert(t *testing.T) {
	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := newTelegramNotifier(server.URL, "123:abc", "42")
	require.NoError(t, n.SendAlert(context.Background(), LevelSuccess, "BUY BTC"))

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "42", gotChat)
	assert.Contains(t, gotText, "BUY BTC")
	assert.Contains(t, gotText, "✅")
}

func TestTelegramSendAlertStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := newTelegramNotifier(server.URL, "bad", "42").SendAlert(context.Background(), LevelInfo, "x")
	assert.EqualError(t, err, "telegram API returned status 401")
}

func TestDecisionAlert(t *testing.T) {
	level, msg, ok := DecisionAlert(types.TradeDecision{
		Symbol: "BTC", Action: types.ActionBuy, Outcome: types.OutcomeApproved,
		Mode: types.ModeDryRun, PositionSize: 0.07992, Confidence: 68, RiskLevel: types.RiskMedium,
	})
	require.True(t, ok)
	assert.Equal(t, LevelSuccess, level)
	assert.Contains(t, msg, "*BUY BTC* (dry_run)")

	level, _, ok = DecisionAlert(types.TradeDecision{Symbol: "BTC", Outcome: types.OutcomeRejected, Recommended: types.ActionBuy})
	require.True(t, ok)
	assert.Equal(t, LevelWarning, level)

	_, _, ok = DecisionAlert(types.TradeDecision{Outcome: types.OutcomeHeld})
	assert.False(t, ok)

	assert.NoError(t, Nop{}.SendAlert(context.Background(), LevelError, "ignored"))
}
