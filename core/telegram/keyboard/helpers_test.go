package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsMixesDataAndURL(t *testing.T) {
	m := InlineButtons(
		InlineBtn{Text: "Order", Unique: "ORDER_START"},
		InlineBtn{Text: "Shop", URL: "https://example.com"},
	)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, "ORDER_START", m.InlineKeyboard[0][0].Unique)
	assert.Empty(t, m.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://example.com", m.InlineKeyboard[1][0].URL)
}

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"A", "B"}, []string{"C"})
	assert.True(t, m.ResizeKeyboard)
	require.Len(t, m.ReplyKeyboard, 2)
	assert.Equal(t, "B", m.ReplyKeyboard[0][1].Text)
	assert.True(t, RemoveKeyboard().RemoveKeyboard)
}
