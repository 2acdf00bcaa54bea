package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"encoded", &tele.Callback{Data: "\fORDER_START|go"}, "ORDER_START", "go"},
		{"encoded without payload", &tele.Callback{Data: "\fORDER_START"}, "ORDER_START", ""},
		{"unique set", &tele.Callback{Unique: "ORDER_START", Data: "x|y"}, "ORDER_START", "x|y"},
		{"raw data", &tele.Callback{Data: "plain"}, "plain", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}
