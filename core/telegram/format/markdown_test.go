package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdown(t *testing.T) {
	v1, err := EscapeMarkdown("john_doe *vip* [x] `y` 1.5", MarkdownV1)
	require.NoError(t, err)
	assert.Equal(t, "john\\_doe \\*vip\\* \\[x] \\`y\\` 1.5", v1)

	v2, err := EscapeMarkdown("1.5 (a-b)!", MarkdownV2)
	require.NoError(t, err)
	assert.Equal(t, "1\\.5 \\(a\\-b\\)\\!", v2)

	_, err = EscapeMarkdown("x", 3)
	assert.Error(t, err)
}

func TestMDKeepsPlainText(t *testing.T) {
	assert.Equal(t, "12 rue de la Paix, Paris", MD("12 rue de la Paix, Paris"))
}

func TestMDBold(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"Logo design", "*Logo design*"},
		{"john_doe [x]", "*john_doe [x]*"},
		{"2*2=4", `*2*\**2=4*`},
		{"5*", `*5*\*`},
		{"*", `\*`},
		{"Pack *VIP*", `*Pack *\**VIP*\*`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MDBold(tc.in), "input %q", tc.in)
	}
}
