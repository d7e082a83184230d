package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMasker_DefaultRules(t *testing.T) {
	masker := NewMasker(DefaultMasks)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bot api token in url",
			in:   `Post "https://api.example.org/bot123456:AAHdF9x2v-abc123/sendMessage": connection refused`,
			want: `Post "https://api.example.org/bot***/sendMessage": connection refused`,
		},
		{
			name: "authorization header",
			in:   "GET /export HTTP/1.1\r\nAuthorization: Bearer abc.def\r\nHost: example.com\r\n",
			want: "GET /export HTTP/1.1\r\nAuthorization: ***\r\nHost: example.com\r\n",
		},
		{
			name: "token in query",
			in:   "remote call failed: /export?token=55aa77&range=A1:B2",
			want: "remote call failed: /export?token=***&range=A1:B2",
		},
		{
			name: "api key in json",
			in:   `request body: {"api_key": "qwerty", "sheet": "stats"}`,
			want: `request body: {"api_key": "***", "sheet": "stats"}`,
		},
		{
			name: "password urlencoded",
			in:   "login=admin&password=hunter2&remember=1",
			want: "login=admin&password=***&remember=1",
		},
		{
			name: "client_secret matches secret rule",
			in:   "oauth: client_secret=s3cr3t",
			want: "oauth: client_secret=***",
		},
		{
			// The replacement literal uses the rule's field name.
			name: "case insensitive",
			in:   "TOKEN=ABC123",
			want: "token=***",
		},
		{
			name: "no trigger, string untouched",
			in:   "fetched 12 rows for manager_stats_42",
			want: "fetched 12 rows for manager_stats_42",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, masker.Mask(tt.in))
		})
	}
}

func TestMasker_CustomRules(t *testing.T) {
	masker := NewMasker([]MaskingRuleConfig{
		{
			Field: "sheet_key",
			Masks: []MaskConfig{{RegExp: `sheet_key-[0-9a-f]+`, Mask: "sheet_key-***"}},
		},
	})

	require.Equal(t, "loading sheet_key-***", masker.Mask("loading sheet_key-deadbeef"))
	require.Equal(t, "loading something else", masker.Mask("loading something else"))
}

func TestMasker_MergesRulesWithSameField(t *testing.T) {
	masker := NewMasker([]MaskingRuleConfig{
		{Field: "token", Formats: []FieldMaskFormat{FieldMaskFormatURLEncoded}},
		{Field: "token", Formats: []FieldMaskFormat{FieldMaskFormatJSON}},
	})

	require.Len(t, masker.FieldMasks, 1)
	require.Len(t, masker.FieldMasks[0].Masks, 2)
	require.Equal(t, "token=***", masker.Mask("token=123"))
	require.Equal(t, `{"token": "***"}`, masker.Mask(`{"token": "xyz"}`))
}

func TestMasker_NoRules(t *testing.T) {
	masker := NewMasker(nil)
	require.Equal(t, "password=123", masker.Mask("password=123"))
}
