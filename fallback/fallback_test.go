/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package fallback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple", "currency", false},
		{"all allowed char classes", "Currency.USD_2025-03", false},
		{"max length", strings.Repeat("a", MaxKeyLen), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxKeyLen+1), true},
		{"leading dot", ".currency", true},
		{"path separator", "a/b", true},
		{"backslash", `a\b`, true},
		{"space", "a b", true},
		{"non-ascii", "ключ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestResultAge(t *testing.T) {
	fetchedAt := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	res := Result[int]{Value: 42, FetchedAt: fetchedAt}
	require.Equal(t, 90*time.Minute, res.Age(fetchedAt.Add(90*time.Minute)))
}

func TestDefaultIsRetriable(t *testing.T) {
	require.True(t, DefaultIsRetriable(ErrRemoteUnavailable))
	require.True(t, DefaultIsRetriable(fmt.Errorf("api status 503: %w", ErrRemoteUnavailable)))
	require.True(t, DefaultIsRetriable(context.DeadlineExceeded))
	require.True(t, DefaultIsRetriable(&net.DNSError{Err: "lookup timeout", IsTimeout: true}))
	require.False(t, DefaultIsRetriable(errors.New("bad api key")))
	require.False(t, DefaultIsRetriable(context.Canceled))
}

func TestSanitizeCause(t *testing.T) {
	require.NoError(t, sanitizeCause(nil))

	err := sanitizeCause(fmt.Errorf("api status 503: %w", ErrRemoteUnavailable))
	require.ErrorIs(t, err, ErrRemoteUnavailable)
	require.EqualError(t, err, "api status 503: remote source unavailable")

	err = sanitizeCause(boomError{})
	require.EqualError(t, err, "boom")
	var boom boomError
	require.False(t, errors.As(err, &boom))

	require.ErrorIs(t, sanitizeCause(context.DeadlineExceeded), context.DeadlineExceeded)
	require.ErrorIs(t, sanitizeCause(context.Canceled), context.Canceled)
}
