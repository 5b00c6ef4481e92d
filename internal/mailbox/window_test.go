package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowPredicate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	require.Equal(t, "SINCE 28-Feb-2026 UNSEEN", Window{Mode: SinceUnseenMode, DaysBack: 1}.Predicate(now))
	require.Equal(t, "SINCE 01-Mar-2026", Window{Mode: SinceMode}.Predicate(now))
}

func TestWindowClampsNegativeDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.Equal(t, Window{}.Since(now), Window{DaysBack: -5}.Since(now))
}

func TestWindowString(t *testing.T) {
	require.Equal(t, "SINCE_UNSEEN(3d)", Window{Mode: SinceUnseenMode, DaysBack: 3}.String())
}
