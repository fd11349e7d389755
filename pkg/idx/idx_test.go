package idx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/docgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z!"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid, s)
	}
}

func TestMonotonic(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	a := idx.NewAt(at)
	b := idx.NewAt(at)

	// Same millisecond still sorts
	require.Less(t, a.String(), b.String())
}

func TestTimeExtraction(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	id := idx.NewAt(tm)

	require.WithinDuration(t, tm, id.Time(), time.Millisecond)
	require.True(t, idx.Zero.Time().IsZero())
}

func TestBlobKey(t *testing.T) {
	a := idx.BlobKey("ORDER-1")
	b := idx.BlobKey("ORDER-1")

	require.NotEqual(t, a, b, "every upload gets its own key")
	require.True(t, strings.HasPrefix(a, "documents/ORDER-1/"))
	require.True(t, strings.HasSuffix(a, ".bin"))

	// ids cannot escape their prefix
	require.Equal(t, 2, strings.Count(idx.BlobKey("a/b"), "/"))
}
