package invoice

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChecker struct {
	calls   int
	collide int // first N candidates report as taken
	err     error
}

func (f *fakeChecker) InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.calls <= f.collide, nil
}

func TestAllocateFormat(t *testing.T) {
	a := NewAllocator(&fakeChecker{}, zap.NewNop())

	n, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{10}$`), n)
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	checker := &fakeChecker{collide: 3}
	a := NewAllocator(checker, zap.NewNop())

	n, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Len(t, n, 10)
	assert.Equal(t, 4, checker.calls)
}

func TestAllocateGivesUpAfterMaxAttempts(t *testing.T) {
	checker := &fakeChecker{collide: 1000}
	a := NewAllocator(checker, zap.NewNop())

	_, err := a.Allocate(context.Background())
	require.Error(t, err)
	assert.Equal(t, maxAttempts, checker.calls)
}

func TestAllocatePropagatesCheckerError(t *testing.T) {
	a := NewAllocator(&fakeChecker{err: errors.New("db down")}, zap.NewNop())

	_, err := a.Allocate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestAllocateUniqueAcrossCalls(t *testing.T) {
	a := NewAllocator(&fakeChecker{}, zap.NewNop())

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n, err := a.Allocate(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[n], "number %s repeated", n)
		seen[n] = true
	}
}
