package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusCanceled, true},
		{StatusPending, StatusFulfilling, false},
		{StatusPaid, StatusFulfilling, true},
		{StatusPaid, StatusCanceled, true},
		{StatusPaid, StatusShipped, false},
		{StatusFulfilling, StatusShipped, true},
		{StatusFulfilling, StatusCanceled, false},
		{StatusShipped, StatusCompleted, true},
		{StatusShipped, StatusPaid, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusFulfilling, false},
		{StatusCanceled, StatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatus_AdminSettable(t *testing.T) {
	for _, s := range []Status{StatusCanceled, StatusFulfilling, StatusShipped, StatusCompleted} {
		assert.True(t, s.AdminSettable(), s)
	}
	for _, s := range []Status{StatusPending, StatusPaid, Status("LOST")} {
		assert.False(t, s.AdminSettable(), s)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus(" shipped ")
	assert.True(t, ok)
	assert.Equal(t, StatusShipped, s)

	_, ok = ParseStatus("REFUNDED")
	assert.False(t, ok)
}

func TestStats_Add(t *testing.T) {
	var st Stats
	st.Add(StatusPending, 2)
	st.Add(StatusPaid, 1)
	st.Add(StatusCanceled, 3)

	assert.Equal(t, Stats{Total: 6, Pending: 2, Paid: 1, Canceled: 3}, st)
}
