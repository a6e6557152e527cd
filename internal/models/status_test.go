package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Transitions(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusPending, StatusCancelled}:    true,
		{StatusProcessing, StatusShipped}:   true,
		{StatusProcessing, StatusCancelled}: true,
		{StatusShipped, StatusDelivered}:    true,
		{StatusDelivered, StatusRefunded}:   true,
	}

	for _, from := range AllOrderStatuses {
		for _, to := range AllOrderStatuses {
			want := allowed[[2]OrderStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusRefunded.IsTerminal())
	assert.False(t, StatusDelivered.IsTerminal())
	assert.False(t, OrderStatus("bogus").IsTerminal())
}

func TestSources(t *testing.T) {
	assert.ElementsMatch(t, []OrderStatus{StatusPending, StatusProcessing}, Sources(StatusCancelled))
	assert.Equal(t, []OrderStatus{StatusDelivered}, Sources(StatusRefunded))
	assert.Empty(t, Sources(StatusPending))
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus(" shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseOrderStatus("lost")
	assert.Error(t, err)
}

func TestCartOwner_Owns(t *testing.T) {
	uid := uint(7)
	sid := "sess-1"
	userCart := &Cart{UserID: &uid}
	sessCart := &Cart{SessionID: &sid}

	assert.True(t, CartOwner{UserID: 7}.Owns(userCart))
	assert.False(t, CartOwner{UserID: 8}.Owns(userCart))
	assert.True(t, CartOwner{SessionID: "sess-1"}.Owns(sessCart))
	assert.False(t, CartOwner{SessionID: "sess-2"}.Owns(sessCart))
	assert.False(t, CartOwner{UserID: 7}.Owns(sessCart))
	assert.False(t, CartOwner{}.Owns(nil))
}
