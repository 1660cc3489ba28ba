package broker

import (
	"testing"

	"github.com/casualjim/waggle/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryQueryReturnsDetachedSlice(t *testing.T) {
	log := newHistoryLog()
	log.append(messages.New("demand", messages.KindDemandForecast, nil))
	log.append(messages.New("supply", messages.KindSupplyAlert, nil))

	got := log.query(HistoryQuery{})
	require.Len(t, got, 2)

	got[0] = nil
	again := log.query(HistoryQuery{})
	require.NotNil(t, again[0])
	assert.Equal(t, "demand", again[0].Sender)
}

func TestHistoryLimitLargerThanMatches(t *testing.T) {
	log := newHistoryLog()
	log.append(messages.New("demand", messages.KindDemandForecast, nil))

	assert.Len(t, log.query(HistoryQuery{Limit: 10}), 1)
}

func TestHistoryZeroLimitMeansUnbounded(t *testing.T) {
	log := newHistoryLog()
	for i := 0; i < 5; i++ {
		log.append(messages.New("demand", messages.KindDemandForecast, nil))
	}

	assert.Len(t, log.query(HistoryQuery{}), 5)
	assert.Equal(t, 5, log.size())
}

func TestHistoryFilterAppliesBeforeWindow(t *testing.T) {
	log := newHistoryLog()
	log.append(messages.New("demand", messages.KindDemandForecast, nil))
	log.append(messages.New("supply", messages.KindSupplyAlert, nil))
	log.append(messages.New("demand", messages.KindInventoryUpdate, nil))
	log.append(messages.New("supply", messages.KindSupplyAlert, nil))

	// Two most recent demand envelopes, not the demand envelopes among
	// the two most recent overall.
	got := log.query(HistoryQuery{Sender: "demand", Limit: 2})
	require.Len(t, got, 2)
	assert.Equal(t, messages.KindDemandForecast, got[0].Kind)
	assert.Equal(t, messages.KindInventoryUpdate, got[1].Kind)
}
