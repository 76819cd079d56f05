package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	sm := NewReportStateMachine()

	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{"pending", "under-review", true},
		{"pending", "rejected", true},
		{"pending", "approved", false},
		{"pending", "paid", false},
		{"under-review", "approved", true},
		{"under-review", "rejected", true},
		{"under-review", "pending", false},
		{"approved", "paid", true},
		{"approved", "rejected", false},
		{"rejected", "pending", false},
		{"paid", "approved", false},
		{"unknown", "pending", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_to_"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.allowed, sm.CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	sm := NewReportStateMachine()

	assert.True(t, sm.IsTerminal("rejected"))
	assert.True(t, sm.IsTerminal("paid"))
	assert.False(t, sm.IsTerminal("pending"))
	assert.False(t, sm.IsTerminal("under-review"))
	assert.False(t, sm.IsTerminal("approved"))
	assert.False(t, sm.IsTerminal("unknown"))
}

func TestGetAllowedTransitions(t *testing.T) {
	sm := NewReportStateMachine()

	assert.ElementsMatch(t, []string{"under-review", "rejected"}, sm.GetAllowedTransitions("pending"))
	assert.Empty(t, sm.GetAllowedTransitions("paid"))
	assert.Empty(t, sm.GetAllowedTransitions("unknown"))
}
