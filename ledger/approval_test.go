package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("step-%d", n)
	}
}

func TestBuildApprovalChain_ContiguousPending(t *testing.T) {
	usage := &UsageRequest{ID: "u-1", GrantID: "g-1"}

	steps := BuildApprovalChain(usage, []OwnerID{"mgr-1", "mgr-2", "mgr-3"}, sequentialIDs())

	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, i+1, s.Sequence)
		assert.Equal(t, DecisionPending, s.Decision)
		assert.Equal(t, GrantID("g-1"), s.GrantID)
	}
	assert.NoError(t, ValidateChain(steps))

	current, ok := CurrentStep(steps)
	require.True(t, ok)
	assert.Equal(t, OwnerID("mgr-1"), current.ApproverID)
	assert.False(t, IsLastStep(steps, current))
	assert.True(t, IsLastStep(steps, steps[2]))
}

func TestCurrentStep_AdvancesAndClosesOnRejection(t *testing.T) {
	steps := BuildApprovalChain(&UsageRequest{ID: "u-1"}, []OwnerID{"a", "b", "c"}, sequentialIDs())

	steps[0].Decision = DecisionApproved
	current, ok := CurrentStep(steps)
	require.True(t, ok)
	assert.Equal(t, 2, current.Sequence)

	steps[1].Decision = DecisionRejected
	_, ok = CurrentStep(steps)
	assert.False(t, ok, "a rejected chain has no current step")
	assert.NoError(t, ValidateChain(steps))
}

func TestValidateChain_DetectsViolations(t *testing.T) {
	steps := BuildApprovalChain(&UsageRequest{ID: "u-1"}, []OwnerID{"a", "b"}, sequentialIDs())
	steps[1].Decision = DecisionApproved
	assert.Error(t, ValidateChain(steps), "step 2 decided while step 1 pending")

	gap := BuildApprovalChain(&UsageRequest{ID: "u-1"}, []OwnerID{"a", "b"}, sequentialIDs())
	gap[1].Sequence = 3
	assert.Error(t, ValidateChain(gap))
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("APPROVED")
	require.NoError(t, err)
	assert.Equal(t, DecisionApproved, d)

	_, err = ParseDecision("PENDING")
	assert.ErrorIs(t, err, ErrInvalidDecision)
	_, err = ParseDecision("maybe")
	assert.ErrorIs(t, err, ErrInvalidDecision)
}
