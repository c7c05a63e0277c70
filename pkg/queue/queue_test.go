package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pops(q *Queue) []string {
	var out []string
	for {
		p, ok := q.Pop()
		if !ok {
			break
		}
		out = append(out, p.Key())
	}
	return out
}

func TestSeedOrdering(t *testing.T) {
	// spec §8 scenario 1
	q := New()
	q.Insert(StringPayload("001-setup"), 1)
	q.Insert(StringPayload("100-users"), 100)
	q.Insert(StringPayload("999-complete"), 999)
	q.Insert(StringPayload("212-git"), 212)

	assert.Equal(t, []string{"001-setup", "100-users", "212-git", "999-complete"}, pops(q))
}

func TestStableFIFOWithinPriority(t *testing.T) {
	q := New()
	q.Insert(StringPayload("a"), 5)
	q.Insert(StringPayload("b"), 5)
	q.Insert(StringPayload("c"), 5)
	assert.Equal(t, []string{"a", "b", "c"}, pops(q))
}

func TestDelete(t *testing.T) {
	q := New()
	q.Insert(StringPayload("a"), 1)
	q.Insert(StringPayload("b"), 2)

	priority, ok := q.Delete(StringPayload("a"))
	require.True(t, ok)
	assert.Equal(t, 1, priority)
	assert.Equal(t, []string{"b"}, pops(q))

	_, ok = q.Delete(StringPayload("missing"))
	assert.False(t, ok)
}

func TestUpdateReorder(t *testing.T) {
	// spec §8 scenario 5
	q := New()
	q.Insert(StringPayload("001-setup"), 1)
	q.Insert(StringPayload("100-a"), 100)
	q.Insert(StringPayload("200-b"), 200)
	q.Insert(StringPayload("999-complete"), 999)

	q.Update(StringPayload("100-a"), 300)

	assert.Equal(t, []string{"001-setup", "200-b", "100-a", "999-complete"}, pops(q))
}

func TestUpdateNonexistentIsNoOp(t *testing.T) {
	q := New()
	q.Insert(StringPayload("001-setup"), 1)
	q.Update(StringPayload("no-such-step"), 50)
	assert.Equal(t, []string{"001-setup"}, pops(q))
}

func TestQueueStepForcesPriorityZero(t *testing.T) {
	q := New()
	q.Insert(StringPayload("100-a"), 100)
	q.Insert(StringPayload("999-complete"), 999)
	q.Insert(StringPayload("050-forced"), 0)

	assert.Equal(t, []string{"050-forced", "100-a", "999-complete"}, pops(q))
}

func TestPopEmpty(t *testing.T) {
	q := New()
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestDeferredFuncPayload(t *testing.T) {
	q := New()
	called := false
	q.Insert(DeferredFunc{ID: "cleanup", Fn: func() error { called = true; return nil }}, 998)

	p, ok := q.Pop()
	require.True(t, ok)
	df, ok := p.(DeferredFunc)
	require.True(t, ok)
	require.NoError(t, df.Fn())
	assert.True(t, called)
}
