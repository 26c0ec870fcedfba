package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMyersEmptySequences(t *testing.T) {
	d := NewMyers()
	result := d.Diff(nil, nil)
	assert.Empty(t, result)
}

func TestMyersIdenticalSequences(t *testing.T) {
	d := NewMyers()
	base := []string{"line1", "line2", "line3"}
	target := []string{"line1", "line2", "line3"}
	result := d.Diff(base, target)

	require.Len(t, result, 1)
	assert.Equal(t, Op{Kind: OpEqual, OldStart: 0, OldEnd: 3, NewStart: 0, NewEnd: 3}, result[0])
}

func TestMyersInsertion(t *testing.T) {
	d := NewMyers()
	base := []string{"line1", "line3"}
	target := []string{"line1", "line2", "line3"}
	result := d.Diff(base, target)

	require.NotEmpty(t, result)
	hasInsert := false
	for _, op := range result {
		if op.Kind == OpInsert {
			hasInsert = true
		}
	}
	assert.True(t, hasInsert, "expected an Insert operation")
}

func TestMyersDeletion(t *testing.T) {
	d := NewMyers()
	base := []string{"line1", "line2", "line3"}
	target := []string{"line1", "line3"}
	result := d.Diff(base, target)

	hasDelete := false
	for _, op := range result {
		if op.Kind == OpDelete {
			hasDelete = true
		}
	}
	assert.True(t, hasDelete, "expected a Delete operation")
}

func TestMyersReplacement(t *testing.T) {
	d := NewMyers()
	base := []string{"line1", "old", "line3"}
	target := []string{"line1", "new", "line3"}
	result := d.Diff(base, target)

	hasChange := false
	for _, op := range result {
		if op.IsChange() {
			hasChange = true
		}
	}
	assert.True(t, hasChange, "expected a change operation")
}

func TestMyersAllInsertions(t *testing.T) {
	d := NewMyers()
	result := d.Diff(nil, []string{"a", "b", "c"})

	require.Len(t, result, 1)
	assert.Equal(t, Op{Kind: OpInsert, NewStart: 0, NewEnd: 3}, result[0])
}

func TestMyersAllDeletions(t *testing.T) {
	d := NewMyers()
	result := d.Diff([]string{"a", "b", "c"}, nil)

	require.Len(t, result, 1)
	assert.Equal(t, Op{Kind: OpDelete, OldStart: 0, OldEnd: 3}, result[0])
}

func TestMyersComplexDiff(t *testing.T) {
	d := NewMyers()
	base := []string{"a", "b", "c", "d", "e"}
	target := []string{"a", "x", "c", "y", "e"}
	result := d.Diff(base, target)

	require.NotEmpty(t, result)
	changeCount := 0
	for _, op := range result {
		if op.IsChange() {
			changeCount++
		}
	}
	assert.GreaterOrEqual(t, changeCount, 1)
}

func TestMyersBacktrackSimple(t *testing.T) {
	base := []string{"a", "b"}
	target := []string{"a", "c"}
	ses := computeSES(base, target)

	require.NotEmpty(t, ses)
	hasKeep := false
	for _, e := range ses {
		if e == editKeep {
			hasKeep = true
		}
	}
	assert.True(t, hasKeep)
}

// lcsLen computes the length of a longest common subsequence of a and b via
// the standard O(nm) dynamic program, independent of the diff package's own
// Myers implementation, so it can serve as a ground truth for the SES-length
// bound in spec §8 testable property 4.
func lcsLen(a, b []string) int {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}
	return dp[n][m]
}

// TestMyersMinimalityBound verifies spec §8 testable property 4: the sum of
// changed-range lengths (old + new) over every non-Equal op must equal the
// standard SES length bound len(base)+len(target)-2*|LCS(base,target)|,
// with |LCS| computed independently of the diff package under test.
func TestMyersMinimalityBound(t *testing.T) {
	cases := []struct {
		name   string
		base   []string
		target []string
	}{
		{"interleaved-replace", []string{"a", "b", "c", "d", "e"}, []string{"a", "x", "c", "y", "e"}},
		{"pure-insert", []string{"a", "c"}, []string{"a", "b", "c"}},
		{"pure-delete", []string{"a", "b", "c"}, []string{"a", "c"}},
		{"identical", []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"disjoint", []string{"a", "b"}, []string{"x", "y"}},
		{"empty-base", nil, []string{"a", "b"}},
		{"empty-target", []string{"a", "b"}, nil},
		{"reordered-overlap", []string{"one", "two", "three", "four"}, []string{"zero", "two", "four", "five"}},
	}

	d := NewMyers()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := d.Diff(tc.base, tc.target)

			changed := 0
			for _, op := range ops {
				if op.IsChange() {
					changed += (op.OldEnd - op.OldStart) + (op.NewEnd - op.NewStart)
				}
			}

			want := len(tc.base) + len(tc.target) - 2*lcsLen(tc.base, tc.target)
			assert.Equal(t, want, changed, "SES length must equal len(base)+len(target)-2*|LCS|")
		})
	}
}

func TestMyersCoalescesAdjacentEqualRuns(t *testing.T) {
	d := NewMyers()
	base := []string{"a", "b", "c"}
	target := []string{"a", "b", "c"}
	ops := d.Diff(base, target)

	equalRuns := 0
	for _, op := range ops {
		if op.Kind == OpEqual {
			equalRuns++
		}
	}
	assert.Equal(t, 1, equalRuns)
}
