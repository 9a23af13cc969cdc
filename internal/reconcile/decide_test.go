package reconcile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideTruthTable(t *testing.T) {
	cases := []struct {
		hasLocal, hasCloud, migrated bool
		want                         Action
	}{
		{false, false, false, ActionNoop},
		{true, false, false, ActionPromptUpload},
		{false, true, false, ActionPull},
		{true, true, false, ActionPromptMerge},
		{false, false, true, ActionNoop},
		{true, false, true, ActionNoop},
		{false, true, true, ActionPull},
		{true, true, true, ActionNoop},
	}
	for _, tc := range cases {
		name := fmt.Sprintf("local=%v/cloud=%v/migrated=%v", tc.hasLocal, tc.hasCloud, tc.migrated)
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.hasLocal, tc.hasCloud, tc.migrated))
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "noop", ActionNoop.String())
	assert.Equal(t, "pull", ActionPull.String())
	assert.Equal(t, "prompt-upload", ActionPromptUpload.String())
	assert.Equal(t, "prompt-merge", ActionPromptMerge.String())
}
