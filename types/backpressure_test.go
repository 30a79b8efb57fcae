package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBackpressurePolicy_Resolve(t *testing.T) {
	tests := []struct {
		name   string
		policy BackpressurePolicy
		newer  bool
		want   ActionTaken
	}{
		{"drop ancient keeps newer arrival", BackpressureDropAncient, true, ActionReplaceObsolete},
		{"drop ancient drops older arrival", BackpressureDropAncient, false, ActionDropObsolete},
		{"drop recent drops newer arrival", BackpressureDropRecent, true, ActionDropObsolete},
		{"drop recent keeps older arrival", BackpressureDropRecent, false, ActionReplaceObsolete},
		{"wait on newer", BackpressureWait, true, ActionWait},
		{"wait on older", BackpressureWait, false, ActionWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.policy.Resolve(tt.newer))
			// Pure: asking twice yields the same answer.
			require.Equal(t, tt.policy.Resolve(tt.newer), tt.policy.Resolve(tt.newer))
		})
	}
}

func TestBackpressurePolicy_Validate(t *testing.T) {
	require.NoError(t, BackpressureDropAncient.Validate())
	require.NoError(t, BackpressureDropRecent.Validate())
	require.NoError(t, BackpressureWait.Validate())
	require.ErrorIs(t, BackpressureUnset.Validate(), ErrInvalidBackpressurePolicy)
	require.ErrorIs(t, BackpressurePolicy(17).Validate(), ErrInvalidBackpressurePolicy)
}

func TestParseBackpressurePolicy(t *testing.T) {
	valid := map[string]BackpressurePolicy{
		"drop-ancient": BackpressureDropAncient,
		"DropAncient":  BackpressureDropAncient,
		"drop_recent":  BackpressureDropRecent,
		" DROP-RECENT": BackpressureDropRecent,
		"wait":         BackpressureWait,
		"Wait":         BackpressureWait,
	}
	for in, want := range valid {
		got, err := ParseBackpressurePolicy(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseBackpressurePolicy("newest-wins")
	require.ErrorIs(t, err, ErrInvalidBackpressurePolicy)

	_, err = ParseBackpressurePolicy("")
	require.ErrorIs(t, err, ErrInvalidBackpressurePolicy)
}

func TestBackpressurePolicy_YAML(t *testing.T) {
	t.Run("decodes by name", func(t *testing.T) {
		var doc struct {
			Policy BackpressurePolicy `yaml:"policy"`
		}
		require.NoError(t, yaml.Unmarshal([]byte("policy: drop-recent\n"), &doc))
		require.Equal(t, BackpressureDropRecent, doc.Policy)
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		var doc struct {
			Policy BackpressurePolicy `yaml:"policy"`
		}
		err := yaml.Unmarshal([]byte("policy: sometimes\n"), &doc)
		require.ErrorIs(t, err, ErrInvalidBackpressurePolicy)
	})

	t.Run("encodes by name", func(t *testing.T) {
		out, err := yaml.Marshal(map[string]BackpressurePolicy{"policy": BackpressureWait})
		require.NoError(t, err)
		require.Equal(t, "policy: wait\n", string(out))
	})
}
