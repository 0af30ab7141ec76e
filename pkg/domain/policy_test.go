package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

var testDefaults = RetentionPolicy{
	KeepRows:   100000,
	BatchSize:  10000,
	MaxBatches: 100,
	VacuumMode: VacuumAnalyze,
	IDColumn:   "id",
	Enabled:    true,
}

func TestTableRule_Merge_FallsBackToDefaults(t *testing.T) {
	target, err := TableRule{Name: "events"}.Merge(testDefaults)

	assert.Nil(t, err)
	assert.Equal(t, "events", target.Name)
	assert.Equal(t, testDefaults, target.Policy)
}

func TestTableRule_Merge_OverridesFieldByField(t *testing.T) {
	rule := TableRule{
		Name:       "metrics",
		KeepRows:   intPtr(500),
		VacuumMode: strPtr("full"),
		IDColumn:   strPtr("seq"),
		Enabled:    boolPtr(false),
	}

	target, err := rule.Merge(testDefaults)

	assert.Nil(t, err)
	assert.Equal(t, 500, target.Policy.KeepRows)
	assert.Equal(t, VacuumFull, target.Policy.VacuumMode)
	assert.Equal(t, "seq", target.Policy.IDColumn)
	assert.False(t, target.Policy.Enabled)

	// untouched fields keep the defaults
	assert.Equal(t, testDefaults.BatchSize, target.Policy.BatchSize)
	assert.Equal(t, testDefaults.MaxBatches, target.Policy.MaxBatches)
}

func TestTableRule_Merge_RejectsUnknownVacuumMode(t *testing.T) {
	rule := TableRule{Name: "events", VacuumMode: strPtr("aggressive")}

	_, err := rule.Merge(testDefaults)

	assert.NotNil(t, err)
}

func TestTableRule_Merge_RejectsMissingName(t *testing.T) {
	_, err := TableRule{}.Merge(testDefaults)

	assert.NotNil(t, err)
}

func TestParseVacuumMode(t *testing.T) {
	tests := []struct {
		input    string
		expected VacuumMode
		ok       bool
	}{
		{"none", VacuumNone, true},
		{"analyze", VacuumAnalyze, true},
		{"full", VacuumFull, true},
		{"", VacuumNone, true},
		{"whatever", VacuumNone, false},
	}

	for _, tt := range tests {
		mode, err := ParseVacuumMode(tt.input)

		if tt.ok {
			assert.Nil(t, err)
			assert.Equal(t, tt.expected, mode)
		} else {
			assert.NotNil(t, err)
		}
	}
}
