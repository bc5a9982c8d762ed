package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextValidationState(t *testing.T) {
	on, off := true, false

	cases := []struct {
		name    string
		current ValidationState
		edit    ValidationEdit
		want    ValidationState
	}{
		{
			name:    "content change reclassifies",
			current: Auto(ValidationChecked),
			edit:    ValidationEdit{ContentChanged: true, Verdict: ValidationBlocked},
			want:    Auto(ValidationBlocked),
		},
		{
			name:    "unchanged content keeps auto state",
			current: Auto(ValidationChecked),
			edit:    ValidationEdit{Verdict: ValidationBlocked},
			want:    Auto(ValidationChecked),
		},
		{
			name:    "pending is always classified",
			current: Auto(ValidationPending),
			edit:    ValidationEdit{Verdict: ValidationChecked},
			want:    Auto(ValidationChecked),
		},
		{
			name:    "missing verdict needs review",
			current: Auto(ValidationChecked),
			edit:    ValidationEdit{ContentChanged: true},
			want:    Auto(ValidationNeedsReview),
		},
		{
			name:    "manual override sticks across content edits",
			current: ManualOverride(ValidationChecked),
			edit:    ValidationEdit{ContentChanged: true, Verdict: ValidationBlocked},
			want:    ManualOverride(ValidationChecked),
		},
		{
			name:    "reviewer sets status under override",
			current: Auto(ValidationNeedsReview),
			edit:    ValidationEdit{SetManual: &on, Status: ValidationChecked},
			want:    ManualOverride(ValidationChecked),
		},
		{
			name:    "clearing override reclassifies",
			current: ManualOverride(ValidationChecked),
			edit:    ValidationEdit{SetManual: &off, Verdict: ValidationBlocked},
			want:    Auto(ValidationBlocked),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextValidationState(tc.current, tc.edit))
		})
	}
}

func TestNeedsClassification(t *testing.T) {
	on := true
	assert.False(t, NeedsClassification(ManualOverride(ValidationChecked), ValidationEdit{ContentChanged: true}))
	assert.False(t, NeedsClassification(Auto(ValidationChecked), ValidationEdit{ContentChanged: true, SetManual: &on}))
	assert.True(t, NeedsClassification(Auto(ValidationChecked), ValidationEdit{ContentChanged: true}))
	assert.False(t, NeedsClassification(Auto(ValidationChecked), ValidationEdit{}))
}

func TestPurchasable(t *testing.T) {
	p := &Product{Status: StatusActive, Validation: Auto(ValidationChecked)}
	assert.True(t, p.Purchasable())

	p.Validation = Auto(ValidationNeedsReview)
	assert.False(t, p.Purchasable())

	p.Validation = ManualOverride(ValidationChecked)
	p.Status = StatusDraft
	assert.False(t, p.Purchasable())

	var nilProduct *Product
	assert.False(t, nilProduct.Purchasable())
}
