package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copperpot/copperpot/internal/model"
)

func strPtr(s string) *string { return &s }

func TestMatches(t *testing.T) {
	tests := []struct {
		iban *string
		name string
		text string
		rule model.PatternRule
		want bool
	}{
		{
			name: "exact match case insensitive",
			rule: model.PatternRule{Pattern: "Albert Heijn", Kind: model.PatternExact, IsActive: true},
			text: "ALBERT HEIJN",
			want: true,
		},
		{
			name: "exact match rejects partial",
			rule: model.PatternRule{Pattern: "Albert Heijn", Kind: model.PatternExact, IsActive: true},
			text: "Albert Heijn 1402 AMS",
			want: false,
		},
		{
			name: "contains match",
			rule: model.PatternRule{Pattern: "heijn", Kind: model.PatternContains, IsActive: true},
			text: "Albert Heijn 1402 AMS",
			want: true,
		},
		{
			name: "contains no match",
			rule: model.PatternRule{Pattern: "jumbo", Kind: model.PatternContains, IsActive: true},
			text: "Albert Heijn 1402 AMS",
			want: false,
		},
		{
			name: "regex match is case insensitive",
			rule: model.PatternRule{Pattern: `^uber\s+(eats|trip)`, Kind: model.PatternRegex, IsActive: true},
			text: "UBER EATS AMSTERDAM",
			want: true,
		},
		{
			name: "regex non-matching returns false",
			rule: model.PatternRule{Pattern: `^uber\s+(eats|trip)`, Kind: model.PatternRegex, IsActive: true},
			text: "bolt ride",
			want: false,
		},
		{
			name: "uncompilable regex never throws, just no match",
			rule: model.PatternRule{Pattern: `([unclosed`, Kind: model.PatternRegex, IsActive: true},
			text: "anything",
			want: false,
		},
		{
			name: "iban equality case insensitive",
			rule: model.PatternRule{Pattern: "NL91ABNA0417164300", Kind: model.PatternIBAN, IsActive: true},
			text: "irrelevant",
			iban: strPtr("nl91abna0417164300"),
			want: true,
		},
		{
			name: "iban rule without iban argument",
			rule: model.PatternRule{Pattern: "NL91ABNA0417164300", Kind: model.PatternIBAN, IsActive: true},
			text: "irrelevant",
			iban: nil,
			want: false,
		},
		{
			name: "iban with spaces normalized before comparison",
			rule: model.PatternRule{Pattern: "NL91ABNA0417164300", Kind: model.PatternIBAN, IsActive: true},
			text: "irrelevant",
			iban: strPtr("NL91 ABNA 0417 1643 00"),
			want: true,
		},
		{
			name: "inactive rule never matches",
			rule: model.PatternRule{Pattern: "heijn", Kind: model.PatternContains, IsActive: false},
			text: "Albert Heijn 1402 AMS",
			want: false,
		},
		{
			name: "unknown kind never matches",
			rule: model.PatternRule{Pattern: "heijn", Kind: "glob", IsActive: true},
			text: "Albert Heijn",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(tt.rule, tt.text, tt.iban)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches_InactiveAllKinds(t *testing.T) {
	iban := "NL91ABNA0417164300"
	kinds := []model.PatternKind{model.PatternExact, model.PatternContains, model.PatternRegex, model.PatternIBAN}
	for _, kind := range kinds {
		rule := model.PatternRule{Pattern: "NL91ABNA0417164300", Kind: kind, IsActive: false}
		assert.False(t, Matches(rule, "NL91ABNA0417164300", &iban), "kind %s", kind)
	}
}

func TestMatcher_PrecompiledRegex(t *testing.T) {
	rules := []model.PatternRule{
		{ID: 1, Pattern: `coffee|espresso`, Kind: model.PatternRegex, IsActive: true},
		{ID: 2, Pattern: `([bad`, Kind: model.PatternRegex, IsActive: true},
	}
	m := NewMatcher(rules)

	assert.True(t, m.Matches(rules[0], "Blue Bottle Coffee", nil))
	assert.False(t, m.Matches(rules[1], "anything", nil))

	// Non-regex kinds fall through to the pure function.
	contains := model.PatternRule{ID: 3, Pattern: "bottle", Kind: model.PatternContains, IsActive: true}
	assert.True(t, m.Matches(contains, "Blue Bottle Coffee", nil))

	inactive := model.PatternRule{ID: 1, Pattern: `coffee`, Kind: model.PatternRegex, IsActive: false}
	assert.False(t, m.Matches(inactive, "coffee", nil))
}
