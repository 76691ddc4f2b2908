package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copperpot/copperpot/internal/common"
)

func TestFormatExitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "user error shows only the user message",
			err:  common.NewUserError("invalid pattern rule", common.ErrEmptyPattern),
			want: "invalid pattern rule",
		},
		{
			name: "business rule failure is styled",
			err:  fmt.Errorf("confirm: %w", common.ErrDuplicateMatch),
			want: common.ErrDuplicateMatch.Error(),
		},
		{
			name: "validation failure is styled",
			err:  fmt.Errorf("rule 3: %w", common.ErrInvalidRegex),
			want: common.ErrInvalidRegex.Error(),
		},
		{
			name: "unexpected errors print as-is",
			err:  errors.New("database locked"),
			want: "database locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, formatExitError(tt.err), tt.want)
		})
	}
}

func TestFormatExitError_UserErrorHidesCause(t *testing.T) {
	err := common.NewUserError("invalid pattern rule", common.ErrEmptyPattern)
	assert.NotContains(t, formatExitError(err), common.ErrEmptyPattern.Error())
}
