package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeContinue},
		{"validation complete", &ValidationComplete{Step: "001-setup"}, OutcomeSignal},
		{"step help", &StepHelp{Step: "001-setup"}, OutcomeSignal},
		{"config validation error", &ConfigValidationError{Step: "s", Path: "p", Msg: "m"}, OutcomeContinue},
		{"config error", &ConfigError{Msg: "bad shape"}, OutcomeContinue},
		{"http error", &HTTPError{URL: "http://x", Msg: "boom"}, OutcomeWarn},
		{"local file error", &LocalFileError{Path: "/x", Op: "rename", Err: errors.New("eek")}, OutcomeFatal},
		{"safe mode error", &SafeModeError{Step: "s", Msg: "refuse"}, OutcomeFatal},
		{"plain error", errors.New("generic"), OutcomeContinue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestIsSignal(t *testing.T) {
	assert.True(t, IsSignal(&ValidationComplete{Step: "s"}))
	assert.True(t, IsSignal(&StepHelp{Step: "s"}))
	assert.False(t, IsSignal(&ConfigError{Msg: "m"}))
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("inner")
	he := &HTTPError{URL: "u", Msg: "m", Err: inner}
	assert.ErrorIs(t, he, inner)

	lfe := &LocalFileError{Path: "p", Op: "write", Err: inner}
	assert.ErrorIs(t, lfe, inner)
}
