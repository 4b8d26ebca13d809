package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_CurrencyStringRoundTrip(t *testing.T) {
	currencies := []Currency{
		NewNativeToken(Token_DOT),
		NewNativeToken(Token_IBTC),
		NewNativeToken(Token_KINT),
		NewForeignAsset(3),
		NewLendToken(2),
		NewLpToken(NewNativeToken(Token_DOT), NewNativeToken(Token_IBTC)),
		NewLpToken(NewForeignAsset(1), NewLendToken(4)),
		NewStableLpToken(0),
	}

	for _, c := range currencies {
		t.Run(c.String(), func(t *testing.T) {
			parsed, err := Parse(c.String())
			assert.Nil(t, err)
			assert.True(t, parsed.Equal(c))
			assert.Equal(t, c.Kind, parsed.Kind)
		})
	}
}

func Test_ParseRejectsMalformedStrings(t *testing.T) {
	for _, s := range []string{
		"",
		"BOGUS",
		"ForeignAsset(x)",
		"ForeignAsset(1",
		"LpToken(DOT)",
		"SomeVariant(1)",
	} {
		_, err := Parse(s)
		assert.NotNil(t, err, "expected error for %q", s)
	}
}

func Test_CanonicalOrder(t *testing.T) {
	// NativeToken ranks before every other variant.
	assert.True(t, NewNativeToken(Token_KINT).Less(NewForeignAsset(0)))
	assert.True(t, NewForeignAsset(99).Less(NewLendToken(0)))
	assert.True(t, NewLendToken(99).Less(NewLpToken(NewNativeToken(Token_DOT), NewNativeToken(Token_KSM))))
	assert.True(t, NewLpToken(NewNativeToken(Token_DOT), NewNativeToken(Token_KSM)).Less(NewStableLpToken(0)))

	// Within NativeToken the runtime token index decides, not the symbol.
	assert.True(t, NewNativeToken(Token_DOT).Less(NewNativeToken(Token_IBTC)))
	assert.True(t, NewNativeToken(Token_INTR).Less(NewNativeToken(Token_KSM)))
}

func Test_InferPoolIDSymmetry(t *testing.T) {
	pairs := [][2]Currency{
		{NewNativeToken(Token_DOT), NewNativeToken(Token_IBTC)},
		{NewNativeToken(Token_KSM), NewNativeToken(Token_KBTC)},
		{NewForeignAsset(3), NewNativeToken(Token_INTR)},
		{NewLendToken(1), NewForeignAsset(2)},
		{NewStableLpToken(0), NewNativeToken(Token_IBTC)},
		{NewLpToken(NewNativeToken(Token_DOT), NewNativeToken(Token_IBTC)), NewForeignAsset(7)},
	}

	for _, pair := range pairs {
		forward := InferPoolID(pair[0], pair[1])
		backward := InferPoolID(pair[1], pair[0])
		assert.Equal(t, forward, backward)
	}

	assert.Equal(t, "(DOT,IBTC)", InferPoolID(NewNativeToken(Token_IBTC), NewNativeToken(Token_DOT)))
	assert.Equal(t, "(INTR,ForeignAsset(3))", InferPoolID(NewForeignAsset(3), NewNativeToken(Token_INTR)))
}
