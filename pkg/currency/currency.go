package currency

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind enumerates the currency variants supported by the generalized token
// runtime. The declaration order is the canonical rank used when sorting
// currencies, e.g. for pool id inference.
type Kind int

const (
	KindNativeToken Kind = iota
	KindForeignAsset
	KindLendToken
	KindLpToken
	KindStableLpToken
)

func (k Kind) String() string {
	switch k {
	case KindNativeToken:
		return "NativeToken"
	case KindForeignAsset:
		return "ForeignAsset"
	case KindLendToken:
		return "LendToken"
	case KindLpToken:
		return "LpToken"
	case KindStableLpToken:
		return "StableLpToken"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a native token symbol.
type Token string

const (
	Token_DOT  Token = "DOT"
	Token_IBTC Token = "IBTC"
	Token_INTR Token = "INTR"
	Token_KSM  Token = "KSM"
	Token_KBTC Token = "KBTC"
	Token_KINT Token = "KINT"
)

// tokenIndexes mirrors the runtime's token registry indexes. Used for the
// type-specific ordering within the NativeToken variant.
var tokenIndexes = map[Token]uint32{
	Token_DOT:  0,
	Token_IBTC: 1,
	Token_INTR: 2,
	Token_KSM:  10,
	Token_KBTC: 11,
	Token_KINT: 12,
}

func IsKnownToken(t Token) bool {
	_, ok := tokenIndexes[t]
	return ok
}

// Currency is a tagged union over the five supported currency variants.
// Exactly one payload field is meaningful, selected by Kind:
//   - KindNativeToken:   Token
//   - KindForeignAsset:  AssetID
//   - KindLendToken:     LendTokenID
//   - KindLpToken:       LpBase / LpQuote
//   - KindStableLpToken: PoolID
type Currency struct {
	Kind Kind

	Token       Token
	AssetID     uint32
	LendTokenID uint32
	LpBase      *Currency
	LpQuote     *Currency
	PoolID      uint32
}

func NewNativeToken(t Token) Currency {
	return Currency{Kind: KindNativeToken, Token: t}
}

func NewForeignAsset(id uint32) Currency {
	return Currency{Kind: KindForeignAsset, AssetID: id}
}

func NewLendToken(id uint32) Currency {
	return Currency{Kind: KindLendToken, LendTokenID: id}
}

func NewLpToken(base Currency, quote Currency) Currency {
	return Currency{Kind: KindLpToken, LpBase: &base, LpQuote: &quote}
}

func NewStableLpToken(poolID uint32) Currency {
	return Currency{Kind: KindStableLpToken, PoolID: poolID}
}

// String renders the canonical form used as a dimension key everywhere
// downstream. Parse inverts it.
func (c Currency) String() string {
	switch c.Kind {
	case KindNativeToken:
		return string(c.Token)
	case KindForeignAsset:
		return fmt.Sprintf("ForeignAsset(%d)", c.AssetID)
	case KindLendToken:
		return fmt.Sprintf("LendToken(%d)", c.LendTokenID)
	case KindLpToken:
		return fmt.Sprintf("LpToken(%s,%s)", c.LpBase.String(), c.LpQuote.String())
	case KindStableLpToken:
		return fmt.Sprintf("StableLpToken(%d)", c.PoolID)
	}
	return ""
}

// index returns the type-specific ordering value within the same Kind.
// LpToken has no scalar index; comparisons fall back to the string form.
func (c Currency) index() uint32 {
	switch c.Kind {
	case KindNativeToken:
		return tokenIndexes[c.Token]
	case KindForeignAsset:
		return c.AssetID
	case KindLendToken:
		return c.LendTokenID
	case KindStableLpToken:
		return c.PoolID
	}
	return 0
}

// Less imposes the canonical total order: first by Kind rank, then by the
// type-specific index, then by string form as the final tiebreak.
func (c Currency) Less(other Currency) bool {
	if c.Kind != other.Kind {
		return c.Kind < other.Kind
	}
	if c.Kind == KindLpToken {
		return c.String() < other.String()
	}
	if c.index() != other.index() {
		return c.index() < other.index()
	}
	return c.String() < other.String()
}

func (c Currency) Equal(other Currency) bool {
	return c.String() == other.String()
}

// Parse decodes the canonical string form produced by String.
func Parse(s string) (Currency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Currency{}, errors.New("empty currency string")
	}

	open := strings.Index(s, "(")
	if open == -1 {
		t := Token(s)
		if !IsKnownToken(t) {
			return Currency{}, errors.Errorf("unknown token symbol %q", s)
		}
		return NewNativeToken(t), nil
	}
	if !strings.HasSuffix(s, ")") {
		return Currency{}, errors.Errorf("malformed currency string %q", s)
	}
	variant := s[:open]
	inner := s[open+1 : len(s)-1]

	parseIndex := func() (uint32, error) {
		v, err := strconv.ParseUint(inner, 10, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "malformed currency index in %q", s)
		}
		return uint32(v), nil
	}

	switch variant {
	case "ForeignAsset":
		id, err := parseIndex()
		if err != nil {
			return Currency{}, err
		}
		return NewForeignAsset(id), nil
	case "LendToken":
		id, err := parseIndex()
		if err != nil {
			return Currency{}, err
		}
		return NewLendToken(id), nil
	case "StableLpToken":
		id, err := parseIndex()
		if err != nil {
			return Currency{}, err
		}
		return NewStableLpToken(id), nil
	case "LpToken":
		base, quote, err := splitLpPair(inner)
		if err != nil {
			return Currency{}, errors.Wrapf(err, "malformed LpToken string %q", s)
		}
		b, err := Parse(base)
		if err != nil {
			return Currency{}, err
		}
		q, err := Parse(quote)
		if err != nil {
			return Currency{}, err
		}
		return NewLpToken(b, q), nil
	}
	return Currency{}, errors.Errorf("unknown currency variant %q", variant)
}

// splitLpPair splits "A,B" on the top-level comma, tolerating nested
// parentheses in either side.
func splitLpPair(s string) (string, string, error) {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return s[:i], s[i+1:], nil
			}
		}
	}
	return "", "", errors.New("no top-level separator")
}
