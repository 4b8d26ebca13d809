// Package decoder turns raw chain events into typed records. Every event
// name maps to an ordered list of layouts; the block's runtime spec version
// selects the first layout whose predicate matches. A spec version no layout
// claims is a recoverable condition, not a crash: callers decide whether to
// skip the event or abort the batch.
package decoder

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/interlay/interbtc-indexer/internal/config"
	"github.com/interlay/interbtc-indexer/pkg/ss58"
	"github.com/interlay/interbtc-indexer/pkg/storage"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnknownEventVersion is returned when no layout for an event matches the
// block's spec version. Call sites log a warning and skip the event.
var ErrUnknownEventVersion = errors.New("no known layout for event at spec version")

// layout pairs a spec-version predicate with a decode function. Layouts for
// one event are evaluated in registration order, newest first.
type layout struct {
	matches func(specVersion uint32) bool
	decode  func(payload []byte) (interface{}, error)
}

type Decoder struct {
	logger       *zap.Logger
	globalConfig *config.Config
	layouts      map[string][]layout
}

func NewDecoder(l *zap.Logger, cfg *config.Config) *Decoder {
	d := &Decoder{
		logger:       l,
		globalConfig: cfg,
	}
	d.layouts = d.buildLayouts()
	return d
}

// isGeneralized reports whether the spec version uses the generalized
// (post-upgrade) currency encoding.
func (d *Decoder) isGeneralized(specVersion uint32) bool {
	return specVersion >= d.globalConfig.Chain.FirstGeneralizedCurrencySpecVersion
}

func (d *Decoder) isLegacy(specVersion uint32) bool {
	return !d.isGeneralized(specVersion)
}

func anyVersion(_ uint32) bool {
	return true
}

// Decode resolves the typed record for an event at the given runtime spec
// version. Unknown names and unmatched versions both surface as
// ErrUnknownEventVersion so the caller has a single recoverable path.
func (d *Decoder) Decode(event *storage.Event, specVersion uint32) (interface{}, error) {
	layouts, ok := d.layouts[event.Name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEventVersion, "event %s has no registered layouts", event.Name)
	}

	for _, l := range layouts {
		if l.matches(specVersion) {
			decoded, err := l.decode([]byte(event.Payload))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to decode %s (%s)", event.Name, event.EventID)
			}
			return decoded, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownEventVersion, "event %s at spec version %d", event.Name, specVersion)
}

// HasLayoutsFor reports whether the decoder knows the event name at all,
// regardless of version.
func (d *Decoder) HasLayoutsFor(eventName string) bool {
	_, ok := d.layouts[eventName]
	return ok
}

// taggedValue is the archive's JSON rendering of a SCALE enum variant.
type taggedValue struct {
	Kind  string          `json:"__kind"`
	Value json.RawMessage `json:"value"`
}

func parsePayload(payload []byte, dest interface{}) error {
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	return dec.Decode(dest)
}

// decodeAmount accepts both JSON number and decimal-string renderings of
// balances; u128 values exceed float64 so the archive quotes large ones.
func decodeAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, errors.New("missing amount")
	}
	s = strings.Trim(s, `"`)
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "malformed amount %q", s)
	}
	return value, nil
}

func decodeUint64(raw json.RawMessage) (uint64, error) {
	value, err := decodeAmount(raw)
	if err != nil {
		return 0, err
	}
	if !value.IsInteger() || value.IsNegative() {
		return 0, errors.Errorf("expected unsigned integer, got %s", value)
	}
	return uint64(value.IntPart()), nil
}

func decodeHexBytes(raw json.RawMessage) ([]byte, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed hex string %q", s)
	}
	return b, nil
}

// decodeAccount converts a raw 32-byte account id into its SS58 form using
// the configured chain prefix.
func (d *Decoder) decodeAccount(raw json.RawMessage) (string, error) {
	pubkey, err := decodeHexBytes(raw)
	if err != nil {
		return "", err
	}
	address, err := ss58.Encode(pubkey, d.globalConfig.Chain.Ss58Prefix)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode account id")
	}
	return address, nil
}

func decodeHash(raw json.RawMessage) (string, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if !strings.HasPrefix(s, "0x") {
		return "", errors.Errorf("malformed hash %q", s)
	}
	return s, nil
}
