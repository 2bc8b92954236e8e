package sync

import "github.com/tidwall/gjson"

// Source wraps one raw ledger record. Paths passed to the accessors are
// gjson paths and may carry modifiers (e.g. "Country|@countryName").
type Source struct {
	data gjson.Result
}

// ParseSource wraps a raw JSON record.
func ParseSource(json string) Source {
	return Source{data: gjson.Parse(json)}
}

func (s Source) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

func (s Source) IntForPath(path string) (int64, bool) {
	result := s.data.Get(path)
	return result.Int(), result.Exists() && (result.Value() != nil)
}

func (s Source) Data() map[string]interface{} {
	if v := s.data.Value(); v != nil {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

// Supplier is one canonical business-partner record fetched from the ledger.
// It is a read-only snapshot; the sync never writes back to the ledger.
type Supplier struct {
	Source Source
}

// Code returns the stable ledger code, the primary natural key at the source.
func (s Supplier) Code() string {
	code, _ := s.Source.StringForPath("CardCode")
	return code
}

// MatchingKey returns the tax/registration identifier used to correlate the
// record with an existing board item, or "" if the record has none.
func (s Supplier) MatchingKey() string {
	key, _ := s.Source.StringForPath("FederalTaxID")
	return key
}

// HasMatchingKey reports whether the record is eligible for board sync.
func (s Supplier) HasMatchingKey() bool {
	return s.MatchingKey() != ""
}

// DisplayName returns the board item name, falling back to the ledger code
// for partners without a display name.
func (s Supplier) DisplayName() string {
	if name, ok := s.Source.StringForPath("CardName"); ok && name != "" {
		return name
	}
	return s.Code()
}
