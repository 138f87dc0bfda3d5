package sensor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Placeholder is shown until the first successful fetch.
const Placeholder = "--"

// Value is a reading field as sent by the device: either a JSON number or a
// JSON string. The raw text is kept so it can be rendered unchanged.
type Value struct {
	raw    string
	number bool
}

func NumberValue(f float64) Value {
	return Value{raw: strconv.FormatFloat(f, 'f', -1, 64), number: true}
}

func StringValue(s string) Value {
	return Value{raw: s}
}

func (v Value) String() string { return v.raw }

// IsNumber reports whether the device sent the field as a JSON number.
func (v Value) IsNumber() bool { return v.number }

// IsZero reports whether the field was absent from the response.
func (v Value) IsZero() bool { return v.raw == "" && !v.number }

// Float parses the value as a float, regardless of how it was sent.
func (v Value) Float() (float64, bool) {
	f, err := strconv.ParseFloat(v.raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = Value{}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("reading value must be a string or a number, got %s", b)
		}
		*v = Value{raw: n.String(), number: true}
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.IsZero():
		return []byte("null"), nil
	case v.number:
		return []byte(v.raw), nil
	default:
		return json.Marshal(v.raw)
	}
}

// Reading is the tuple of values shown to the user.
type Reading struct {
	TemperatureC Value     `json:"temperature_c"`
	TemperatureF Value     `json:"temperature_f"`
	Humidity     Value     `json:"humidity"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// PlaceholderReading is the reading before anything was fetched.
func PlaceholderReading() Reading {
	return Reading{
		TemperatureC: StringValue(Placeholder),
		TemperatureF: StringValue(Placeholder),
		Humidity:     StringValue(Placeholder),
	}
}

// readingsResponse is the body of GET /readings. The device answers with
// either the three values or a single error field.
type readingsResponse struct {
	TemperatureC Value           `json:"temperature_c"`
	TemperatureF Value           `json:"temperature_f"`
	Humidity     Value           `json:"humidity"`
	Error        json.RawMessage `json:"error"`
}

func (r *readingsResponse) remoteError() (string, bool) {
	if len(r.Error) == 0 || bytes.Equal(r.Error, []byte("null")) {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(r.Error, &msg); err != nil {
		msg = string(r.Error)
	}
	return msg, true
}
