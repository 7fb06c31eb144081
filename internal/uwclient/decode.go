package uwclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// flexFloat tolerates the vendor's habit of sending numerics as either JSON
// numbers or quoted strings
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func (f flexFloat) val() float64 { return float64(f) }

// flexTime accepts RFC3339, date-only, and unix-millisecond stamps
type flexTime struct {
	t time.Time
}

func (ft *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				ft.t = t
				return nil
			}
		}
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	ft.t = time.UnixMilli(ms).UTC()
	return nil
}

// envelope is the vendor's standard {"data": ...} wrapper. Some endpoints
// return the payload bare; unwrap falls back to the whole body.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func unwrap(raw json.RawMessage) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}

// premiumFields normalizes the three spellings the vendor uses for the same
// dollar figure across endpoint families
type premiumFields struct {
	Premium      flexFloat `json:"premium"`
	TotalPremium flexFloat `json:"total_premium"`
	CostBasis    flexFloat `json:"cost_basis"`
}

func (p premiumFields) dollars() float64 {
	switch {
	case p.Premium != 0:
		return p.Premium.val()
	case p.TotalPremium != 0:
		return p.TotalPremium.val()
	default:
		return p.CostBasis.val()
	}
}
