package pipeline

import "encoding/json"

// Packet is one decoded ADS-B position report from the stdin feed.
// Callsign, when present, is used as the track key instead of ID.
type Packet struct {
	ID       string  `json:"id"`
	Callsign string  `json:"callsign,omitempty"`
	PX       float64 `json:"px"`
	PY       float64 `json:"py"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	Alt      float64 `json:"alt"`
}

// Key returns the identifier used for admission, track storage, and the
// blacklist: the callsign if present, otherwise the raw id.
func (p Packet) Key() string {
	if p.Callsign != "" {
		return p.Callsign
	}
	return p.ID
}

// ParsePacket decodes one line of stdin JSON. Malformed lines (parse
// failure or a missing id) are the caller's responsibility to drop
// silently.
func ParsePacket(line []byte) (Packet, error) {
	var p Packet
	if err := json.Unmarshal(line, &p); err != nil {
		return Packet{}, err
	}
	if p.ID == "" && p.Callsign == "" {
		return Packet{}, errMissingID
	}
	return p, nil
}

var errMissingID = parseError("packet has neither id nor callsign")

type parseError string

func (e parseError) Error() string { return string(e) }
