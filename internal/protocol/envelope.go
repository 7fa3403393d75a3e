package protocol

import "encoding/json"

// Signaling events exchanged over the relay connection.
const (
	EventID        = "id"
	EventDiscover  = "discover"
	EventPeers     = "peers"
	EventOffer     = "offer"
	EventAnswer    = "answer"
	EventCandidate = "ice-candidate"
)

// Envelope is one signaling message relayed between endpoints. The payload
// is opaque to the relay; only Event, Source and Target are routing state.
type Envelope struct {
	Event   string          `json:"event"`
	Source  string          `json:"source,omitempty"`
	Target  string          `json:"target,omitempty"`
	ID      string          `json:"id,omitempty"`
	Peers   []string        `json:"peers,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func BuildIDEnvelope(id string) Envelope {
	return Envelope{Event: EventID, ID: id}
}

func BuildPeersEnvelope(peers []string) Envelope {
	if peers == nil {
		peers = []string{}
	}
	return Envelope{Event: EventPeers, Peers: peers}
}

func BuildDiscoverEnvelope() Envelope {
	return Envelope{Event: EventDiscover}
}

func BuildOfferEnvelope(targetID string, payload json.RawMessage) Envelope {
	return Envelope{Event: EventOffer, Target: targetID, Payload: payload}
}

func BuildAnswerEnvelope(targetID string, payload json.RawMessage) Envelope {
	return Envelope{Event: EventAnswer, Target: targetID, Payload: payload}
}

func BuildCandidateEnvelope(targetID string, payload json.RawMessage) Envelope {
	return Envelope{Event: EventCandidate, Target: targetID, Payload: payload}
}
