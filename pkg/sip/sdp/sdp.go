// Package sdp builds and reads the minimal audio session descriptions
// carried in INVITE and 200 bodies: one m=audio line offering PCMU and
// PCMA. Media itself is never set up; the description only has to satisfy
// the proxy's offer/answer checks and name an address worth logging.
package sdp

import (
	"errors"
	"fmt"
	"math/rand/v2"

	pionsdp "github.com/pion/sdp/v3"
)

// ErrNoAudio reports a session description without an audio section.
var ErrNoAudio = errors.New("no audio media in session description")

// Session is the local audio endpoint advertised in an offer or answer.
type Session struct {
	Name string // s= line
	IP   string // origin and connection address
	Port int    // m=audio port
}

// Offer renders the session as an SDP offer. Output always uses CRLF line
// endings regardless of what the peer sent.
func (s Session) Offer() ([]byte, error) {
	return s.describe()
}

// Answer renders the session as an SDP answer. The answer mirrors the
// offer's shape: both sides speak PCMU/PCMA sendrecv.
func (s Session) Answer() ([]byte, error) {
	return s.describe()
}

func (s Session) describe() ([]byte, error) {
	// Same value for id and version: the description is never renegotiated
	// within a dialog.
	sessionID := uint64(rand.IntN(9000000) + 1000000)

	desc := &pionsdp.SessionDescription{
		Version: 0,
		Origin: pionsdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: sessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: s.IP,
		},
		SessionName: pionsdp.SessionName(s.Name),
		ConnectionInformation: &pionsdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &pionsdp.Address{Address: s.IP},
		},
		TimeDescriptions: []pionsdp.TimeDescription{
			{Timing: pionsdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*pionsdp.MediaDescription{
			{
				MediaName: pionsdp.MediaName{
					Media:   "audio",
					Port:    pionsdp.RangedPort{Value: s.Port},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{"0", "8"},
				},
				Attributes: []pionsdp.Attribute{
					pionsdp.NewAttribute("rtpmap", "0 PCMU/8000"),
					pionsdp.NewAttribute("rtpmap", "8 PCMA/8000"),
					pionsdp.NewPropertyAttribute("sendrecv"),
				},
			},
		},
	}

	body, err := desc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal session description: %w", err)
	}
	return body, nil
}

// RemoteMedia is the peer's audio endpoint taken from its session
// description.
type RemoteMedia struct {
	IP      string
	Port    int
	Formats []string
}

// Parse extracts the audio endpoint from a session description. A
// media-level connection line overrides the session-level one. LF-only
// bodies are accepted.
func Parse(body []byte) (*RemoteMedia, error) {
	var desc pionsdp.SessionDescription
	if err := desc.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("parse session description: %w", err)
	}

	for _, media := range desc.MediaDescriptions {
		if media.MediaName.Media != "audio" {
			continue
		}
		remote := &RemoteMedia{
			Port:    media.MediaName.Port.Value,
			Formats: media.MediaName.Formats,
		}
		if ci := media.ConnectionInformation; ci != nil && ci.Address != nil {
			remote.IP = ci.Address.Address
		} else if ci := desc.ConnectionInformation; ci != nil && ci.Address != nil {
			remote.IP = ci.Address.Address
		}
		return remote, nil
	}
	return nil, ErrNoAudio
}
