package message

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    *URI
		wantErr bool
	}{
		{
			name: "user and host",
			uri:  "sip:2001@test.registrar.voipbin.net",
			want: &URI{Scheme: "sip", User: "2001", Host: "test.registrar.voipbin.net"},
		},
		{
			name: "user host and port",
			uri:  "sip:2001@10.0.0.20:5060",
			want: &URI{Scheme: "sip", User: "2001", Host: "10.0.0.20", Port: 5060},
		},
		{
			name: "host only",
			uri:  "sip:test.registrar.voipbin.net",
			want: &URI{Scheme: "sip", Host: "test.registrar.voipbin.net"},
		},
		{
			name: "params keep order",
			uri:  "sip:2001@h;transport=udp;lr",
			want: &URI{
				Scheme: "sip", User: "2001", Host: "h",
				Params: []URIParam{{Key: "transport", Value: "udp"}, {Key: "lr"}},
			},
		},
		{
			name: "sips scheme",
			uri:  "sips:2001@h:5061",
			want: &URI{Scheme: "sips", User: "2001", Host: "h", Port: 5061},
		},
		{
			name: "ipv6 host with port",
			uri:  "sip:2001@[2001:db8::10]:5060",
			want: &URI{Scheme: "sip", User: "2001", Host: "[2001:db8::10]", Port: 5060},
		},
		{name: "missing scheme", uri: "2001@h", wantErr: true},
		{name: "wrong scheme", uri: "tel:+15551234567", wantErr: true},
		{name: "empty host", uri: "sip:2001@", wantErr: true},
		{name: "bad port", uri: "sip:2001@h:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURI) {
					t.Errorf("error = %v, want ErrInvalidURI", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURI(%q) error = %v", tt.uri, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseURI(%q) = %+v, want %+v", tt.uri, got, tt.want)
			}
			if got.String() != tt.uri {
				t.Errorf("String() = %q, want %q", got.String(), tt.uri)
			}
		})
	}
}

func TestURI_HostPort(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"sip:2001@10.0.0.20:5080", "10.0.0.20:5080"},
		{"sip:2001@10.0.0.20", "10.0.0.20:5060"},
		{"sips:2001@h", "h:5061"},
	}
	for _, tt := range tests {
		u, err := ParseURI(tt.uri)
		if err != nil {
			t.Fatalf("ParseURI(%q) error = %v", tt.uri, err)
		}
		if got := u.HostPort(); got != tt.want {
			t.Errorf("HostPort(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestURI_Clone(t *testing.T) {
	u, err := ParseURI("sip:2001@h;transport=udp")
	if err != nil {
		t.Fatal(err)
	}
	clone := u.Clone()
	clone.Params[0].Value = "tcp"
	if u.Params[0].Value != "udp" {
		t.Error("Clone must not share param storage")
	}
}
