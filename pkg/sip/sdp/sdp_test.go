package sdp

import (
	"errors"
	"strings"
	"testing"
)

func TestSession_OfferShape(t *testing.T) {
	body, err := Session{Name: "VoIPBin Call", IP: "10.0.0.20", Port: 6060}.Offer()
	if err != nil {
		t.Fatalf("Offer() error = %v", err)
	}
	out := string(body)

	for _, want := range []string{
		"v=0\r\n",
		"s=VoIPBin Call\r\n",
		"c=IN IP4 10.0.0.20\r\n",
		"t=0 0\r\n",
		"m=audio 6060 RTP/AVP 0 8\r\n",
		"a=rtpmap:0 PCMU/8000\r\n",
		"a=rtpmap:8 PCMA/8000\r\n",
		"a=sendrecv\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("offer missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "o=- ") || !strings.Contains(out, " IN IP4 10.0.0.20\r\n") {
		t.Errorf("origin line malformed:\n%s", out)
	}
}

func TestSession_OutputIsCRLF(t *testing.T) {
	body, err := Session{Name: "s", IP: "10.0.0.20", Port: 6060}.Answer()
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	for _, line := range strings.SplitAfter(string(body), "\n") {
		if line == "" {
			continue
		}
		if !strings.HasSuffix(line, "\r\n") {
			t.Fatalf("line %q does not end in CRLF", line)
		}
	}
}

func TestParse_OwnOutput(t *testing.T) {
	body, err := Session{Name: "s", IP: "10.0.0.20", Port: 7060}.Offer()
	if err != nil {
		t.Fatalf("Offer() error = %v", err)
	}
	remote, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if remote.IP != "10.0.0.20" || remote.Port != 7060 {
		t.Errorf("remote = %+v", remote)
	}
	if len(remote.Formats) != 2 || remote.Formats[0] != "0" || remote.Formats[1] != "8" {
		t.Errorf("formats = %v, want [0 8]", remote.Formats)
	}
}

// Peers in the sandbox send LF-only descriptions; they must parse.
func TestParse_BareLF(t *testing.T) {
	body := "v=0\n" +
		"o=- 5539219 5539219 IN IP4 10.89.0.10\n" +
		"s=Test Call\n" +
		"c=IN IP4 10.89.0.10\n" +
		"t=0 0\n" +
		"m=audio 10000 RTP/AVP 0 8\n" +
		"a=rtpmap:0 PCMU/8000\n" +
		"a=rtpmap:8 PCMA/8000\n" +
		"a=sendrecv\n"
	remote, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if remote.IP != "10.89.0.10" || remote.Port != 10000 {
		t.Errorf("remote = %+v", remote)
	}
}

func TestParse_MediaLevelConnectionWins(t *testing.T) {
	body := "v=0\r\n" +
		"o=- 1 1 IN IP4 192.0.2.1\r\n" +
		"s=-\r\n" +
		"c=IN IP4 192.0.2.1\r\n" +
		"t=0 0\r\n" +
		"m=audio 9000 RTP/AVP 0\r\n" +
		"c=IN IP4 198.51.100.2\r\n" +
		"a=rtpmap:0 PCMU/8000\r\n"
	remote, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if remote.IP != "198.51.100.2" {
		t.Errorf("IP = %s, want media-level 198.51.100.2", remote.IP)
	}
}

func TestParse_NoAudio(t *testing.T) {
	body := "v=0\r\n" +
		"o=- 1 1 IN IP4 192.0.2.1\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"m=video 9000 RTP/AVP 96\r\n"
	_, err := Parse([]byte(body))
	if !errors.Is(err, ErrNoAudio) {
		t.Errorf("error = %v, want ErrNoAudio", err)
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, err := Parse([]byte("not an sdp body")); err == nil {
		t.Error("expected parse error")
	}
}
