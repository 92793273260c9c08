package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"
)

const testBotToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

func samplePayload() *Payload {
	return &Payload{
		ID:        987654321,
		FirstName: "Alice",
		LastName:  "Liddell",
		Username:  "alice",
		PhotoURL:  "https://t.me/i/userpic/320/alice.jpg",
		AuthDate:  1700000000,
	}
}

func TestDataCheckString(t *testing.T) {
	p := samplePayload()
	want := "auth_date=1700000000\nfirst_name=Alice\nid=987654321\nlast_name=Liddell\nphoto_url=https://t.me/i/userpic/320/alice.jpg\nusername=alice"
	if got := DataCheckString(p); got != want {
		t.Errorf("DataCheckString() =\n%s\nwant\n%s", got, want)
	}
}

func TestDataCheckStringOmitsEmptyFields(t *testing.T) {
	p := &Payload{ID: 1, FirstName: "Bob", AuthDate: 10}
	want := "auth_date=10\nfirst_name=Bob\nid=1"
	if got := DataCheckString(p); got != want {
		t.Errorf("DataCheckString() = %q, want %q", got, want)
	}
}

func TestVerifyMatchesReferenceHMAC(t *testing.T) {
	p := samplePayload()

	// Reference computed independently of Sign
	key := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte("auth_date=1700000000\nfirst_name=Alice\nid=987654321\nlast_name=Liddell\nphoto_url=https://t.me/i/userpic/320/alice.jpg\nusername=alice"))
	p.Hash = hex.EncodeToString(mac.Sum(nil))

	if Sign(p, testBotToken) != p.Hash {
		t.Fatalf("Sign does not match the reference HMAC")
	}
	if !Verify(p, testBotToken) {
		t.Errorf("Verify rejected a valid signature")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Payload)
	}{
		{"first name", func(p *Payload) { p.FirstName = "Alicf" }},
		{"id", func(p *Payload) { p.ID++ }},
		{"auth date", func(p *Payload) { p.AuthDate++ }},
		{"username", func(p *Payload) { p.Username = "mallory" }},
		{"dropped optional field", func(p *Payload) { p.PhotoURL = "" }},
		{"hash byte", func(p *Payload) {
			b := []byte(p.Hash)
			if b[0] == 'a' {
				b[0] = 'b'
			} else {
				b[0] = 'a'
			}
			p.Hash = string(b)
		}},
		{"hash not hex", func(p *Payload) { p.Hash = "zz" }},
		{"empty hash", func(p *Payload) { p.Hash = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePayload()
			p.Hash = Sign(p, testBotToken)
			tt.mutate(p)
			if Verify(p, testBotToken) {
				t.Errorf("Verify accepted a tampered payload")
			}
		})
	}
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	p := samplePayload()
	p.Hash = Sign(p, testBotToken)
	if Verify(p, "other:token") {
		t.Errorf("Verify accepted a signature made with another bot token")
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Unix(1700100000, 0)
	tests := []struct {
		age  time.Duration
		want bool
	}{
		{0, false},
		{23 * time.Hour, false},
		{24 * time.Hour, false},
		{24*time.Hour + time.Second, true},
		{25 * time.Hour, true},
	}
	for _, tt := range tests {
		if got := IsExpired(now.Add(-tt.age), now); got != tt.want {
			t.Errorf("IsExpired(age=%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestPayloadAcceptsStringAndNumberIDs(t *testing.T) {
	inputs := []string{
		`{"id":42,"first_name":"A","auth_date":1700000000,"hash":"00"}`,
		`{"id":"42","first_name":"A","auth_date":"1700000000","hash":"00"}`,
	}
	for _, in := range inputs {
		var p Payload
		if err := json.Unmarshal([]byte(in), &p); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", in, err)
		}
		if p.ID != 42 || p.AuthDate != 1700000000 {
			t.Errorf("Unmarshal(%s) = %+v", in, p)
		}
	}

	var p Payload
	if err := json.Unmarshal([]byte(`{"id":"abc"}`), &p); err == nil {
		t.Errorf("expected error for non-numeric id")
	}
}
