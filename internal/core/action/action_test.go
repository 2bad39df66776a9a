package action

import (
	"strings"
	"testing"
)

const followupID = "6f1c2b8e-3a4d-5e6f-8a9b-0c1d2e3f4a5b"

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		wantErr  string
	}{
		{
			name:     "send message",
			raw:      `{"type":"send_message","to":["bob@corp.example"],"subject":"Hi","body":"Hello"}`,
			wantKind: KindSendMessage,
		},
		{
			name:     "channel post",
			raw:      `{"type":"channel_post","channel":"#general","text":"Morning all"}`,
			wantKind: KindChannelPost,
		},
		{
			name:     "create followup with due date",
			raw:      `{"type":"create_followup","title":"Chase invoice","due_at":"2026-03-12"}`,
			wantKind: KindCreateFollowup,
		},
		{
			name:     "complete followup",
			raw:      `{"type":"complete_followup","followup_id":"` + followupID + `"}`,
			wantKind: KindCompleteFollowup,
		},
		{
			name:     "defer followup",
			raw:      `{"type":"defer_followup","followup_id":"` + followupID + `","until":"2026-03-12T09:00:00Z"}`,
			wantKind: KindDeferFollowup,
		},
		{
			name:     "escalate",
			raw:      `{"type":"escalate","text":"Need a decision"}`,
			wantKind: KindEscalate,
		},
		{
			name:    "unknown field",
			raw:     `{"type":"noop","reason":"nothing to do","confidence":0.9}`,
			wantErr: "noop",
		},
		{
			name:    "type is not a string",
			raw:     `{"type":7}`,
			wantErr: "not a string",
		},
		{
			name:    "unknown type",
			raw:     `{"type":"delete_database"}`,
			wantErr: `unknown action type "delete_database"`,
		},
		{
			name:    "missing type",
			raw:     `{"body":"hello"}`,
			wantErr: "missing a type",
		},
		{
			name:    "wrong field type",
			raw:     `{"type":"send_message","to":"bob@corp.example","body":"x"}`,
			wantErr: "send_message",
		},
		{
			name:    "not an object",
			raw:     `["noop"]`,
			wantErr: "not an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode([]byte(tt.raw))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got action %+v", tt.wantErr, a)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want containing %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", a.Kind(), tt.wantKind)
			}
		})
	}
}

func TestDecode_LeavesStructuralChecksToValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"missing required body", `{"type":"send_message","to":["bob@corp.example"]}`, "body is required"},
		{"malformed followup id", `{"type":"complete_followup","followup_id":"FUP-1"}`, "malformed followup_id"},
		{"bad defer time", `{"type":"defer_followup","followup_id":"` + followupID + `","until":"next week"}`, "invalid time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			err = a.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEncode_IncludesDiscriminant(t *testing.T) {
	raw, err := Encode(ChannelPost{Channel: "#ops", Text: "deploy done"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(raw), `"type":"channel_post"`) {
		t.Errorf("encoded payload missing discriminant: %s", raw)
	}

	back, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode of encoded payload failed: %v", err)
	}
	post, ok := back.(ChannelPost)
	if !ok {
		t.Fatalf("decoded type = %T, want ChannelPost", back)
	}
	if post.Text != "deploy done" {
		t.Errorf("Text = %q, want %q", post.Text, "deploy done")
	}
}

func TestCost(t *testing.T) {
	want := map[Kind]int{
		KindSendMessage:      10,
		KindChannelPost:      5,
		KindCreateFollowup:   3,
		KindCompleteFollowup: 1,
		KindDeferFollowup:    1,
		KindEscalate:         5,
		KindNoop:             0,
	}
	for _, k := range Kinds {
		if got := Cost(k); got != want[k] {
			t.Errorf("Cost(%s) = %d, want %d", k, got, want[k])
		}
	}
}

func TestSendMessage_Recipients(t *testing.T) {
	m := SendMessage{To: []string{"a@corp.example"}, Cc: []string{"b@corp.example"}}
	got := m.Recipients()
	if len(got) != 2 || got[0] != "a@corp.example" || got[1] != "b@corp.example" {
		t.Errorf("Recipients() = %v", got)
	}
}
