package api

import (
	"encoding/json"
	"strings"
	"testing"

	"speakline/timeline"
)

func TestWordSpeakerZeroSerialized(t *testing.T) {
	data, err := json.Marshal(Word{Text: "hello", Start: 1, End: 2, Speaker: 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"speaker":0`) {
		t.Errorf("speaker 0 dropped from attribution: %s", data)
	}
}

func TestWordSpeakerNoneSerialized(t *testing.T) {
	data, err := json.Marshal(Word{Text: "hm", Start: 0, End: 0.5, Speaker: timeline.SpeakerNone})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"speaker":null`) {
		t.Errorf("unassigned word should carry null speaker: %s", data)
	}
}

func TestWordRoundtrip(t *testing.T) {
	in := Word{Text: "ok", Start: 2.5, End: 3.0, Speaker: 4}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Word
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("roundtrip %+v -> %+v", in, out)
	}
}

func TestSpeakerAtReplyKeepsZeroTime(t *testing.T) {
	id := timeline.SpeakerID(0)
	data, err := json.Marshal(Message{Type: "speaker_at", Speaker: &id, Time: 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"time":0`) {
		t.Errorf("queried instant lost at timeline origin: %s", data)
	}
}
