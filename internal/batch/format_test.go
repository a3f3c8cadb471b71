package batch

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func TestFormatRequests(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		got := FormatRequests(map[string]string{"id1": "sample text"}, "P", "m")

		want := []Request{{
			CustomID: "id1",
			Method:   "POST",
			URL:      "/v1/chat/completions",
			Body: RequestBody{
				Model: "m",
				Messages: []Message{
					{Role: "system", Content: "P"},
					{Role: "user", Content: "sample text"},
				},
			},
		}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("FormatRequests() = %+v, want %+v", got, want)
		}

		line, err := json.Marshal(got[0])
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		wantLine := `{"custom_id":"id1","method":"POST","url":"/v1/chat/completions","body":{"model":"m","messages":[{"role":"system","content":"P"},{"role":"user","content":"sample text"}]}}`
		if string(line) != wantLine {
			t.Errorf("unexpected wire form:\n got %s\nwant %s", line, wantLine)
		}
	})

	t.Run("one request per record", func(t *testing.T) {
		records := map[string]string{
			"d537a581-9d79-431a-99ba-95d0a9a3cc7a": "Herb . Univers . Osloënsis Imaged 2015",
			"46448ab7-4d2c-48ab-bdab-22b0af907551": "MGRS PL 029,604 Alt.:5 m",
			"empty":                                "",
			"garbled":                              "бемчос xe ' qole | qo",
		}
		got := FormatRequests(records, "prompt", "gpt-3.5-turbo")

		if len(got) != len(records) {
			t.Fatalf("expected %d requests, got %d", len(records), len(got))
		}
		seen := make(map[string]int)
		for _, req := range got {
			seen[req.CustomID]++
			text, ok := records[req.CustomID]
			if !ok {
				t.Errorf("unexpected custom_id %q", req.CustomID)
				continue
			}
			if req.Body.Messages[1].Content != text {
				t.Errorf("%s: user content altered: %q", req.CustomID, req.Body.Messages[1].Content)
			}
		}
		for id := range records {
			if seen[id] != 1 {
				t.Errorf("custom_id %q appears %d times", id, seen[id])
			}
		}
	})

	t.Run("deterministic payload", func(t *testing.T) {
		records := map[string]string{"c": "3", "a": "1", "b": "2", "d": "4"}

		first, err := EncodeJSONL(FormatRequests(records, "P", "m"))
		if err != nil {
			t.Fatalf("EncodeJSONL() error = %v", err)
		}
		for i := 0; i < 10; i++ {
			again, err := EncodeJSONL(FormatRequests(records, "P", "m"))
			if err != nil {
				t.Fatalf("EncodeJSONL() error = %v", err)
			}
			if !bytes.Equal(first, again) {
				t.Fatalf("payload changed between runs:\n%s\n%s", first, again)
			}
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := FormatRequests(nil, "P", "m"); len(got) != 0 {
			t.Errorf("expected no requests, got %d", len(got))
		}
	})
}
