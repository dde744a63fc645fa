package main

import (
	"bytes"
	"testing"
)

func TestReplyWriterModes(t *testing.T) {
	for _, mode := range []StreamMode{StreamInstant, StreamSmooth, StreamTypewriter, StreamQuiet} {
		t.Run(string(mode), func(t *testing.T) {
			var out bytes.Buffer
			w := newReplyWriter(mode, &out, false)
			w.Write("return ")
			w.Write("get_weather()")
			if got := w.Finish(); got != "return get_weather()" {
				t.Fatalf("Finish() = %q", got)
			}
			if out.String() != "return get_weather()" {
				t.Fatalf("output %q", out.String())
			}
		})
	}
}

func TestReplyWriterQuietHoldsOutput(t *testing.T) {
	var out bytes.Buffer
	w := newReplyWriter(StreamQuiet, &out, false)
	w.Write("abc")
	if out.Len() != 0 {
		t.Fatalf("quiet mode wrote %q before Finish", out.String())
	}
	if w.Text() != "abc" {
		t.Fatalf("Text() = %q", w.Text())
	}
}

func TestReplyWriterRawOutput(t *testing.T) {
	var out bytes.Buffer
	w := newReplyWriter(StreamInstant, &out, true)
	w.Write("a\tb\n\x01")
	got := w.Finish()
	if got != "a\tb\n\x01" {
		t.Fatalf("accumulated %q", got)
	}
	if out.String() != `a\tb\n\u0001` {
		t.Fatalf("output %q", out.String())
	}
}

func TestParseStreamMode(t *testing.T) {
	if m, err := parseStreamMode(" Smooth "); err != nil || m != StreamSmooth {
		t.Fatalf("parseStreamMode = %q, %v", m, err)
	}
	if m, err := parseStreamMode(""); err != nil || m != StreamInstant {
		t.Fatalf("default mode = %q, %v", m, err)
	}
	if _, err := parseStreamMode("fast"); err == nil {
		t.Fatal("expected error")
	}
}
