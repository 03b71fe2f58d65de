package recognition

import (
	"testing"
	"time"
)

func TestIsSpeech(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"...", false},
		{" ?! ", false},
		{"hello", true},
		{"  VAT? ", true},
		{"7.5", true},
		{"ẹ káàbọ̀", true},
	}
	for _, tt := range tests {
		if got := IsSpeech(tt.text); got != tt.want {
			t.Errorf("IsSpeech(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Language != DefaultLanguage {
		t.Errorf("language: got %q", cfg.Language)
	}
	if cfg.SilenceTimeout != DefaultSilenceTimeout {
		t.Errorf("silence timeout: got %s", cfg.SilenceTimeout)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("sample rate: got %d", cfg.SampleRate)
	}

	custom := Config{Language: "yo", SilenceTimeout: 2 * time.Second, SampleRate: 48000}.withDefaults()
	if custom.Language != "yo" || custom.SilenceTimeout != 2*time.Second || custom.SampleRate != 48000 {
		t.Errorf("custom values overwritten: %+v", custom)
	}
}

func TestEventKindString(t *testing.T) {
	if EventPartial.String() != "partial" || EventFinal.String() != "final" || EventError.String() != "error" {
		t.Fatal("unexpected event kind names")
	}
}
