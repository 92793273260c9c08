package utils

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseGenres(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Action, Comedy ,DRAMA", []string{"action", "comedy", "drama"}},
		{" , ,", nil},
		{"Slice of Life", []string{"slice of life"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := ParseGenres(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseGenres(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn")
	if logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %v", logger.GetLevel())
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output %q", buf.String())
	}

	if NewLoggerTo(&buf, "bogus").GetLevel() != logrus.InfoLevel {
		t.Errorf("invalid level should fall back to info")
	}
}
