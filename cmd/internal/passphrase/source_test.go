package passphrase

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testSource(env map[string]string, terminal bool, answer string) *Source {
	s := NewSource("AVISOS_TEST_PASS", "shipping signer")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func() bool { return terminal }
	s.read = func() ([]byte, error) {
		if answer == "!" {
			return nil, errors.New("tty closed")
		}
		return []byte(answer), nil
	}
	s.prompt = &bytes.Buffer{}
	return s
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s := testSource(map[string]string{"AVISOS_TEST_PASS": "hunter2"}, true, "ignored")
	got, err := s.Get()
	if err != nil || got != "hunter2" {
		t.Fatalf("expected env passphrase, got %q err=%v", got, err)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	s := testSource(map[string]string{"AVISOS_TEST_PASS": "  "}, true, "ignored")
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "set but empty") {
		t.Fatalf("expected blank env error, got %v", err)
	}
}

func TestSourcePromptsOnTerminal(t *testing.T) {
	s := testSource(nil, true, "typed")
	got, err := s.Get()
	if err != nil || got != "typed" {
		t.Fatalf("expected prompted passphrase, got %q err=%v", got, err)
	}
	if !strings.Contains(s.prompt.(*bytes.Buffer).String(), "shipping signer passphrase") {
		t.Fatalf("prompt should name the keystore")
	}
	s.read = func() ([]byte, error) { return []byte("second"), nil }
	if again, _ := s.Get(); again != "typed" {
		t.Fatalf("expected cached passphrase, got %q", again)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	if _, err := testSource(nil, false, "").Get(); err == nil || !strings.Contains(err.Error(), "AVISOS_TEST_PASS") {
		t.Fatalf("expected env hint, got %v", err)
	}
	if _, err := testSource(nil, true, "   ").Get(); err == nil {
		t.Fatalf("expected empty passphrase error")
	}
	if _, err := testSource(nil, true, "!").Get(); err == nil {
		t.Fatalf("expected read error")
	}
}
