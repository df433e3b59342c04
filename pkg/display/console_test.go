package display

import (
	"bytes"
	"testing"
)

func TestConsoleDisplayPrint(t *testing.T) {
	buf := &bytes.Buffer{}
	d := NewWriterDisplay(buf)
	d.SetVerbose(true)

	d.Print("building foo\n")
	if buf.String() != "building foo\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestConsoleDisplayStartTaskDoesNotPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	d := NewWriterDisplay(buf)

	task := d.StartTask("foo")
	task.SetStage("fetch", "foo")
	task.Progress(50, "halfway")
	task.Log("a log line")
	task.Done()
	d.Close()
}

func TestNewConsoleReturnsDisplay(t *testing.T) {
	if NewConsole() == nil {
		t.Fatal("expected a non-nil Display")
	}
}
