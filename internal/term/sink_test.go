package term

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/creack/pty"
	xterm "golang.org/x/term"
)

// TestSinkWritesToPty opens a real pty pair and checks bytes arrive
// intact and in order
func TestSinkWritesToPty(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("cannot open pty: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	sink, err := OpenSink(slave.Name())
	if err != nil {
		t.Fatalf("OpenSink(%s): %v", slave.Name(), err)
	}
	defer sink.Close()

	want := []byte("\x1b[<0;10;5M\x1b[<0;10;5m")
	if _, err := sink.Write(want[:10]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := sink.Write(want[10:]); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, len(want))
	master.SetReadDeadline(time.Now().Add(2 * time.Second))
	n := 0
	for n < len(want) {
		m, err := master.Read(got[n:])
		if err != nil {
			t.Fatalf("read after %d bytes: %v", n, err)
		}
		n += m
	}
	if !bytes.Equal(got, want) {
		t.Errorf("read %q, want %q", got, want)
	}
}

// TestSinkConcurrentWritesDoNotInterleave hammers the sink from several
// goroutines; each sequence must come out contiguous
func TestSinkConcurrentWritesDoNotInterleave(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("cannot open pty: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	sink, err := OpenSink(slave.Name())
	if err != nil {
		t.Fatalf("OpenSink: %v", err)
	}
	defer sink.Close()

	const writers = 4
	const rounds = 25
	seq := map[int][]byte{
		0: []byte("\x1b[<0;1;1M"),
		1: []byte("\x1b[<1;2;2M"),
		2: []byte("\x1b[<2;3;3M"),
		3: []byte("\x1b[<65;4;4M"),
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				sink.Write(seq[id])
			}
		}(w)
	}

	total := 0
	for _, s := range seq {
		total += len(s) * rounds
	}
	done := make(chan []byte)
	go func() {
		buf := make([]byte, total)
		n := 0
		master.SetReadDeadline(time.Now().Add(5 * time.Second))
		for n < total {
			m, err := master.Read(buf[n:])
			if err != nil {
				break
			}
			n += m
		}
		done <- buf[:n]
	}()

	wg.Wait()
	out := <-done
	if len(out) != total {
		t.Fatalf("read %d bytes, want %d", len(out), total)
	}

	// Every 9-byte chunk must be one of the four sequences, untorn.
	for i := 0; i < len(out); i += 9 {
		chunk := out[i : i+9]
		ok := false
		for _, s := range seq {
			if bytes.Equal(chunk, s) {
				ok = true
				break
			}
		}
		if !ok {
			t.Fatalf("interleaved write at offset %d: %q", i, chunk)
		}
	}
}

// TestInRawModeFollowsTermios flips a pty between canonical and raw
// mode and checks the probe tracks it
func TestInRawModeFollowsTermios(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("cannot open pty: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	fd := int(slave.Fd())

	raw, err := InRawMode(fd)
	if err != nil {
		t.Fatalf("InRawMode: %v", err)
	}
	if raw {
		t.Error("fresh pty should be in canonical mode")
	}

	state, err := xterm.MakeRaw(fd)
	if err != nil {
		t.Fatalf("MakeRaw: %v", err)
	}
	defer xterm.Restore(fd, state)

	raw, err = InRawMode(fd)
	if err != nil {
		t.Fatalf("InRawMode after MakeRaw: %v", err)
	}
	if !raw {
		t.Error("probe should report raw mode after MakeRaw")
	}
}

// TestOpenSinkStdout checks the stdout selection shorthand
func TestOpenSinkStdout(t *testing.T) {
	for _, path := range []string{"", "-"} {
		sink, err := OpenSink(path)
		if err != nil {
			t.Fatalf("OpenSink(%q): %v", path, err)
		}
		if sink.Path() != "stdout" {
			t.Errorf("OpenSink(%q).Path() = %s, want stdout", path, sink.Path())
		}
		sink.Close()
	}
}
