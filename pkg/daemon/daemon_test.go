package daemon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radio.go/pkg/config"
	pb "github.com/robotalks/radio.go/pkg/proto/radio/v1"
	"github.com/robotalks/radio.go/pkg/report"
)

type fakePort struct {
	*io.PipeReader
	w       *io.PipeWriter
	lock    sync.Mutex
	written bytes.Buffer
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{PipeReader: r, w: w}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.w.Close()
	return p.PipeReader.Close()
}

func (p *fakePort) Written() []byte {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func testConfig(t *testing.T) *config.Config {
	conf := config.NewConfig()
	conf.File = ""
	conf.Host = "host0"
	conf.MQTTBrokerURL = ""
	conf.ScriptDir = t.TempDir()
	conf.Chips = []config.ChipConfig{
		{ID: "chip0", Device: "fake", AutoOn: []string{"bt"}, CommandTimeoutMs: 20},
	}
	return conf
}

func TestDaemonFailedBringUp(t *testing.T) {
	port := newFakePort()
	conf := testConfig(t)
	conf.Journal.Filename = filepath.Join(t.TempDir(), "events.log")
	require.NoError(t, conf.Load())

	d, err := New(conf, func(*config.ChipConfig) (io.ReadWriteCloser, error) {
		return port, nil
	})
	require.NoError(t, err)
	events := make(chan *pb.TransportEvent, 4)
	d.Mux.Add(report.SinkFunc(func(ev *pb.TransportEvent) error {
		events <- ev
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx)
	}()

	var ev *pb.TransportEvent
	select {
	case ev = <-events:
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	require.Equal(t, "host0", ev.Host)
	require.Equal(t, "chip0", ev.Chip)
	require.Equal(t, pb.Stack_STACK_BT, ev.Client)
	require.Equal(t, pb.Op_OP_ON, ev.Op)
	require.Equal(t, pb.Result_RESULT_FAILED, ev.Result)
	require.True(t, ev.Async)
	require.Nil(t, ev.Identity)

	cancel()
	select {
	case err = <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("daemon not stopped")
	}
	// HCI_Reset is the only command sent.
	require.Equal(t, []byte{0x01, 0x03, 0x0c, 0x00}, port.Written())

	content, err := os.ReadFile(conf.Journal.Filename)
	require.NoError(t, err)
	require.Contains(t, string(content), "RESULT_FAILED")
}

func TestDaemonOpenError(t *testing.T) {
	conf := testConfig(t)
	require.NoError(t, conf.Load())
	failure := errors.New("no such device")
	_, err := New(conf, func(*config.ChipConfig) (io.ReadWriteCloser, error) {
		return nil, failure
	})
	require.Equal(t, failure, err)
}

func TestDaemonIdentity(t *testing.T) {
	conf := testConfig(t)
	conf.Chips = append(conf.Chips, config.ChipConfig{ID: "chip1", Device: "fake"})
	require.NoError(t, conf.Load())
	d, err := New(conf, func(*config.ChipConfig) (io.ReadWriteCloser, error) {
		return newFakePort(), nil
	})
	require.NoError(t, err)
	defer d.close()
	require.Len(t, d.Chips.Chips(), 2)
	_, ok := d.identity("chip0")
	require.False(t, ok)
	_, ok = d.identity("chip9")
	require.False(t, ok)
}
