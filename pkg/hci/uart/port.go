// Package uart opens the serial port and controls the enable line of the chip.
package uart

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"
)

// ErrClosed indicates the port is closed.
var ErrClosed = errors.New("port closed")

// Port is a serial port which can be reopened at a different speed.
// It implements io.ReadWriteCloser and h4.SpeedSetter.
type Port struct {
	config serial.Config
	port   *serial.Port
	lock   sync.RWMutex
}

// Open opens the serial device.
func Open(device string, baud int, readTimeout time.Duration) (*Port, error) {
	p := &Port{
		config: serial.Config{
			Name:        device,
			Baud:        baud,
			ReadTimeout: readTimeout,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
		},
	}
	port, err := serial.OpenPort(&p.config)
	if err != nil {
		return nil, err
	}
	p.port = port
	return p, nil
}

// Speed returns the current baud rate.
func (p *Port) Speed() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.config.Baud
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	p.lock.RLock()
	port := p.port
	p.lock.RUnlock()
	if port == nil {
		return 0, io.EOF
	}
	n, err := port.Read(b)
	if n == 0 && err == io.EOF {
		// read timeout
		return 0, nil
	}
	return n, err
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.port == nil {
		return 0, ErrClosed
	}
	return p.port.Write(b)
}

// SetSpeed reopens the port at the given baud rate.
func (p *Port) SetSpeed(baud int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.port == nil {
		return ErrClosed
	}
	if baud == p.config.Baud {
		return nil
	}
	if err := p.port.Close(); err != nil {
		glog.Warningf("uart: close %s: %v", p.config.Name, err)
	}
	p.config.Baud = baud
	port, err := serial.OpenPort(&p.config)
	if err != nil {
		p.port = nil
		return err
	}
	p.port = port
	glog.V(2).Infof("uart: %s reopened at %d", p.config.Name, baud)
	return nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}
