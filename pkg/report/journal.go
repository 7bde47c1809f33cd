package report

import (
	"io"
	"sync"

	"github.com/golang/protobuf/jsonpb"
	"gopkg.in/natefinch/lumberjack.v2"

	pb "github.com/robotalks/radio.go/pkg/proto/radio/v1"
)

// JournalConfig configures the rotating journal file.
type JournalConfig struct {
	Filename   string `yaml:"filename" toml:"filename"`
	MaxSizeMB  int    `yaml:"maxSizeMB" toml:"max_size_mb"`
	MaxBackups int    `yaml:"maxBackups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"maxAgeDays" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// Journal appends events as JSON lines.
type Journal struct {
	w         io.WriteCloser
	marshaler jsonpb.Marshaler
	lock      sync.Mutex
}

// NewJournal creates a Journal writing to w.
func NewJournal(w io.WriteCloser) *Journal {
	return &Journal{w: w, marshaler: jsonpb.Marshaler{OrigName: true}}
}

// OpenJournal creates a Journal on a rotating file.
func OpenJournal(conf JournalConfig) *Journal {
	return NewJournal(&lumberjack.Logger{
		Filename:   conf.Filename,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
		Compress:   conf.Compress,
	})
}

// Report implements Sink.
func (j *Journal) Report(ev *pb.TransportEvent) error {
	line, err := j.marshaler.MarshalToString(ev)
	if err != nil {
		return err
	}
	j.lock.Lock()
	defer j.lock.Unlock()
	_, err = io.WriteString(j.w, line+"\n")
	return err
}

// Close implements io.Closer.
func (j *Journal) Close() error {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.w.Close()
}
