package mqtt

import (
	"context"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"

	pb "github.com/robotalks/radio.go/pkg/proto/radio/v1"
)

// Publisher publishes a message under the topic prefix.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) paho.Token
}

// Reporter publishes lifecycle events of a host.
//
// Topics (under the URL topic prefix):
//   {host}/meta          retained HostInfo JSON, cleared on exit
//   {host}/{chip}/events TransportEvent protobuf
//   {host}/{chip}/state  retained last TransportEvent JSON
type Reporter struct {
	Conn *Conn
	Info pb.HostInfo

	pub       Publisher
	marshaler jsonpb.Marshaler
}

// NewReporter creates a Reporter.
func NewReporter(brokerURL string, info pb.HostInfo) (*Reporter, error) {
	opts, topicPrefix, err := ParseBrokerURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+info.Host+"/meta", nil, QoS, true)
	if opts.ClientID == "" {
		opts.SetClientID("radiod:" + info.Host)
	}
	r := &Reporter{Info: info}
	r.Conn = NewConn(opts, topicPrefix, r.onConnected)
	r.pub = r.Conn
	return r, nil
}

// NewReporterWith creates a Reporter on a custom Publisher.
func NewReporterWith(pub Publisher, info pb.HostInfo) *Reporter {
	return &Reporter{pub: pub, Info: info}
}

// Report implements report.Sink.
func (r *Reporter) Report(ev *pb.TransportEvent) error {
	payload, err := proto.Marshal(ev)
	if err != nil {
		return err
	}
	state, err := r.marshaler.MarshalToString(ev)
	if err != nil {
		return err
	}
	prefix := r.Info.Host + "/" + ev.Chip + "/"
	r.pub.Publish(prefix+"events", payload, false)
	r.pub.Publish(prefix+"state", []byte(state), true)
	return nil
}

// Run implements Runnable.
func (r *Reporter) Run(ctx context.Context) error {
	token := r.Conn.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			glog.Errorf("mqtt connect: %v", token.Error())
		}
	}()
	<-ctx.Done()
	r.pub.Publish(r.Info.Host+"/meta", nil, true).Wait()
	r.Conn.Close()
	return ctx.Err()
}

func (r *Reporter) onConnected() {
	meta, err := r.marshaler.MarshalToString(&r.Info)
	if err != nil {
		glog.Errorf("mqtt meta: %v", err)
		return
	}
	r.pub.Publish(r.Info.Host+"/meta", []byte(meta), true)
}
