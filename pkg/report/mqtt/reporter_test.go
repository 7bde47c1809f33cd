package mqtt

import (
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	pb "github.com/robotalks/radio.go/pkg/proto/radio/v1"
)

type message struct {
	topic   string
	payload []byte
	retain  bool
}

type recorder struct {
	messages []message
}

func (r *recorder) Publish(topic string, payload []byte, retain bool) paho.Token {
	r.messages = append(r.messages, message{topic: topic, payload: payload, retain: retain})
	return &paho.DummyToken{}
}

func TestParseBrokerURL(t *testing.T) {
	testCases := []struct {
		url    string
		broker string
		prefix string
		client string
	}{
		{"mqtt://localhost:1883", "tcp://localhost:1883", "", ""},
		{"mqtt://localhost:1883/radio?client-id=r0", "tcp://localhost:1883", "radio/", "r0"},
		{"ssl://broker:8883/a/b/", "ssl://broker:8883", "a/b/", ""},
		{"mqtts://broker:8883/radio", "ssl://broker:8883", "radio/", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			opts, prefix, err := ParseBrokerURL(tc.url)
			require.NoError(t, err)
			require.Len(t, opts.Servers, 1)
			require.Equal(t, tc.broker, opts.Servers[0].String())
			require.Equal(t, tc.prefix, prefix)
			require.Equal(t, tc.client, opts.ClientID)
		})
	}
}

func TestParseBrokerURLErrors(t *testing.T) {
	for _, u := range []string{"mqtt://", "mqtt://host:1883/%zz"} {
		_, _, err := ParseBrokerURL(u)
		require.Error(t, err, u)
	}
}

func TestReporterPublishesEvents(t *testing.T) {
	var rec recorder
	r := NewReporterWith(&rec, pb.HostInfo{Host: "host0", Chips: []string{"chip0"}})
	ev := &pb.TransportEvent{
		Host:     "host0",
		Chip:     "chip0",
		Client:   pb.Stack_STACK_FM_TX,
		Op:       pb.Op_OP_ON,
		RefCount: 1,
	}
	require.NoError(t, r.Report(ev))
	require.Len(t, rec.messages, 2)

	require.Equal(t, "host0/chip0/events", rec.messages[0].topic)
	require.False(t, rec.messages[0].retain)
	var decoded pb.TransportEvent
	require.NoError(t, proto.Unmarshal(rec.messages[0].payload, &decoded))
	require.Equal(t, pb.Stack_STACK_FM_TX, decoded.Client)
	require.EqualValues(t, 1, decoded.RefCount)

	require.Equal(t, "host0/chip0/state", rec.messages[1].topic)
	require.True(t, rec.messages[1].retain)
	decoded.Reset()
	require.NoError(t, jsonpb.UnmarshalString(string(rec.messages[1].payload), &decoded))
	require.Equal(t, pb.Op_OP_ON, decoded.Op)
}

func TestReporterMeta(t *testing.T) {
	var rec recorder
	r := NewReporterWith(&rec, pb.HostInfo{Host: "host0", Chips: []string{"chip0", "chip1"}})
	r.onConnected()
	require.Len(t, rec.messages, 1)
	require.Equal(t, "host0/meta", rec.messages[0].topic)
	require.True(t, rec.messages[0].retain)
	var info pb.HostInfo
	require.NoError(t, jsonpb.UnmarshalString(string(rec.messages[0].payload), &info))
	require.Equal(t, []string{"chip0", "chip1"}, info.Chips)
}
