package script

import (
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/hci/hcitest"
	"github.com/robotalks/radio.go/pkg/radio"
)

const testScript = "tiinit_7.2.0.bts"

type scriptTestEnv struct {
	t         *testing.T
	transport *hcitest.Transport
	table     *Table
	storage   fstest.MapFS
	in        *Interpreter
	results   []radio.Result
	slept     []time.Duration
}

func newScriptTestEnv(t *testing.T) *scriptTestEnv {
	env := &scriptTestEnv{
		t:         t,
		transport: hcitest.New(),
		table:     &Table{},
		storage:   fstest.MapFS{},
	}
	env.in = NewInterpreter(env.transport, env.storage)
	env.in.Table = env.table
	env.in.Sleep = func(d time.Duration) {
		env.slept = append(env.slept, d)
	}
	return env
}

func (e *scriptTestEnv) done(r radio.Result) {
	e.results = append(e.results, r)
}

func (e *scriptTestEnv) execute(data []byte) radio.Result {
	e.table.Register(testScript, data)
	result, err := e.in.Execute(testScript, e.done)
	require.NoError(e.t, err)
	return result
}

type deniedFS struct{}

func (deniedFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
}

func TestInterpreter(t *testing.T) {
	testCases := []struct {
		name  string
		logic func(*scriptTestEnv)
	}{
		{
			"synchronous round trip",
			func(env *scriptTestEnv) {
				env.transport.Sync = true
				result := env.execute(NewEncoder(1).
					Command(0xfc01, 1).
					Command(0xfc02, 2).
					Command(0xfc03, 3).
					Remark("done").
					Bytes())
				require.Equal(t, radio.Success, result)
				require.Empty(t, env.results)
				require.Equal(t, []hci.Opcode{0xfc01, 0xfc02, 0xfc03}, env.transport.Opcodes())
				require.Equal(t, []byte{2}, env.transport.Calls()[1].Params)
				require.False(t, env.in.Running())
			},
		},
		{
			"remarks only",
			func(env *scriptTestEnv) {
				require.Equal(t, radio.Success, env.execute(NewEncoder(1).Remark("a").Remark("b").Bytes()))
				require.Empty(t, env.results)
				require.Empty(t, env.transport.Calls())
			},
		},
		{
			"suspends on pending command",
			func(env *scriptTestEnv) {
				result := env.execute(NewEncoder(1).Command(0xfc01).Command(0xfc02).Bytes())
				require.Equal(t, radio.Pending, result)
				require.True(t, env.in.Running())
				require.Equal(t, 1, env.transport.Pending())
				env.transport.Complete()
				require.Empty(t, env.results)
				require.Equal(t, 1, env.transport.Pending())
				env.transport.Complete()
				require.Equal(t, []radio.Result{radio.Success}, env.results)
				require.False(t, env.in.Running())
			},
		},
		{
			"command failure",
			func(env *scriptTestEnv) {
				require.Equal(t, radio.Pending, env.execute(NewEncoder(1).Command(0xfc01).Command(0xfc02).Bytes()))
				env.transport.CompleteWith(hci.Succeeded(hci.NewCommandComplete(0xfc01, 0x12)))
				require.Equal(t, []radio.Result{radio.Failed}, env.results)
				require.Len(t, env.transport.Opcodes(), 1)
			},
		},
		{
			"transport failure",
			func(env *scriptTestEnv) {
				env.transport.Sync = true
				env.transport.Responder = func(*hcitest.Call) hci.Reply {
					return hci.FailedReply(nil)
				}
				require.Equal(t, radio.Failed, env.execute(NewEncoder(1).Command(0xfc01).Bytes()))
				require.Empty(t, env.results)
			},
		},
		{
			"bad magic",
			func(env *scriptTestEnv) {
				data := NewEncoder(1).Command(0xfc01).Bytes()
				data[3] = 0
				require.Equal(t, radio.InvalidScript, env.execute(data))
				require.Empty(t, env.transport.Calls())
				require.False(t, env.in.Running())
			},
		},
		{
			"short header",
			func(env *scriptTestEnv) {
				require.Equal(t, radio.InvalidScript, env.execute([]byte("BTSB")))
				require.Empty(t, env.transport.Calls())
			},
		},
		{
			"disallowed actions",
			func(env *scriptTestEnv) {
				env.transport.Sync = true
				for _, at := range []ActionType{ActionSetSerialParams, ActionRunScript, 99} {
					result := env.execute(NewEncoder(1).Command(0xfc01).Action(at, make([]byte, 8)).Bytes())
					require.Equal(t, radio.InvalidScript, result, at.String())
				}
				require.Len(t, env.transport.Opcodes(), 3)
			},
		},
		{
			"command without wait",
			func(env *scriptTestEnv) {
				env.transport.Sync = true
				result := env.execute(NewEncoder(1).SendCommand(0xfc01).SendCommand(0xfc02).Bytes())
				require.Equal(t, radio.InvalidScript, result)
				require.Equal(t, []hci.Opcode{0xfc01}, env.transport.Opcodes())
				require.Equal(t, radio.InvalidScript, env.execute(NewEncoder(1).SendCommand(0xfc03).Bytes()))
			},
		},
		{
			"wait without command",
			func(env *scriptTestEnv) {
				require.Equal(t, radio.InvalidScript, env.execute(NewEncoder(1).WaitForComplete(0xfc01, 10).Bytes()))
				require.Empty(t, env.transport.Calls())
			},
		},
		{
			"oversized action",
			func(env *scriptTestEnv) {
				data := NewEncoder(1).Action(ActionRemark, make([]byte, MaxActionSize+1)).Bytes()
				require.Equal(t, radio.InvalidScript, env.execute(data))
			},
		},
		{
			"truncated after suspension",
			func(env *scriptTestEnv) {
				data := NewEncoder(1).Command(0xfc01).Remark("cut").Bytes()
				require.Equal(t, radio.Pending, env.execute(data[:len(data)-1]))
				env.transport.Complete()
				require.Equal(t, []radio.Result{radio.InvalidScript}, env.results)
			},
		},
		{
			"delay",
			func(env *scriptTestEnv) {
				env.transport.Sync = true
				require.Equal(t, radio.Success, env.execute(NewEncoder(1).Command(0xfc01).Delay(5).Command(0xfc02).Bytes()))
				require.Equal(t, []time.Duration{5 * time.Millisecond}, env.slept)
			},
		},
		{
			"abort during delay",
			func(env *scriptTestEnv) {
				env.transport.Sync = true
				env.in.Sleep = func(time.Duration) {
					require.True(t, env.in.Abort())
				}
				result := env.execute(NewEncoder(1).Command(0xfc01).Delay(5).Command(0xfc02).Bytes())
				require.Equal(t, radio.Aborted, result)
				require.Equal(t, []hci.Opcode{0xfc01}, env.transport.Opcodes())
				require.Empty(t, env.results)
			},
		},
		{
			"abort lets command finish",
			func(env *scriptTestEnv) {
				require.Equal(t, radio.Pending, env.execute(NewEncoder(1).Command(0xfc01).Command(0xfc02).Bytes()))
				require.True(t, env.in.Abort())
				require.True(t, env.in.Abort())
				require.Empty(t, env.results)
				env.transport.Complete()
				require.Equal(t, []radio.Result{radio.Aborted}, env.results)
				require.Equal(t, 0, env.transport.Pending())
				require.Len(t, env.transport.Opcodes(), 1)
			},
		},
		{
			"abort idle",
			func(env *scriptTestEnv) {
				require.False(t, env.in.Abort())
			},
		},
		{
			"busy",
			func(env *scriptTestEnv) {
				require.Equal(t, radio.Pending, env.execute(NewEncoder(1).Command(0xfc01).Bytes()))
				_, err := env.in.Execute(testScript, env.done)
				require.Equal(t, ErrBusy, err)
				env.transport.CompleteAll()
				require.Equal(t, []radio.Result{radio.Success}, env.results)
			},
		},
		{
			"storage before table",
			func(env *scriptTestEnv) {
				env.transport.Sync = true
				env.storage[testScript] = &fstest.MapFile{Data: NewEncoder(1).Command(0xfd01).Bytes()}
				require.Equal(t, radio.Success, env.execute(NewEncoder(1).Command(0xfc01).Bytes()))
				require.Equal(t, []hci.Opcode{0xfd01}, env.transport.Opcodes())
			},
		},
		{
			"not found",
			func(env *scriptTestEnv) {
				result, err := env.in.Execute("tiinit_1.1.1.bts", env.done)
				require.NoError(t, err)
				require.Equal(t, radio.Failed, result)
			},
		},
		{
			"storage error",
			func(env *scriptTestEnv) {
				env.in.Storage = deniedFS{}
				require.Equal(t, radio.Failed, env.execute(NewEncoder(1).Bytes()))
				require.Empty(t, env.transport.Calls())
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.logic(newScriptTestEnv(t))
		})
	}
}
