package admission

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radio.go/pkg/bringup"
	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/hci/hcitest"
	"github.com/robotalks/radio.go/pkg/radio"
	"github.com/robotalks/radio.go/pkg/script"
)

const scriptOpcode hci.Opcode = 0xfd0c

type coordTestEnv struct {
	t           *testing.T
	transport   *hcitest.Transport
	c           *Coordinator
	completions []Completion
	observed    []Completion
}

func newCoordTestEnv(t *testing.T) *coordTestEnv {
	env := &coordTestEnv{t: t, transport: hcitest.New()}
	table := &script.Table{}
	table.Register("tiinit_7.2.0.bts", script.NewEncoder(1).Command(scriptOpcode).Bytes())
	interp := script.NewInterpreter(env.transport, nil)
	interp.Table = table
	m := bringup.New("test", env.transport, interp, nil)
	env.c = New("chip0", m)
	env.c.SetObserver(env)
	for n := 0; n < radio.NumStacks; n++ {
		require.NoError(t, env.c.Register(radio.StackID(n), env.completed))
	}
	return env
}

func (e *coordTestEnv) completed(c Completion) {
	e.completions = append(e.completions, c)
}

func (e *coordTestEnv) RequestCompleted(c Completion) {
	e.observed = append(e.observed, c)
}

func (e *coordTestEnv) expect(expected radio.Result, result radio.Result, err error) {
	require.NoError(e.t, err)
	require.Equal(e.t, expected, result)
}

func (e *coordTestEnv) on(client radio.StackID, expected radio.Result) {
	r, err := e.c.RequestOn(client)
	e.expect(expected, r, err)
}

func (e *coordTestEnv) off(client radio.StackID, expected radio.Result) {
	r, err := e.c.RequestOff(client)
	e.expect(expected, r, err)
}

func (e *coordTestEnv) clients() (clients []radio.StackID) {
	for _, c := range e.completions {
		clients = append(clients, c.Client)
	}
	return
}

func TestCoordinator(t *testing.T) {
	testCases := []struct {
		name  string
		logic func(*coordTestEnv)
	}{
		{
			"bt and fm-rx share the transport",
			func(env *coordTestEnv) {
				r, err := env.c.RequestOn(radio.StackBT)
				env.expect(radio.Pending, r, err)
				env.transport.CompleteAll()
				require.Equal(t, []Completion{{
					Chip: "chip0", Client: radio.StackBT, Op: radio.OpOn,
					Result: radio.Success, Async: true, Transitioned: true, RefCount: 1,
				}}, env.completions)
				require.Equal(t, []hci.Opcode{hci.OpcodeReadLocalVersion, scriptOpcode}, env.transport.Opcodes())
				calls := len(env.transport.Calls())

				r, err = env.c.RequestOn(radio.StackFMRX)
				env.expect(radio.Success, r, err)
				require.Equal(t, 2, env.c.RefCount())
				r, err = env.c.RequestOff(radio.StackBT)
				env.expect(radio.Success, r, err)
				require.Equal(t, 1, env.c.RefCount())
				require.Len(t, env.transport.Calls(), calls)
				require.Len(t, env.completions, 1)
				for _, c := range env.observed[1:] {
					require.False(t, c.Transitioned)
				}

				r, err = env.c.RequestOff(radio.StackFMRX)
				env.expect(radio.Pending, r, err)
				require.Equal(t, hcitest.CallPowerOff, env.transport.Peek().Kind)
				env.transport.CompleteAll()
				require.Len(t, env.completions, 2)
				require.Equal(t, radio.StackFMRX, env.completions[1].Client)
				require.Equal(t, radio.OpOff, env.completions[1].Op)
				require.Equal(t, radio.Success, env.completions[1].Result)
				require.True(t, env.completions[1].Transitioned)
				require.Equal(t, 0, env.c.RefCount())
				require.Equal(t, 1, env.transport.Count(hcitest.CallPowerOn))
				require.Equal(t, 1, env.transport.Count(hcitest.CallPowerOff))
				require.Len(t, env.observed, 4)
			},
		},
		{
			"fifo fairness",
			func(env *coordTestEnv) {
				for _, client := range []radio.StackID{radio.StackBT, radio.StackFMRX, radio.StackFMTX} {
					r, err := env.c.RequestOn(client)
					env.expect(radio.Pending, r, err)
				}
				require.True(t, env.c.Busy())
				env.transport.CompleteAll()
				require.Equal(t, []radio.StackID{radio.StackBT, radio.StackFMRX, radio.StackFMTX}, env.clients())
				for _, c := range env.completions {
					require.Equal(t, radio.Success, c.Result)
					require.True(t, c.Async)
				}
				require.Equal(t, 3, env.c.RefCount())
				require.False(t, env.c.Busy())

				env.completions = nil
				env.off(radio.StackFMTX, radio.Success)
				env.off(radio.StackBT, radio.Success)
				env.off(radio.StackFMRX, radio.Pending)
				env.on(radio.StackBT, radio.Pending)
				env.on(radio.StackFMTX, radio.Pending)
				env.transport.CompleteAll()
				require.Equal(t, []radio.StackID{radio.StackFMRX, radio.StackBT, radio.StackFMTX}, env.clients())
				require.Equal(t, 2, env.transport.Count(hcitest.CallPowerOn))
				require.Equal(t, 1, env.transport.Count(hcitest.CallPowerOff))
				require.Equal(t, 2, env.c.RefCount())
			},
		},
		{
			"abort queued on",
			func(env *coordTestEnv) {
				env.on(radio.StackBT, radio.Pending)
				env.on(radio.StackFMRX, radio.Pending)
				r, err := env.c.RequestAbort(radio.StackFMRX)
				env.expect(radio.Success, r, err)
				_, err = env.c.RequestAbort(radio.StackFMRX)
				require.Equal(t, ErrNothingToAbort, err)
				env.transport.CompleteAll()
				require.Equal(t, []radio.StackID{radio.StackBT}, env.clients())
				require.False(t, env.c.IsOn(radio.StackFMRX))
				require.Equal(t, 1, env.c.RefCount())
			},
		},
		{
			"abort active on",
			func(env *coordTestEnv) {
				env.on(radio.StackBT, radio.Pending)
				env.on(radio.StackFMRX, radio.Pending)
				env.transport.Complete()
				_, err := env.c.RequestAbort(radio.StackFMTX)
				require.Equal(t, ErrNothingToAbort, err)
				r, err := env.c.RequestAbort(radio.StackBT)
				env.expect(radio.Pending, r, err)
				r, err = env.c.RequestAbort(radio.StackBT)
				env.expect(radio.Pending, r, err)
				env.transport.CompleteAll()
				require.Equal(t, []radio.StackID{radio.StackBT, radio.StackFMRX}, env.clients())
				require.Equal(t, radio.Aborted, env.completions[0].Result)
				require.Equal(t, radio.OpOn, env.completions[0].Op)
				require.Equal(t, radio.Success, env.completions[1].Result)
				require.False(t, env.c.IsOn(radio.StackBT))
				require.True(t, env.c.IsOn(radio.StackFMRX))
				require.Equal(t, 2, env.transport.Count(hcitest.CallPowerOn))
				require.Equal(t, 1, env.transport.Count(hcitest.CallPowerOff))
			},
		},
		{
			"nothing to abort",
			func(env *coordTestEnv) {
				_, err := env.c.RequestAbort(radio.StackBT)
				require.Equal(t, ErrNothingToAbort, err)
				env.on(radio.StackBT, radio.Pending)
				env.transport.CompleteAll()
				env.off(radio.StackBT, radio.Pending)
				_, err = env.c.RequestAbort(radio.StackBT)
				require.Equal(t, ErrNothingToAbort, err)
			},
		},
		{
			"duplicate requests",
			func(env *coordTestEnv) {
				env.on(radio.StackBT, radio.Pending)
				_, err := env.c.RequestOn(radio.StackBT)
				require.Equal(t, ErrRequestPending, err)
				env.on(radio.StackFMRX, radio.Pending)
				_, err = env.c.RequestOff(radio.StackFMRX)
				require.Equal(t, ErrRequestPending, err)
				env.off(radio.StackBT, radio.Pending)
				env.transport.CompleteAll()
				require.Equal(t, []radio.StackID{radio.StackBT, radio.StackFMRX, radio.StackBT}, env.clients())
				require.Equal(t, 1, env.c.RefCount())
				require.True(t, env.c.IsOn(radio.StackFMRX))
			},
		},
		{
			"unknown client",
			func(env *coordTestEnv) {
				_, err := env.c.RequestOn(radio.StackID(radio.NumStacks))
				require.Equal(t, ErrUnknownClient, err)
				_, err = env.c.RequestAbort(-1)
				require.Equal(t, ErrUnknownClient, err)
				require.Equal(t, ErrUnknownClient, env.c.Register(radio.StackID(9), nil))
			},
		},
		{
			"redundant requests",
			func(env *coordTestEnv) {
				env.off(radio.StackBT, radio.Success)
				require.Empty(t, env.transport.Calls())
				env.on(radio.StackBT, radio.Pending)
				env.transport.CompleteAll()
				env.on(radio.StackBT, radio.Success)
				require.Equal(t, 1, env.c.RefCount())
			},
		},
		{
			"failed bring up serves queue from idle",
			func(env *coordTestEnv) {
				powerOns := 0
				env.transport.Responder = func(c *hcitest.Call) hci.Reply {
					if c.Kind == hcitest.CallPowerOn {
						powerOns++
						if powerOns == 1 {
							return hci.FailedReply(nil)
						}
					}
					return env.transport.DefaultReply(c)
				}
				env.on(radio.StackBT, radio.Pending)
				env.on(radio.StackFMRX, radio.Pending)
				env.transport.Complete()
				require.Len(t, env.completions, 1)
				require.Equal(t, radio.Failed, env.completions[0].Result)
				require.Equal(t, 0, env.c.RefCount())
				require.Equal(t, hcitest.CallPowerOn, env.transport.Peek().Kind)
				env.transport.CompleteAll()
				require.Equal(t, []radio.StackID{radio.StackBT, radio.StackFMRX}, env.clients())
				require.Equal(t, radio.Success, env.completions[1].Result)
				require.Equal(t, 1, env.c.RefCount())
			},
		},
		{
			"request from completion callback",
			func(env *coordTestEnv) {
				var nested radio.Result
				require.NoError(t, env.c.Register(radio.StackBT, func(c Completion) {
					env.completed(c)
					r, err := env.c.RequestOn(radio.StackFMTX)
					require.NoError(t, err)
					nested = r
				}))
				env.on(radio.StackBT, radio.Pending)
				env.transport.CompleteAll()
				require.Equal(t, radio.Success, nested)
				require.Equal(t, 2, env.c.RefCount())
			},
		},
		{
			"synchronous transport",
			func(env *coordTestEnv) {
				env.transport.Sync = true
				env.on(radio.StackBT, radio.Success)
				require.Empty(t, env.completions)
				require.Len(t, env.observed, 1)
				require.False(t, env.observed[0].Async)
				env.off(radio.StackBT, radio.Success)
				require.Equal(t, 0, env.c.RefCount())
				require.Equal(t, 1, env.transport.Count(hcitest.CallPowerOff))
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.logic(newCoordTestEnv(t))
		})
	}
}
