package linkdrop

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"linkdrop-controlplane/pkg/config"
	"linkdrop-controlplane/pkg/errutil"
	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/host/mock"
	"linkdrop-controlplane/pkg/identity"
	"linkdrop-controlplane/services/ledger"
	"linkdrop-controlplane/services/provisioning"
	"linkdrop-controlplane/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const (
	contractID = "drop.testnet"
	fee        = int64(10)
	alice      = "alice.testnet"
)

var errHostDown = errors.New("host down")

func testKey(t *testing.T, seed byte) string {
	t.Helper()
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	pk, err := identity.NewED25519(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return pk.String()
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Linkdrop = config.Linkdrop{
		ContractID:         contractID,
		AccessKeyAllowance: fee,
		CallbackGas:        20,
		LedgerBackend:      config.LedgerBackendSQL,
	}
	return cfg
}

type fixture struct {
	svc      *Service
	store    ledger.Store
	executor *mock.MockExecutor
	metrics  *Metrics
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	store := ledger.NewSQLStore(testutil.NewTestDB(t, &ledger.KeyBalance{}))
	executor := mock.NewMockExecutor(ctrl)
	metrics := NewMetrics(prometheus.NewRegistry())

	return &fixture{
		svc: NewService(ServiceParams{
			Config:   testConfig(),
			Store:    store,
			Executor: executor,
			Metrics:  metrics,
		}),
		store:    store,
		executor: executor,
		metrics:  metrics,
	}
}

func userCall(deposit int64) host.Call {
	return host.Call{
		CurrentAccountID: contractID,
		PredecessorID:    alice,
		SignerID:         alice,
		AttachedDeposit:  deposit,
	}
}

func keyCall(key string) host.Call {
	return host.Call{
		CurrentAccountID: contractID,
		PredecessorID:    contractID,
		SignerID:         contractID,
		SignerPublicKey:  key,
	}
}

func selfCall() host.Call {
	return host.Call{CurrentAccountID: contractID, PredecessorID: contractID}
}

// capture records every submitted request and answers with sequential
// receipt ids.
func (f *fixture) capture(reqs *[]host.Request) {
	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req host.Request) (string, error) {
			*reqs = append(*reqs, req)
			return "receipt-" + string(rune('0'+len(*reqs))), nil
		}).AnyTimes()
}

func (f *fixture) send(t *testing.T, key string, deposit int64) {
	t.Helper()
	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("send-receipt", nil)
	_, err := f.svc.Send(context.Background(), userCall(deposit), key)
	require.NoError(t, err)
}

func requireStatus(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()
	require.Equal(t, want, errutil.StatusOf(err))
}

func TestSendRegistersKeyOnFirstDeposit(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)

	var got host.Request
	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req host.Request) (string, error) {
			got = req
			return "r1", nil
		})

	balance, err := f.svc.Send(context.Background(), userCall(100), key)
	require.NoError(t, err)
	require.Equal(t, int64(90), balance)

	allowance := fee
	require.Equal(t, host.Request{
		Batches: []host.Batch{
			host.NewBatch(contractID, host.AddFunctionCallKey(key, &allowance, contractID, ClaimMethods)),
		},
	}, got)

	peek, err := f.svc.GetKeyBalance(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(90), peek)
	require.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.transitions.WithLabelValues(string(FlowClaim), string(StateDeposited))))
}

func TestSendChargesFeeOnlyOnce(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)
	f.send(t, key, 100)

	balance, err := f.svc.Send(context.Background(), userCall(50), key)
	require.NoError(t, err)
	require.Equal(t, int64(140), balance)
}

func TestSendRejectsSmallDeposit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Send(context.Background(), userCall(fee), testKey(t, 1))
	require.ErrorIs(t, err, ErrDepositTooSmall)
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
}

func TestSendRejectsInvalidKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Send(context.Background(), userCall(100), "ed25519:short")
	require.ErrorIs(t, err, ErrInvalidPublicKey)
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestSendRevertsDepositWhenHostRefuses(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)
	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("", errHostDown)

	_, err := f.svc.Send(context.Background(), userCall(100), key)
	require.ErrorIs(t, err, errHostDown)

	_, err = f.svc.GetKeyBalance(context.Background(), key)
	require.ErrorIs(t, err, ErrNoSuchCredential)
}

func TestClaimRequiresSelf(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)
	f.send(t, key, 100)

	call := keyCall(key)
	call.PredecessorID = alice
	_, err := f.svc.Claim(context.Background(), call, "bob.testnet")
	require.ErrorIs(t, err, ErrUnauthorized)
	requireStatus(t, err, errutil.StatusForbidden)

	balance, err := f.svc.GetKeyBalance(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(90), balance)
}

func TestClaimRejectsInvalidAccount(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)
	f.send(t, key, 100)

	_, err := f.svc.Claim(context.Background(), keyCall(key), "Not An Account")
	require.ErrorIs(t, err, ErrInvalidAccountIdentity)

	balance, err := f.svc.GetKeyBalance(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(90), balance)
}

func TestClaimTransfersToExistingAccount(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)
	f.send(t, key, 100)

	var reqs []host.Request
	f.capture(&reqs)

	sub, err := f.svc.Claim(context.Background(), keyCall(key), "bob.testnet")
	require.NoError(t, err)
	require.Equal(t, int64(90), sub.Amount)
	require.Len(t, reqs, 1)
	require.Equal(t, []host.Batch{
		host.NewBatch(contractID, host.DeleteKey(key)),
		host.NewBatch("bob.testnet", host.Transfer(90)),
	}, reqs[0].Batches)
	require.Nil(t, reqs[0].Callback)

	_, err = f.svc.Claim(context.Background(), keyCall(key), "bob.testnet")
	require.ErrorIs(t, err, ErrNoSuchCredential)
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestClaimRestoresWhenHostRefuses(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)
	f.send(t, key, 100)

	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("", errHostDown)
	_, err := f.svc.Claim(context.Background(), keyCall(key), "bob.testnet")
	require.ErrorIs(t, err, errHostDown)
	requireStatus(t, err, errutil.StatusServiceUnavailable)

	balance, err := f.svc.GetKeyBalance(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(90), balance)
}

func TestClaimUnknownKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Claim(context.Background(), keyCall(testKey(t, 2)), "bob.testnet")
	require.ErrorIs(t, err, ErrNoSuchCredential)

	_, err = f.svc.Claim(context.Background(), keyCall(""), "bob.testnet")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func createAndClaim(t *testing.T, f *fixture, key, newKey string) host.Request {
	t.Helper()
	var got host.Request
	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req host.Request) (string, error) {
			got = req
			return "create-receipt", nil
		})

	sub, err := f.svc.CreateAccountAndClaim(context.Background(), keyCall(key), "carol.testnet", newKey)
	require.NoError(t, err)
	require.Equal(t, "create-receipt", sub.ReceiptID)
	return got
}

func callbackFor(req host.Request, results ...host.PromiseResult) host.Invocation {
	return host.Invocation{
		ReceiptID: "create-receipt",
		Method:    req.Callback.Method,
		Args:      req.Callback.Args,
		Results:   results,
	}
}

func TestCreateAccountAndClaimSuccess(t *testing.T) {
	f := newFixture(t)
	key, newKey := testKey(t, 1), testKey(t, 2)
	f.send(t, key, 100)

	req := createAndClaim(t, f, key, newKey)
	require.Equal(t, []host.Batch{
		host.NewBatch("carol.testnet", host.CreateAccount(), host.AddFullAccessKey(newKey), host.Transfer(90)),
	}, req.Batches)
	require.Equal(t, MethodOnAccountCreatedAndClaimed, req.Callback.Method)
	require.Equal(t, uint64(20), req.Callback.Gas)

	var args CallbackArgs
	require.NoError(t, json.Unmarshal(req.Callback.Args, &args))
	require.Equal(t, CallbackArgs{Flow: FlowClaim, Amount: 90, SigningKey: key}, args)

	_, err := f.svc.GetKeyBalance(context.Background(), key)
	require.ErrorIs(t, err, ErrNoSuchCredential)

	var revoke host.Request
	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req host.Request) (string, error) {
			revoke = req
			return "revoke-receipt", nil
		})

	ok, err := f.svc.OnCallback(context.Background(), selfCall(), callbackFor(req, host.Succeeded(nil)))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []host.Batch{host.NewBatch(contractID, host.DeleteKey(key))}, revoke.Batches)

	_, err = f.svc.GetKeyBalance(context.Background(), key)
	require.ErrorIs(t, err, ErrNoSuchCredential)
	require.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.transitions.WithLabelValues(string(FlowClaim), string(StateConfirmed))))
}

func TestCreateAccountAndClaimFailureRestores(t *testing.T) {
	f := newFixture(t)
	key, newKey := testKey(t, 1), testKey(t, 2)
	f.send(t, key, 100)

	req := createAndClaim(t, f, key, newKey)

	ok, err := f.svc.OnCallback(context.Background(), selfCall(), callbackFor(req, host.Failed("account exists")))
	require.NoError(t, err)
	require.False(t, ok)

	balance, err := f.svc.GetKeyBalance(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(90), balance)
	require.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.transitions.WithLabelValues(string(FlowClaim), string(StateCompensated))))

	createAndClaim(t, f, key, newKey)
}

func TestCreateAccountAndClaimKeepsRefundedKey(t *testing.T) {
	f := newFixture(t)
	key, newKey := testKey(t, 1), testKey(t, 2)
	f.send(t, key, 100)

	req := createAndClaim(t, f, key, newKey)
	f.send(t, key, 50)

	// no revoke is submitted while the key holds a new balance
	ok, err := f.svc.OnCallback(context.Background(), selfCall(), callbackFor(req, host.Succeeded(nil)))
	require.NoError(t, err)
	require.True(t, ok)

	balance, err := f.svc.GetKeyBalance(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(40), balance)
}

func TestCreateAccountAndClaimRevokeRetryable(t *testing.T) {
	f := newFixture(t)
	key, newKey := testKey(t, 1), testKey(t, 2)
	f.send(t, key, 100)

	req := createAndClaim(t, f, key, newKey)
	inv := callbackFor(req, host.Succeeded(nil))

	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("", errHostDown)
	_, err := f.svc.OnCallback(context.Background(), selfCall(), inv)
	require.ErrorIs(t, err, errHostDown)
	require.NotErrorIs(t, err, ErrHostProtocolViolation)
	requireStatus(t, err, errutil.StatusServiceUnavailable)

	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("", errHostDown)
	err = NewTaskHandler(f.svc).HandleCallbackTask(context.Background(), selfCallbackTask(t, inv))
	require.ErrorIs(t, err, errHostDown)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("revoke-receipt", nil)
	ok, err := f.svc.OnCallback(context.Background(), selfCall(), inv)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateAccountRefundRetryable(t *testing.T) {
	f := newFixture(t)

	var req host.Request
	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r host.Request) (string, error) {
			req = r
			return "create-receipt", nil
		})
	_, err := f.svc.CreateAccount(context.Background(), userCall(75), "dave.testnet", testKey(t, 3))
	require.NoError(t, err)
	inv := callbackFor(req, host.Failed("exists"))

	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("", errHostDown)
	_, err = f.svc.OnCallback(context.Background(), selfCall(), inv)
	require.ErrorIs(t, err, errHostDown)
	requireStatus(t, err, errutil.StatusServiceUnavailable)

	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("", errHostDown)
	err = NewTaskHandler(f.svc).HandleCallbackTask(context.Background(), selfCallbackTask(t, inv))
	require.ErrorIs(t, err, errHostDown)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	var refund host.Request
	f.executor.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r host.Request) (string, error) {
			refund = r
			return "refund-receipt", nil
		})
	ok, err := f.svc.OnCallback(context.Background(), selfCall(), inv)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []host.Batch{host.NewBatch(alice, host.Transfer(75))}, refund.Batches)
}

func TestCreateAccountAndClaimValidation(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)
	f.send(t, key, 100)

	_, err := f.svc.CreateAccountAndClaim(context.Background(), keyCall(key), "x", testKey(t, 2))
	require.ErrorIs(t, err, ErrInvalidAccountIdentity)

	_, err = f.svc.CreateAccountAndClaim(context.Background(), keyCall(key), "carol.testnet", "bogus")
	require.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = f.svc.CreateAccountAndClaim(context.Background(), userCall(0), "carol.testnet", testKey(t, 2))
	require.ErrorIs(t, err, ErrUnauthorized)

	balance, err := f.svc.GetKeyBalance(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(90), balance)
}

func TestOnCallbackGuards(t *testing.T) {
	f := newFixture(t)
	args, err := json.Marshal(CallbackArgs{Flow: FlowProvision, Amount: 5, RefundTo: alice})
	require.NoError(t, err)

	inv := host.Invocation{Method: MethodOnAccountCreated, Args: args, Results: []host.PromiseResult{host.Succeeded(nil)}}

	_, err = f.svc.OnCallback(context.Background(), userCall(0), inv)
	require.ErrorIs(t, err, ErrUnauthorized)

	cases := map[string]host.Invocation{
		"no results":      {Method: MethodOnAccountCreated, Args: args},
		"two results":     {Method: MethodOnAccountCreated, Args: args, Results: []host.PromiseResult{host.Succeeded(nil), host.Succeeded(nil)}},
		"unknown method":  {Method: "on_something", Args: args, Results: inv.Results},
		"bad args":        {Method: MethodOnAccountCreated, Args: json.RawMessage(`[`), Results: inv.Results},
		"mismatched flow": {Method: MethodOnAccountCreatedAndClaimed, Args: args, Results: inv.Results},
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.OnCallback(context.Background(), selfCall(), bad)
			require.ErrorIs(t, err, ErrHostProtocolViolation)
			requireStatus(t, err, errutil.StatusInternal)
		})
	}

	ok, err := f.svc.OnCallback(context.Background(), selfCall(), inv)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateAccountRefundsOnFailure(t *testing.T) {
	f := newFixture(t)
	newKey := testKey(t, 3)

	var reqs []host.Request
	f.capture(&reqs)

	sub, err := f.svc.CreateAccount(context.Background(), userCall(75), "dave.testnet", newKey)
	require.NoError(t, err)
	require.Equal(t, int64(75), sub.Amount)
	require.Len(t, reqs, 1)
	require.Equal(t, []host.Batch{
		host.NewBatch("dave.testnet", provisioning.Plain(newKey, 75)...),
	}, reqs[0].Batches)
	require.Equal(t, MethodOnAccountCreated, reqs[0].Callback.Method)

	ok, err := f.svc.OnCallback(context.Background(), selfCall(), callbackFor(reqs[0], host.Failed("exists")))
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, reqs, 2)
	require.Equal(t, []host.Batch{host.NewBatch(alice, host.Transfer(75))}, reqs[1].Batches)
}

func TestCreateAccountAdvanced(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 4)

	var reqs []host.Request
	f.capture(&reqs)

	code := base64.StdEncoding.EncodeToString([]byte("wasm"))
	_, err := f.svc.CreateAccountAdvanced(context.Background(), userCall(30), "erin.testnet", provisioning.Options{
		FullAccessKeys:      []string{key},
		ContractBytesBase64: &code,
	})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, []host.Action{
		host.CreateAccount(),
		host.Transfer(30),
		host.AddFullAccessKey(key),
		host.DeployContract([]byte("wasm")),
	}, reqs[0].Batches[0].Actions)

	ok, err := f.svc.OnCallback(context.Background(), selfCall(), callbackFor(reqs[0], host.Succeeded(nil)))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, reqs, 1)
}

func TestCreateAccountAdvancedRejectsConflictingCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAccountAdvanced(context.Background(), userCall(30), "erin.testnet", provisioning.Options{
		ContractBytes:         provisioning.ByteArray{1, 2, 3},
		UseGlobalContractHash: bytes.Repeat([]byte{1}, provisioning.HashSize),
	})
	require.ErrorIs(t, err, ErrInvalidOptions)
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestGetKeyInformation(t *testing.T) {
	f := newFixture(t)
	key := testKey(t, 1)

	_, found, err := f.svc.GetKeyInformation(context.Background(), key)
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = f.svc.GetKeyInformation(context.Background(), "garbage")
	require.NoError(t, err)
	require.False(t, found)

	f.send(t, key, 100)
	info, found, err := f.svc.GetKeyInformation(context.Background(), key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, KeyInfo{Balance: 90}, info)
}
