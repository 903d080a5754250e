package provisioning

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"testing"

	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/identity"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, seed byte) string {
	t.Helper()
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	pk, err := identity.NewED25519(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return pk.String()
}

func ptr[T any](v T) *T { return &v }

func kinds(actions []host.Action) []host.ActionKind {
	out := make([]host.ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestResolveRejectsEmptyOptions(t *testing.T) {
	_, err := Resolve(10, Options{})
	require.ErrorIs(t, err, ErrInvalidOptions)
	require.Contains(t, err.Error(), "no options")
}

func TestResolveRejectsConflictingCodeSources(t *testing.T) {
	cases := map[string]Options{
		"bytes and base64": {
			ContractBytes:       ByteArray{1, 2, 3},
			ContractBytesBase64: ptr(base64.StdEncoding.EncodeToString([]byte{1, 2, 3})),
		},
		"bytes and global hash": {
			ContractBytes:         ByteArray{1},
			UseGlobalContractHash: bytes.Repeat([]byte{7}, HashSize),
		},
		"publish and use": {
			GlobalContractCode:         ByteArray{1},
			UseGlobalContractAccountID: ptr("code.testnet"),
		},
	}

	for name, o := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(10, o)
			require.ErrorIs(t, err, ErrInvalidOptions)
			require.Contains(t, err.Error(), "conflicting code sources")
		})
	}
}

func TestResolveSingleFullAccessKey(t *testing.T) {
	key := testKey(t, 1)

	actions, err := Resolve(90, Options{FullAccessKeys: []string{key}})
	require.NoError(t, err)
	require.Equal(t, []host.Action{
		host.CreateAccount(),
		host.Transfer(90),
		host.AddFullAccessKey(key),
	}, actions)
}

func TestResolveOrdersActions(t *testing.T) {
	full1, full2, limited := testKey(t, 1), testKey(t, 2), testKey(t, 3)

	actions, err := Resolve(50, Options{
		FullAccessKeys: []string{full1, full2},
		LimitedAccessKeys: []LimitedAccessKey{{
			PublicKey:   limited,
			Allowance:   250,
			ReceiverID:  "app.testnet",
			MethodNames: "ping,pong",
		}},
		ContractBytes: ByteArray{0, 97, 115, 109},
	})
	require.NoError(t, err)
	require.Equal(t, []host.ActionKind{
		host.ActionCreateAccount,
		host.ActionTransfer,
		host.ActionAddFullAccessKey,
		host.ActionAddFullAccessKey,
		host.ActionAddFunctionCallKey,
		host.ActionDeployContract,
	}, kinds(actions))

	require.Equal(t, full1, actions[2].PublicKey)
	require.Equal(t, full2, actions[3].PublicKey)

	fc := actions[4]
	require.Equal(t, limited, fc.PublicKey)
	require.NotNil(t, fc.Allowance)
	require.Equal(t, int64(250), *fc.Allowance)
	require.Equal(t, "app.testnet", fc.ReceiverID)
	require.Equal(t, "ping,pong", fc.MethodNames)
	require.Equal(t, []byte{0, 97, 115, 109}, actions[5].Code)
}

func TestResolveZeroAllowanceIsUnlimited(t *testing.T) {
	actions, err := Resolve(1, Options{
		LimitedAccessKeys: []LimitedAccessKey{{
			PublicKey:   testKey(t, 4),
			Allowance:   0,
			ReceiverID:  "app.testnet",
			MethodNames: "",
		}},
	})
	require.NoError(t, err)
	require.Len(t, actions, 3)
	require.Equal(t, host.ActionAddFunctionCallKey, actions[2].Kind)
	require.Nil(t, actions[2].Allowance)
}

func TestResolveCodeSources(t *testing.T) {
	code := []byte("wasm")
	hash := bytes.Repeat([]byte{9}, HashSize)

	cases := map[string]struct {
		options Options
		want    host.Action
	}{
		"contract bytes": {
			options: Options{ContractBytes: code},
			want:    host.DeployContract(code),
		},
		"contract bytes base64": {
			options: Options{ContractBytesBase64: ptr(base64.StdEncoding.EncodeToString(code))},
			want:    host.DeployContract(code),
		},
		"publish by hash": {
			options: Options{GlobalContractCode: code},
			want:    host.DeployGlobalContract(code, host.GlobalByHash),
		},
		"publish by account": {
			options: Options{GlobalContractCodeByAccountID: code},
			want:    host.DeployGlobalContract(code, host.GlobalByAccountID),
		},
		"use by hash": {
			options: Options{UseGlobalContractHash: hash},
			want:    host.UseGlobalContractByHash(hash),
		},
		"use by account": {
			options: Options{UseGlobalContractAccountID: ptr("code.testnet")},
			want:    host.UseGlobalContractByAccount("code.testnet"),
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			actions, err := Resolve(5, tc.options)
			require.NoError(t, err)
			require.Equal(t, []host.Action{host.CreateAccount(), host.Transfer(5), tc.want}, actions)
		})
	}
}

func TestResolveFieldValidation(t *testing.T) {
	cases := map[string]Options{
		"bad full key":       {FullAccessKeys: []string{"ed25519:notbase58!"}},
		"bad limited key":    {LimitedAccessKeys: []LimitedAccessKey{{PublicKey: "nope", ReceiverID: "app.testnet"}}},
		"bad receiver":       {LimitedAccessKeys: []LimitedAccessKey{{PublicKey: testKey(t, 5), ReceiverID: "Bad Receiver"}}},
		"bad base64":         {ContractBytesBase64: ptr("%%%")},
		"short hash":         {UseGlobalContractHash: ByteArray{1, 2, 3}},
		"bad global account": {UseGlobalContractAccountID: ptr("x")},
	}

	for name, o := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(5, o)
			require.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestEmptyListCountsAsPopulated(t *testing.T) {
	actions, err := Resolve(5, Options{FullAccessKeys: []string{}})
	require.NoError(t, err)
	require.Equal(t, []host.Action{host.CreateAccount(), host.Transfer(5)}, actions)
}

func TestPlain(t *testing.T) {
	key := testKey(t, 6)
	require.Equal(t, []host.Action{
		host.CreateAccount(),
		host.Transfer(42),
		host.AddFullAccessKey(key),
	}, Plain(key, 42))
}

func TestOptionsDecodeWireForm(t *testing.T) {
	key := testKey(t, 7)
	raw := `{
		"full_access_keys": ["` + key + `"],
		"limited_access_keys": [{
			"public_key": "` + key + `",
			"allowance": "0",
			"receiver_id": "app.testnet",
			"method_names": "a,b"
		}],
		"contract_bytes": [0, 97, 115, 109],
		"use_global_contract_account_id": null
	}`

	var o Options
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	require.Equal(t, []string{key}, o.FullAccessKeys)
	require.Equal(t, Amount(0), o.LimitedAccessKeys[0].Allowance)
	require.Equal(t, ByteArray{0, 97, 115, 109}, o.ContractBytes)
	require.Nil(t, o.UseGlobalContractAccountID)
	require.Equal(t, 1, o.codeSourceCount())

	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`1000`), &a))
	require.Equal(t, Amount(1000), a)
	require.Error(t, json.Unmarshal([]byte(`"-1"`), &a))

	var b ByteArray
	require.Error(t, json.Unmarshal([]byte(`[256]`), &b))
	require.NoError(t, json.Unmarshal([]byte(`[]`), &b))
	require.NotNil(t, b)
	require.Empty(t, b)
}
