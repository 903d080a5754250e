package provisioning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Options is the wire form of create_account_advanced options. A nil field
// is absent. At most one of the six code fields may be set.
type Options struct {
	FullAccessKeys    []string           `json:"full_access_keys,omitempty"`
	LimitedAccessKeys []LimitedAccessKey `json:"limited_access_keys,omitempty"`

	ContractBytes       ByteArray `json:"contract_bytes,omitempty"`
	ContractBytesBase64 *string   `json:"contract_bytes_base64,omitempty"`
	// GlobalContractCode publishes code shared by its hash.
	GlobalContractCode ByteArray `json:"global_contract_code,omitempty"`
	// GlobalContractCodeByAccountID publishes code shared under the new
	// account's id.
	GlobalContractCodeByAccountID ByteArray `json:"global_contract_code_by_account_id,omitempty"`
	UseGlobalContractHash         ByteArray `json:"use_global_contract_hash,omitempty"`
	UseGlobalContractAccountID    *string   `json:"use_global_contract_account_id,omitempty"`
}

func (o Options) empty() bool {
	return o.FullAccessKeys == nil &&
		o.LimitedAccessKeys == nil &&
		o.ContractBytes == nil &&
		o.ContractBytesBase64 == nil &&
		o.GlobalContractCode == nil &&
		o.GlobalContractCodeByAccountID == nil &&
		o.UseGlobalContractHash == nil &&
		o.UseGlobalContractAccountID == nil
}

func (o Options) codeSourceCount() int {
	n := 0
	for _, set := range []bool{
		o.ContractBytes != nil,
		o.ContractBytesBase64 != nil,
		o.GlobalContractCode != nil,
		o.GlobalContractCodeByAccountID != nil,
		o.UseGlobalContractHash != nil,
		o.UseGlobalContractAccountID != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// LimitedAccessKey is a function-call key to add to the new account.
type LimitedAccessKey struct {
	PublicKey string `json:"public_key"`
	// Allowance of zero means unlimited.
	Allowance   Amount `json:"allowance"`
	ReceiverID  string `json:"receiver_id"`
	MethodNames string `json:"method_names"`
}

// Amount is a native-unit amount that decodes from a JSON number or a
// decimal string.
type Amount int64

func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	raw := bytes.Trim(data, `"`)
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("amount %s: %w", data, err)
	}
	if n < 0 {
		return fmt.Errorf("amount %s: must not be negative", data)
	}
	*a = Amount(n)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(a), 10))
}

// ByteArray is raw bytes encoded as a JSON array of numbers. An explicit
// empty array decodes to a non-nil empty slice so it still counts as set.
type ByteArray []byte

func (b *ByteArray) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("byte array: %w", err)
	}

	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte array: element %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

func (b ByteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}
