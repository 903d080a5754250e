package provisioning

import "linkdrop-controlplane/pkg/host"

// CodeSource is the single code action a provisioned account may receive.
// Only the types in this package implement it.
type CodeSource interface {
	Action() host.Action
	codeSource()
}

// ContractBytes deploys raw code.
type ContractBytes struct{ Code []byte }

// ContractBytesBase64 deploys code that arrived base64 encoded.
type ContractBytesBase64 struct{ Code []byte }

// PublishGlobalByHash publishes shared code addressed by its hash.
type PublishGlobalByHash struct{ Code []byte }

// PublishGlobalByAccount publishes shared code addressed by the publishing
// account.
type PublishGlobalByAccount struct{ Code []byte }

// UseGlobalByHash points the account at shared code by hash.
type UseGlobalByHash struct{ Hash []byte }

// UseGlobalByAccount points the account at shared code by its publisher.
type UseGlobalByAccount struct{ AccountID string }

func (s ContractBytes) Action() host.Action          { return host.DeployContract(s.Code) }
func (s ContractBytesBase64) Action() host.Action    { return host.DeployContract(s.Code) }
func (s PublishGlobalByHash) Action() host.Action    { return host.DeployGlobalContract(s.Code, host.GlobalByHash) }
func (s PublishGlobalByAccount) Action() host.Action { return host.DeployGlobalContract(s.Code, host.GlobalByAccountID) }
func (s UseGlobalByHash) Action() host.Action        { return host.UseGlobalContractByHash(s.Hash) }
func (s UseGlobalByAccount) Action() host.Action     { return host.UseGlobalContractByAccount(s.AccountID) }

func (ContractBytes) codeSource()          {}
func (ContractBytesBase64) codeSource()    {}
func (PublishGlobalByHash) codeSource()    {}
func (PublishGlobalByAccount) codeSource() {}
func (UseGlobalByHash) codeSource()        {}
func (UseGlobalByAccount) codeSource()     {}
