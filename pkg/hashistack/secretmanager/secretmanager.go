package secretmanager

import (
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a vault client when VAULT_ADDR is set. Config loading
// treats the client as optional.
var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// Result carries a nil client when vault is not configured.
type Result struct {
	fx.Out
	Vault *vault.Client
}

func ProvideVault() (Result, error) {
	if os.Getenv("VAULT_ADDR") == "" {
		zap.L().Info("VAULT_ADDR not set, secrets come from config only")
		return Result{}, nil
	}

	client, err := vault.New(
		vault.WithEnvironment(),
	)
	if err != nil {
		return Result{}, err
	}

	return Result{Vault: client}, nil
}
