package rediskey

import "fmt"

// Linkdrop keys (global convention across services)
const (
	LinkdropPrefix = "linkdrop"
	AccountsSuffix = "accounts"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// LinkdropAccountsKey returns "linkdrop:accounts", the hash holding every
// key balance.
func LinkdropAccountsKey() string {
	return NamespaceKey(LinkdropPrefix, AccountsSuffix)
}
