package rediskey

import "fmt"

// Key prefixes (global convention across the service)
const (
	AccountRefreshPrefix = "account:refresh"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// AccountRefreshLock returns "account:refresh:{accountID}", the short-lived
// lock guarding a credential refresh.
func AccountRefreshLock(accountID string) string {
	return NamespaceKey(AccountRefreshPrefix, accountID)
}
