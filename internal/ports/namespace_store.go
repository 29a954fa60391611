package ports

import "github.com/ipfs/go-datastore"

// NamespaceStore hands out durable key-value namespaces. Closing the store
// closes every namespace it opened.
type NamespaceStore interface {
	Open(namespace string) (datastore.Datastore, error)
	Close() error
}
