// Package client holds the remote directory API surface consumed by the
// services (the Client interface and its HTTP implementation) and the local
// database bootstrap.
package client
