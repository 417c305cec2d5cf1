// Package client implements store.IStore on top of the rpc transport, so every
// consumer of a store (the kv commands, migrations) can work against a remote server.
//
//	s, err := client.NewRPCStore(100, common.ClientConfig{
//		Endpoints:     []string{"localhost:8080"},
//		TimeoutSecond: 5,
//		RetryCount:    3,
//	}, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//
//	runner := migration.NewRunner(s, nil)
//
// Errors of the remote store keep their return code (*store.Error), so
// errors.Is(err, db.ErrWrongType) holds on the client as well. Exec sends the whole
// batch in one request, the server applies it atomically.
//
// The client is safe for concurrent use.
package client
