// Package unix implements the rpc transport over unix domain sockets on top of the
// base package, for a client on the same machine as the server.
//
// The endpoint is the path of the socket file, an optional unix:// prefix is ignored.
// A stale socket file left by a previous server is removed before listening. The
// server reads payloads up to 64 KB into pooled buffers.
package unix
