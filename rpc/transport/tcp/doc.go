// Package tcp implements the rpc transport over TCP sockets on top of the base package.
//
// The connector applies the socket settings of the configuration (TCP_NODELAY,
// keep-alive period, linger and kernel buffer sizes) to every connection. The server
// reads payloads up to 512 KB into pooled buffers. Endpoints are host:port, an
// optional tcp:// prefix is ignored.
package tcp
