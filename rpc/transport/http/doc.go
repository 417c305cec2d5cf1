// Package http implements the rpc transport over HTTP.
//
// The server accepts POST /{shardId} with the serialized request as body and answers
// with the serialized response. If a metrics path is configured it also serves the
// prometheus metrics of the process (VictoriaMetrics/metrics) there.
//
// The client sends requests round-robin to its endpoints and retries a failed request
// on the next endpoint, up to RetryCount attempts. Endpoints without scheme are
// treated as http://.
package http
