// Package httpserver provides the operations HTTP server for TokDrop.
//
// The bot itself talks to Telegram by long polling and exposes no public
// HTTP API. This package serves the probes and metrics an operator
// scrapes:
//
//   - GET /health   liveness, always 200 while the process runs
//   - GET /ready    200 when the record store answers, 503 otherwise
//   - GET /metrics  Prometheus exposition
//
// Every route runs behind the RequestID and Recover middleware, and
// request counts and latency are recorded on the metric registry.
package httpserver
