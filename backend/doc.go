// Package backend is a reference execution server for the console.
//
// It runs one program at a time with a configurable interpreter and exposes it over HTTP:
//
//	POST /run         starts a run and streams its stdout and stderr until it exits
//	POST /send_input  writes a line to the program's stdin and returns the output it caused
//	GET  /ws/run      same as /run, with output carried in WebSocket JSON frames
//	GET  /heartbeat   liveness
//
// Output produced while a /send_input request is waiting goes to that response instead of the
// run's stream. The request returns once the program has been quiet for the settle window, or
// has exited.
//
// The server does not sandbox anything. Only point it at code you would run yourself.
package backend
