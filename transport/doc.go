/*
Package transport is the only code that talks to the remote execution backend.

A run is started with a request carrying the program source and answered with a long-lived
stream of UTF-8 text chunks, closed when the program exits. While a run is open, lines of input
are delivered to the program's stdin with separate request/response calls, each answered with
the output the program produced in reaction.

Two clients implement the same contract:

  - Client streams the run over a plain HTTP response body (POST /run).
  - WSClient streams the run over a WebSocket (GET /ws/run), sending the source as the first
    message and receiving output frames until a frame with Done set.

Both send input with POST /send_input. A non-success status from /send_input means there is no
running process and is reported as ErrNoRunningProcess.
*/
package transport
