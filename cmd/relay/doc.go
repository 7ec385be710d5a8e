// Command relay hosts the event dispatcher outside a game binary: it runs the
// host loop with the read-only debug surface, replays a scripted demo, and
// prints flushed dispatch logs.
//
//	relay serve --addr :9090     # host loop + /healthz, /bindings, /metrics
//	relay demo --frames 180      # scripted Score scenario, prints the log
//	relay log:show               # last flushed dispatch log
//	relay log:clear              # delete it
//	relay route:list             # debug routes
//
// Configuration comes from config/app.json, .env and the environment; see
// package config.
package main
