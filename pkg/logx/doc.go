// Package logx is runtrigger's structured logging on top of zerolog.
//
// Console output goes to stderr, either human-readable or as JSON lines
// (Config.Format). File output is always JSON. Service.Apply swaps level and
// sinks at runtime; Loggers handed out by the Service follow along.
package logx
