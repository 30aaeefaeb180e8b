// Package logx is eventbot's structured logging, built on zerolog.
//
// Console output is human readable, the optional file is JSON, and lines at
// or above a configured level can be mirrored into a Discord channel.
package logx
