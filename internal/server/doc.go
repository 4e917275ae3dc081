// Package server exposes the cache over HTTP.
//
// Every playlist and segment lives under /i/. The handler inspects the tail of
// the request path to decide what is being asked for:
//
//	/i/<dir>/<file>/master.m3u8              single-rendition master playlist
//	/i/<dir>/<pre>,<v1>,<v2>,<suf>.csmil/master.m3u8  multi-rendition master
//	/i/<key>/<media playlist name>          media playlist for rendition key
//	/i/<key>/<name>.ts                       segment of rendition key
//
// Anything else under /i/ is a 404. Path components are stripped of
// characters outside a conservative set before they reach the cache. The
// router also serves /metrics and /healthz.
package server
