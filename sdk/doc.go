// Package anay is a Go client for the ANAY live socket (/v1/ws).
//
// A Session keeps one logical conversation alive across dropped
// connections: when the socket fails it redials with exponential backoff,
// reusing the same session key so server-side memory carries over, and
// reports the gap through DisconnectedEvent and ReconnectedEvent.
package anay
