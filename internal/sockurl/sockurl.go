// Package sockurl builds SockJS raw websocket endpoints.
package sockurl

import (
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxServerID bounds the server segment: ids are drawn from [0, MaxServerID).
const MaxServerID = 1000

// SessionIDLength is the length of the session segment.
const SessionIDLength = 8

// Build appends a random /{server}/{session}/websocket path to base and
// maps http(s) to ws(s).
func Build(base string) (string, error) {
	return BuildWith(base, rand.Intn(MaxServerID), NewSessionID())
}

// BuildWith is Build with explicit server and session segments.
func BuildWith(base string, serverID int, sessionID string) (string, error) {
	if serverID < 0 || serverID >= MaxServerID {
		return "", fmt.Errorf("sockurl: server id %d out of range", serverID)
	}
	if sessionID == "" || strings.ContainsAny(sessionID, "/.") {
		return "", fmt.Errorf("sockurl: invalid session id %q", sessionID)
	}
	u, err := WebSocketURL(base)
	if err != nil {
		return "", err
	}
	return u.JoinPath(strconv.Itoa(serverID), sessionID, "websocket").String(), nil
}

// WebSocketURL parses base and maps http(s) to ws(s). ws and wss pass
// through; any other scheme is an error.
func WebSocketURL(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("sockurl: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("sockurl: missing host in %q", base)
	}
	return u, nil
}

// NewSessionID returns SessionIDLength lowercase alphanumerics.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:SessionIDLength]
}
